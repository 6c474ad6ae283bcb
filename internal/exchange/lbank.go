package exchange

import (
	"context"
	"net/url"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

// lbank has no order book support.
type lbank struct {
	rest    *connector.REST
	baseURL string
}

type restRespLBank struct {
	Symbol string `json:"symbol"`
	Ticker struct {
		Latest   interface{} `json:"latest"`
		Vol      interface{} `json:"vol"`
		High     interface{} `json:"high"`
		Low      interface{} `json:"low"`
		Change   interface{} `json:"change"`
		Turnover interface{} `json:"turnover"`
	} `json:"ticker"`
}

func newLBank(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.LBankRESTBaseURL
	}
	return &lbank{rest: rest, baseURL: baseURL}
}

func (l *lbank) Name() string { return "LBANK" }

// FetchUSDTTickers queries all tickers and keeps the xxx_usdt ones.
// LBank reports change already in percent.
func (l *lbank) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespLBank{}
	err := getJSON(ctx, l.rest, l.rest.TickerTimeout(), l.baseURL+"/v1/ticker.do", url.Values{"symbol": {"all"}}, nil, &rr)
	if err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if !strings.HasSuffix(r.Symbol, "_usdt") {
			continue
		}
		base := strings.ToUpper(strings.TrimSuffix(r.Symbol, "_usdt"))
		if base == "" {
			continue
		}
		t := storage.NewTicker(l.Name(), base)
		t.Price = num(r.Ticker.Latest)
		t.Volume24h = num(r.Ticker.Vol)
		t.High24h = num(r.Ticker.High)
		t.Low24h = num(r.Ticker.Low)
		t.Change24h = num(r.Ticker.Change)
		t.Turnover24h = num(r.Ticker.Turnover)
		tickers = append(tickers, t)
	}
	return tickers, nil
}
