package exchange

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

const gateIOMaxDepth = 100

type gateIO struct {
	rest    *connector.REST
	baseURL string
}

type restRespGateIO struct {
	CurrencyPair     string      `json:"currency_pair"`
	Last             interface{} `json:"last"`
	BaseVolume       interface{} `json:"base_volume"`
	QuoteVolume      interface{} `json:"quote_volume"`
	High24h          interface{} `json:"high_24h"`
	Low24h           interface{} `json:"low_24h"`
	ChangePercentage interface{} `json:"change_percentage"`
}

type restBookGateIO struct {
	Asks []interface{} `json:"asks"`
	Bids []interface{} `json:"bids"`
}

func newGateIO(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.GateIORESTBaseURL
	}
	return &gateIO{rest: rest, baseURL: baseURL}
}

func (g *gateIO) Name() string { return "GATEIO" }

// FetchUSDTTickers queries all spot tickers and keeps the X_USDT pairs.
func (g *gateIO) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespGateIO{}
	if err := getJSON(ctx, g.rest, g.rest.TickerTimeout(), g.baseURL+"/spot/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if !strings.HasSuffix(r.CurrencyPair, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(r.CurrencyPair, "_USDT")
		if base == "" {
			continue
		}
		t := storage.NewTicker(g.Name(), base)
		t.Price = num(r.Last)
		t.Volume24h = num(r.BaseVolume)
		t.High24h = num(r.High24h)
		t.Low24h = num(r.Low24h)
		t.Change24h = num(r.ChangePercentage)
		t.Turnover24h = num(r.QuoteVolume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the X_USDT order book.
func (g *gateIO) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, gateIOMaxDepth)

	q := url.Values{}
	q.Add("currency_pair", base+"_USDT")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookGateIO{}
	if err = getJSON(ctx, g.rest, g.rest.OrderbookTimeout(), g.baseURL+"/spot/order_book", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(g.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit), nil
}
