package exchange

import (
	"context"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

// hashKey has no order book support.
type hashKey struct {
	rest    *connector.REST
	baseURL string
}

// restRespHashKey carries both the short and the long key names,
// the short one wins when present.
type restRespHashKey struct {
	S                  interface{} `json:"s"`
	Symbol             interface{} `json:"symbol"`
	O                  interface{} `json:"o"`
	OpenPrice          interface{} `json:"openPrice"`
	C                  interface{} `json:"c"`
	LastPrice          interface{} `json:"lastPrice"`
	V                  interface{} `json:"v"`
	Volume             interface{} `json:"volume"`
	H                  interface{} `json:"h"`
	HighPrice          interface{} `json:"highPrice"`
	L                  interface{} `json:"l"`
	LowPrice           interface{} `json:"lowPrice"`
	QV                 interface{} `json:"qv"`
	QuoteVolume        interface{} `json:"quoteVolume"`
	P                  interface{} `json:"p"`
	PriceChangePercent interface{} `json:"priceChangePercent"`
}

func newHashKey(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.HashKeyRESTBaseURL
	}
	return &hashKey{rest: rest, baseURL: baseURL}
}

func (h *hashKey) Name() string { return "HASHKEY" }

// FetchUSDTTickers queries 24h tickers of BASEUSDT symbols.
// Change is computed from open and last price, falling back to the reported percent.
func (h *hashKey) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespHashKey{}
	if err := getJSON(ctx, h.rest, h.rest.TickerTimeout(), h.baseURL+"/quote/v1/ticker/24hr", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		symbol, _ := either(r.S, r.Symbol).(string)
		if !strings.HasSuffix(symbol, "USDT") {
			continue
		}
		base := strings.TrimSuffix(symbol, "USDT")
		if base == "" {
			continue
		}

		open := convert.Float(either(r.O, r.OpenPrice), 0)
		price := convert.Float(either(r.C, r.LastPrice), 0)
		change := pctChange(price, open)
		if change == nil {
			change = num(either(r.P, r.PriceChangePercent))
		}

		t := storage.NewTicker(h.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = num(either(r.V, r.Volume))
		t.High24h = num(either(r.H, r.HighPrice))
		t.Low24h = num(either(r.L, r.LowPrice))
		t.Change24h = change
		t.Turnover24h = num(either(r.QV, r.QuoteVolume))
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// either returns a unless it is absent.
func either(a, b interface{}) interface{} {
	if a != nil {
		return a
	}
	return b
}
