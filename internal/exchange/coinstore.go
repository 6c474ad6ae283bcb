package exchange

import (
	"context"
	"net/url"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

const coinstoreMaxDepth = 100

type coinstore struct {
	rest    *connector.REST
	baseURL string
}

type restRespCoinstore struct {
	Data []struct {
		Symbol string      `json:"symbol"`
		Open   interface{} `json:"open"`
		Close  interface{} `json:"close"`
		Volume interface{} `json:"volume"`
		Amount interface{} `json:"amount"`
		High   interface{} `json:"high"`
		Low    interface{} `json:"low"`
	} `json:"data"`
}

type restBookCoinstore struct {
	Data struct {
		A []interface{} `json:"a"`
		B []interface{} `json:"b"`
	} `json:"data"`
}

func newCoinstore(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.CoinstoreRESTBaseURL
	}
	return &coinstore{rest: rest, baseURL: baseURL}
}

func (c *coinstore) Name() string { return "COINSTORE" }

// FetchUSDTTickers queries all tickers and keeps BASEUSDT symbols.
// Change is only known when an open price is sent.
func (c *coinstore) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespCoinstore{}
	if err := getJSON(ctx, c.rest, c.rest.TickerTimeout(), c.baseURL+"/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr.Data))
	for _, r := range rr.Data {
		if !strings.HasSuffix(r.Symbol, "USDT") {
			continue
		}
		base := strings.TrimSuffix(r.Symbol, "USDT")
		if base == "" {
			continue
		}
		price := convert.Float(r.Close, 0)

		t := storage.NewTicker(c.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = num(r.Volume)
		t.High24h = num(r.High)
		t.Low24h = num(r.Low)
		if price != 0 {
			t.Change24h = pctChange(price, convert.Float(r.Open, 0))
		}
		t.Turnover24h = num(r.Amount)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the BASEUSDT depth.
func (c *coinstore) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, coinstoreMaxDepth)

	rr := restBookCoinstore{}
	if err = getJSON(ctx, c.rest, c.rest.OrderbookTimeout(), c.baseURL+"/depth/"+url.PathEscape(base+"USDT"), nil, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(c.Name(), base+"/USDT", parseLevels(rr.Data.A), parseLevels(rr.Data.B), limit), nil
}
