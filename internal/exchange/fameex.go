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

const fameEXMaxDepth = 100

type fameEX struct {
	rest    *connector.REST
	baseURL string
}

func newFameEX(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.FameEXRESTBaseURL
	}
	return &fameEX{rest: rest, baseURL: baseURL}
}

func (f *fameEX) Name() string { return "FAMEEX" }

// FetchUSDTTickers queries the ticker map keyed by trading pair.
// The map comes either wrapped in data or bare. No change is reported.
func (f *fameEX) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := map[string]interface{}{}
	if err := getJSON(ctx, f.rest, f.rest.TickerTimeout(), f.baseURL+"/v2/public/ticker", nil, nil, &rr); err != nil {
		return nil, err
	}
	pairs := unwrapData(rr)

	tickers := make([]storage.Ticker, 0, len(pairs))
	for pair, v := range pairs {
		if !strings.HasSuffix(pair, "_USDT") {
			continue
		}
		base := strings.ToUpper(strings.TrimSuffix(pair, "_USDT"))
		item, ok := v.(map[string]interface{})
		if base == "" || !ok {
			continue
		}
		t := storage.NewTicker(f.Name(), base)
		t.Price = num(item["last_price"])
		t.Volume24h = num(item["base_volume"])
		t.High24h = num(item["high_24h"])
		t.Low24h = num(item["low_24h"])
		t.Turnover24h = num(item["quote_volume"])
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the X_USDT book. Levels are pairs or objects.
func (f *fameEX) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, fameEXMaxDepth)

	rr := map[string]interface{}{}
	endpoint := f.baseURL + "/v2/public/orderbook/" + url.PathEscape(base+"_USDT")
	if err = getJSON(ctx, f.rest, f.rest.OrderbookTimeout(), endpoint, url.Values{"depth": {strconv.Itoa(limit)}}, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	book := unwrapData(rr)
	asks, _ := book["asks"].([]interface{})
	bids, _ := book["bids"].([]interface{})
	return newOrderbook(f.Name(), base+"/USDT", parseLevels(asks), parseLevels(bids), limit), nil
}

// unwrapData returns the object under "data", or m itself when there is none.
func unwrapData(m map[string]interface{}) map[string]interface{} {
	if inner, ok := m["data"].(map[string]interface{}); ok {
		return inner
	}
	return m
}
