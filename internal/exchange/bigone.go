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

const bigONEMaxDepth = 100

type bigONE struct {
	rest    *connector.REST
	baseURL string
}

func newBigONE(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.BigONERESTBaseURL
	}
	return &bigONE{rest: rest, baseURL: baseURL}
}

func (b *bigONE) Name() string { return "BIGONE" }

// FetchUSDTTickers queries all asset pair tickers and keeps BASE-USDT pairs.
// Change comes from the open price, or from daily_change when close is missing.
func (b *bigONE) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	var rr interface{}
	if err := getJSON(ctx, b.rest, b.rest.TickerTimeout(), b.baseURL+"/asset_pairs/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}
	items, _ := rr.([]interface{})
	if m, ok := rr.(map[string]interface{}); ok {
		items, _ = m["data"].([]interface{})
	}

	tickers := make([]storage.Ticker, 0, len(items))
	for _, v := range items {
		item, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		pair, _ := item["asset_pair_name"].(string)
		if !strings.HasSuffix(pair, "-USDT") {
			continue
		}
		base := strings.TrimSuffix(pair, "-USDT")
		if base == "" {
			continue
		}
		price := convert.Float(item["close"], 0)
		volume := convert.Float(item["volume"], 0)
		open := convert.Float(item["open"], 0)
		dailyChange := convert.Float(item["daily_change"], 0)

		change := storage.Float(0)
		switch {
		case price != 0 && open > 0:
			change = pctChange(price, open)
		case dailyChange != 0 && open > 0:
			change = storage.Float(dailyChange / open * 100)
		}

		t := storage.NewTicker(b.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = storage.Float(volume)
		t.High24h = num(item["high"])
		t.Low24h = num(item["low"])
		t.Change24h = change
		if price != 0 && volume != 0 {
			t.Turnover24h = storage.Float(price * volume)
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the BASE-USDT depth.
func (b *bigONE) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, bigONEMaxDepth)

	rr := map[string]interface{}{}
	endpoint := b.baseURL + "/asset_pairs/" + url.PathEscape(base+"-USDT") + "/depth"
	if err = getJSON(ctx, b.rest, b.rest.OrderbookTimeout(), endpoint, nil, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	book := unwrapData(rr)
	asks, _ := book["asks"].([]interface{})
	bids, _ := book["bids"].([]interface{})
	return newOrderbook(b.Name(), base+"/USDT", parseLevels(asks), parseLevels(bids), limit), nil
}
