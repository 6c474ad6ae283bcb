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

const azbitMaxDepth = 100

type azbit struct {
	rest    *connector.REST
	baseURL string
}

type restRespAzbit struct {
	CurrencyPairCode         string      `json:"currencyPairCode"`
	Price                    interface{} `json:"price"`
	Volume24h                interface{} `json:"volume24h"`
	High24h                  interface{} `json:"high24h"`
	Low24h                   interface{} `json:"low24h"`
	PriceChangePercentage24h interface{} `json:"priceChangePercentage24h"`
}

func newAzbit(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.AzbitRESTBaseURL
	}
	return &azbit{rest: rest, baseURL: baseURL}
}

func (a *azbit) Name() string { return "AZBIT" }

// FetchUSDTTickers queries all tickers and keeps the X_USDT pairs.
// Turnover is not sent and is derived from price and volume.
func (a *azbit) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespAzbit{}
	if err := getJSON(ctx, a.rest, a.rest.TickerTimeout(), a.baseURL+"/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if !strings.HasSuffix(r.CurrencyPairCode, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(r.CurrencyPairCode, "_USDT")
		if base == "" {
			continue
		}
		price := convert.Float(r.Price, 0)
		volume := convert.Float(r.Volume24h, 0)

		t := storage.NewTicker(a.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = storage.Float(volume)
		t.High24h = num(r.High24h)
		t.Low24h = num(r.Low24h)
		t.Change24h = num(r.PriceChangePercentage24h)
		t.Turnover24h = product(price, volume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the X_USDT order book. The book comes either as an
// object with asks and bids, or as one list of levels flagged by isBid.
func (a *azbit) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, azbitMaxDepth)

	var rr interface{}
	if err = getJSON(ctx, a.rest, a.rest.OrderbookTimeout(), a.baseURL+"/orderbook/"+url.PathEscape(base+"_USDT"), nil, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}

	var asks, bids []storage.Level
	switch book := rr.(type) {
	case map[string]interface{}:
		askRaw, _ := book["asks"].([]interface{})
		bidRaw, _ := book["bids"].([]interface{})
		asks, bids = parseLevels(askRaw), parseLevels(bidRaw)
	case []interface{}:
		for _, item := range book {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if isBid, _ := m["isBid"].(bool); isBid {
				bids = append(bids, parseLevel(m))
			} else {
				asks = append(asks, parseLevel(m))
			}
		}
	}
	return newOrderbook(a.Name(), base+"/USDT", asks, bids, limit), nil
}
