package exchange

import (
	"context"
	"net/url"
	"strconv"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

const nizaMaxDepth = 100

type niza struct {
	rest    *connector.REST
	baseURL string
}

type restRespNiza struct {
	BaseCurrency   string      `json:"base_currency"`
	TargetCurrency string      `json:"target_currency"`
	LastPrice      interface{} `json:"last_price"`
	BaseVolume     interface{} `json:"base_volume"`
	TargetVolume   interface{} `json:"target_volume"`
	High           interface{} `json:"high"`
	Low            interface{} `json:"low"`
}

func newNiza(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.NizaRESTBaseURL
	}
	return &niza{rest: rest, baseURL: baseURL}
}

func (n *niza) Name() string { return "NIZA" }

// FetchUSDTTickers queries the CoinGecko style tickers. No change is reported.
func (n *niza) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespNiza{}
	if err := getJSON(ctx, n.rest, n.rest.TickerTimeout(), n.baseURL+"/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if r.TargetCurrency != storage.QuoteUSDT || r.BaseCurrency == "" {
			continue
		}
		t := storage.NewTicker(n.Name(), r.BaseCurrency)
		t.Price = num(r.LastPrice)
		t.Volume24h = num(r.BaseVolume)
		t.High24h = num(r.High)
		t.Low24h = num(r.Low)
		t.Change24h = storage.Float(0)
		t.Turnover24h = num(r.TargetVolume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the BASE/USDT book. The body is either the book
// object or a list whose first element is the book.
func (n *niza) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, nizaMaxDepth)

	q := url.Values{}
	q.Add("ticker_id", base+"/USDT")
	q.Add("depth", strconv.Itoa(limit))
	var rr interface{}
	if err = getJSON(ctx, n.rest, n.rest.OrderbookTimeout(), n.baseURL+"/orderbook", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	if list, ok := rr.([]interface{}); ok {
		rr = nil
		if len(list) > 0 {
			rr = list[0]
		}
	}
	book, _ := rr.(map[string]interface{})
	asks, _ := book["asks"].([]interface{})
	bids, _ := book["bids"].([]interface{})
	return newOrderbook(n.Name(), base+"/USDT", parseLevels(asks), parseLevels(bids), limit), nil
}
