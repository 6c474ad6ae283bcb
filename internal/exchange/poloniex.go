package exchange

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

// Poloniex accepts only these order book limits.
var poloniexDepths = []int{5, 10, 20, 50, 100, 150}

type poloniex struct {
	rest    *connector.REST
	baseURL string
}

type restRespPoloniex struct {
	Symbol      string      `json:"symbol"`
	Close       interface{} `json:"close"`
	Quantity    interface{} `json:"quantity"`
	Amount      interface{} `json:"amount"`
	High        interface{} `json:"high"`
	Low         interface{} `json:"low"`
	DailyChange interface{} `json:"dailyChange"`
}

// restBookPoloniex levels are flat: [price, quantity, price, quantity, ...].
type restBookPoloniex struct {
	Asks []interface{} `json:"asks"`
	Bids []interface{} `json:"bids"`
}

func newPoloniex(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.PoloniexRESTBaseURL
	}
	return &poloniex{rest: rest, baseURL: baseURL}
}

func (p *poloniex) Name() string { return "POLONIEX" }

// FetchUSDTTickers queries 24h tickers of X_USDT symbols.
// dailyChange is a fraction.
func (p *poloniex) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespPoloniex{}
	if err := getJSON(ctx, p.rest, p.rest.TickerTimeout(), p.baseURL+"/markets/ticker24h", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if !strings.HasSuffix(r.Symbol, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(r.Symbol, "_USDT")
		if base == "" {
			continue
		}
		t := storage.NewTicker(p.Name(), base)
		t.Price = num(r.Close)
		t.Volume24h = num(r.Quantity)
		t.High24h = num(r.High)
		t.Low24h = num(r.Low)
		t.Change24h = storage.Float(convert.Float(r.DailyChange, 0) * 100)
		t.Turnover24h = num(r.Amount)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the X_USDT order book with the smallest accepted limit covering the requested one.
func (p *poloniex) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, poloniexDepths[len(poloniexDepths)-1])
	reqLimit := poloniexDepths[len(poloniexDepths)-1]
	for _, d := range poloniexDepths {
		if d >= limit {
			reqLimit = d
			break
		}
	}

	rr := restBookPoloniex{}
	endpoint := p.baseURL + "/markets/" + url.PathEscape(base+"_USDT") + "/orderBook"
	err = getJSON(ctx, p.rest, p.rest.OrderbookTimeout(), endpoint, url.Values{"limit": {strconv.Itoa(reqLimit)}}, nil, &rr)
	if err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(p.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit), nil
}
