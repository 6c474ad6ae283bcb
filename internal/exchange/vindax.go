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

const vinDAXMaxDepth = 100

type vinDAX struct {
	rest    *connector.REST
	baseURL string
}

type restRespVinDAX struct {
	Symbol             string      `json:"symbol"`
	LastPrice          interface{} `json:"lastPrice"`
	OpenPrice          interface{} `json:"openPrice"`
	Volume             interface{} `json:"volume"`
	QuoteVolume        interface{} `json:"quoteVolume"`
	HighPrice          interface{} `json:"highPrice"`
	LowPrice           interface{} `json:"lowPrice"`
	PriceChangePercent interface{} `json:"priceChangePercent"`
}

type restBookVinDAX struct {
	Asks []interface{} `json:"asks"`
	Bids []interface{} `json:"bids"`
}

func newVinDAX(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.VinDAXRESTBaseURL
	}
	return &vinDAX{rest: rest, baseURL: baseURL}
}

func (v *vinDAX) Name() string { return "VINDAX" }

// FetchUSDTTickers queries 24h tickers of BASEUSDT symbols.
// A zero reported change is recomputed from the open price when possible.
func (v *vinDAX) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespVinDAX{}
	if err := getJSON(ctx, v.rest, v.rest.TickerTimeout(), v.baseURL+"/ticker/24hr", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if !strings.HasSuffix(r.Symbol, "USDT") {
			continue
		}
		base := strings.TrimSuffix(r.Symbol, "USDT")
		if base == "" {
			continue
		}
		price := convert.Float(r.LastPrice, 0)
		change := num(r.PriceChangePercent)
		if *change == 0 && price != 0 {
			if c := pctChange(price, convert.Float(r.OpenPrice, 0)); c != nil {
				change = c
			}
		}

		t := storage.NewTicker(v.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = num(r.Volume)
		t.High24h = num(r.HighPrice)
		t.Low24h = num(r.LowPrice)
		t.Change24h = change
		t.Turnover24h = num(r.QuoteVolume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the BASEUSDT depth.
func (v *vinDAX) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, vinDAXMaxDepth)

	q := url.Values{}
	q.Add("symbol", base+"USDT")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookVinDAX{}
	if err = getJSON(ctx, v.rest, v.rest.OrderbookTimeout(), v.baseURL+"/depth", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(v.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit), nil
}
