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

const bitrueMaxDepth = 100

// bitrue serves tickers and depth from different hosts.
// An overridden base URL is used for both.
type bitrue struct {
	rest     *connector.REST
	baseURL  string
	depthURL string
}

type restRespBitrue struct {
	Symbol             string      `json:"symbol"`
	LastPrice          interface{} `json:"lastPrice"`
	Volume             interface{} `json:"volume"`
	QuoteVolume        interface{} `json:"quoteVolume"`
	HighPrice          interface{} `json:"highPrice"`
	LowPrice           interface{} `json:"lowPrice"`
	PriceChangePercent interface{} `json:"priceChangePercent"`
}

type restBookBitrue struct {
	LastUpdateID interface{}   `json:"lastUpdateId"`
	Asks         []interface{} `json:"asks"`
	Bids         []interface{} `json:"bids"`
}

func newBitrue(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		return &bitrue{rest: rest, baseURL: config.BitrueRESTBaseURL, depthURL: config.BitrueDepthRESTBaseURL}
	}
	return &bitrue{rest: rest, baseURL: baseURL, depthURL: baseURL}
}

func (b *bitrue) Name() string { return "BITRUE" }

// FetchUSDTTickers queries 24h tickers of BASEUSDT symbols.
func (b *bitrue) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := []restRespBitrue{}
	if err := getJSON(ctx, b.rest, b.rest.TickerTimeout(), b.baseURL+"/api/v1/ticker/24hr", nil, nil, &rr); err != nil {
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
		t := storage.NewTicker(b.Name(), base)
		t.Price = num(r.LastPrice)
		t.Volume24h = num(r.Volume)
		t.High24h = num(r.HighPrice)
		t.Low24h = num(r.LowPrice)
		t.Change24h = num(r.PriceChangePercent)
		t.Turnover24h = num(r.QuoteVolume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the BASEUSDT depth.
func (b *bitrue) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, bitrueMaxDepth)

	q := url.Values{}
	q.Add("symbol", base+"USDT")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookBitrue{}
	if err = getJSON(ctx, b.rest, b.rest.OrderbookTimeout(), b.depthURL+"/api/v1/depth", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	ob := newOrderbook(b.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit)
	ob.Timestamp = convert.Int64(rr.LastUpdateID)
	return ob, nil
}
