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
	"github.com/pkg/errors"
)

const bitMartMaxDepth = 50

type bitMart struct {
	rest    *connector.REST
	baseURL string
}

// restRespBitMart rows are positional:
// [symbol, last, base volume, quote volume, open, high, low, fluctuation, ...].
type restRespBitMart struct {
	Code    interface{}     `json:"code"`
	Message string          `json:"message"`
	Data    [][]interface{} `json:"data"`
}

type restBookBitMart struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
	Data    struct {
		TS   interface{}   `json:"ts"`
		Asks []interface{} `json:"asks"`
		Bids []interface{} `json:"bids"`
	} `json:"data"`
}

func newBitMart(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.BitMartRESTBaseURL
	}
	return &bitMart{rest: rest, baseURL: baseURL}
}

func (b *bitMart) Name() string { return "BITMART" }

// FetchUSDTTickers queries the v3 tickers and keeps X_USDT rows.
// fluctuation is a fraction.
func (b *bitMart) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespBitMart{}
	if err := getJSON(ctx, b.rest, b.rest.TickerTimeout(), b.baseURL+"/spot/quotation/v3/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}
	if !codeIs(rr.Code, 1000) {
		return nil, errors.Errorf("api error code %v: %s", rr.Code, rr.Message)
	}

	tickers := make([]storage.Ticker, 0, len(rr.Data))
	for _, row := range rr.Data {
		if len(row) < 8 {
			continue
		}
		symbol, _ := row[0].(string)
		if !strings.HasSuffix(symbol, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(symbol, "_USDT")
		if base == "" {
			continue
		}
		t := storage.NewTicker(b.Name(), base)
		t.Price = num(row[1])
		t.Volume24h = num(row[2])
		t.Turnover24h = num(row[3])
		t.High24h = num(row[5])
		t.Low24h = num(row[6])
		t.Change24h = storage.Float(convert.Float(row[7], 0) * 100)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the X_USDT book, at most 50 levels a side.
func (b *bitMart) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, bitMartMaxDepth)

	q := url.Values{}
	q.Add("symbol", base+"_USDT")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookBitMart{}
	if err = getJSON(ctx, b.rest, b.rest.OrderbookTimeout(), b.baseURL+"/spot/quotation/v3/books", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	if !codeIs(rr.Code, 1000) {
		return storage.Orderbook{}, errors.Errorf("api error code %v: %s", rr.Code, rr.Message)
	}
	ob := newOrderbook(b.Name(), base+"/USDT", parseLevels(rr.Data.Asks), parseLevels(rr.Data.Bids), limit)
	ob.Timestamp = convert.Int64(rr.Data.TS)
	return ob, nil
}
