package exchange

import (
	"context"
	"net/url"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

const ascendEXMaxDepth = 100

type ascendEX struct {
	rest    *connector.REST
	baseURL string
}

type restRespAscendEX struct {
	Code interface{} `json:"code"`
	Data []struct {
		Symbol string      `json:"symbol"`
		Open   interface{} `json:"open"`
		Close  interface{} `json:"close"`
		High   interface{} `json:"high"`
		Low    interface{} `json:"low"`
		Volume interface{} `json:"volume"`
	} `json:"data"`
}

type restBookAscendEX struct {
	Code interface{} `json:"code"`
	Data struct {
		Data struct {
			TS   interface{}   `json:"ts"`
			Asks []interface{} `json:"asks"`
			Bids []interface{} `json:"bids"`
		} `json:"data"`
	} `json:"data"`
}

func newAscendEX(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.AscendEXRESTBaseURL
	}
	return &ascendEX{rest: rest, baseURL: baseURL}
}

func (a *ascendEX) Name() string { return "ASCENDEX" }

// FetchUSDTTickers queries spot tickers of BASE/USDT symbols.
// Change is derived from the open price, turnover from price and volume.
func (a *ascendEX) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespAscendEX{}
	if err := getJSON(ctx, a.rest, a.rest.TickerTimeout(), a.baseURL+"/api/pro/v1/spot/ticker", nil, nil, &rr); err != nil {
		return nil, err
	}
	if !codeIs(rr.Code, 0) {
		return nil, errors.Errorf("api error code: %v", rr.Code)
	}

	tickers := make([]storage.Ticker, 0, len(rr.Data))
	for _, r := range rr.Data {
		if !strings.HasSuffix(r.Symbol, "/USDT") {
			continue
		}
		base := strings.TrimSuffix(r.Symbol, "/USDT")
		if base == "" {
			continue
		}
		price := convert.Float(r.Close, 0)
		volume := convert.Float(r.Volume, 0)
		change := storage.Float(0)
		if price != 0 {
			if c := pctChange(price, convert.Float(r.Open, 0)); c != nil {
				change = c
			}
		}

		t := storage.NewTicker(a.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = storage.Float(volume)
		t.High24h = num(r.High)
		t.Low24h = num(r.Low)
		t.Change24h = change
		t.Turnover24h = product(price, volume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the v2 depth of BASE/USDT.
func (a *ascendEX) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, ascendEXMaxDepth)

	rr := restBookAscendEX{}
	if err = getJSON(ctx, a.rest, a.rest.OrderbookTimeout(), a.baseURL+"/api/pro/v2/depth", url.Values{"symbol": {base + "/USDT"}}, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	if !codeIs(rr.Code, 0) {
		return storage.Orderbook{}, errors.Errorf("api error code: %v", rr.Code)
	}
	book := rr.Data.Data
	ob := newOrderbook(a.Name(), base+"/USDT", parseLevels(book.Asks), parseLevels(book.Bids), limit)
	ob.Timestamp = convert.Int64(book.TS)
	return ob, nil
}
