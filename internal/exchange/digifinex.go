package exchange

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

const digiFinexMaxDepth = 100

type digiFinex struct {
	rest    *connector.REST
	baseURL string
}

type restRespDigiFinex struct {
	Code   interface{} `json:"code"`
	Ticker []struct {
		Symbol  string      `json:"symbol"`
		Last    interface{} `json:"last"`
		Vol     interface{} `json:"vol"`
		BaseVol interface{} `json:"base_vol"`
		High    interface{} `json:"high"`
		Low     interface{} `json:"low"`
		Change  interface{} `json:"change"`
	} `json:"ticker"`
}

type restBookDigiFinex struct {
	Code interface{}   `json:"code"`
	Asks []interface{} `json:"asks"`
	Bids []interface{} `json:"bids"`
}

func newDigiFinex(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.DigiFinexRESTBaseURL
	}
	return &digiFinex{rest: rest, baseURL: baseURL}
}

func (d *digiFinex) Name() string { return "DIGIFINEX" }

// FetchUSDTTickers queries all tickers and keeps the x_usdt ones.
// base_vol is the quote currency volume.
func (d *digiFinex) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespDigiFinex{}
	if err := getJSON(ctx, d.rest, d.rest.TickerTimeout(), d.baseURL+"/ticker", nil, nil, &rr); err != nil {
		return nil, err
	}
	if !codeIs(rr.Code, 0) {
		return nil, errors.Errorf("api error code: %v", rr.Code)
	}

	tickers := make([]storage.Ticker, 0, len(rr.Ticker))
	for _, r := range rr.Ticker {
		if !strings.HasSuffix(r.Symbol, "_usdt") {
			continue
		}
		base := strings.ToUpper(strings.TrimSuffix(r.Symbol, "_usdt"))
		if base == "" {
			continue
		}
		t := storage.NewTicker(d.Name(), base)
		t.Price = num(r.Last)
		t.Volume24h = num(r.Vol)
		t.High24h = num(r.High)
		t.Low24h = num(r.Low)
		t.Change24h = num(r.Change)
		t.Turnover24h = num(r.BaseVol)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the x_usdt order book.
func (d *digiFinex) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, digiFinexMaxDepth)

	q := url.Values{}
	q.Add("symbol", strings.ToLower(base)+"_usdt")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookDigiFinex{}
	if err = getJSON(ctx, d.rest, d.rest.OrderbookTimeout(), d.baseURL+"/order_book", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	if !codeIs(rr.Code, 0) {
		return storage.Orderbook{}, errors.Errorf("api error code: %v", rr.Code)
	}
	return newOrderbook(d.Name(), base+"/USDT", parseLevels(rr.Asks), parseLevels(rr.Bids), limit), nil
}
