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

const xtMaxDepth = 100

type xt struct {
	rest    *connector.REST
	baseURL string
}

// restRespXT keys: c close, q base volume, v quote volume, cr change rate.
type restRespXT struct {
	Result []struct {
		S  string      `json:"s"`
		C  interface{} `json:"c"`
		H  interface{} `json:"h"`
		L  interface{} `json:"l"`
		Q  interface{} `json:"q"`
		V  interface{} `json:"v"`
		CR interface{} `json:"cr"`
	} `json:"result"`
}

type restBookXT struct {
	Result struct {
		Asks []interface{} `json:"asks"`
		Bids []interface{} `json:"bids"`
	} `json:"result"`
}

func newXT(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.XTRESTBaseURL
	}
	return &xt{rest: rest, baseURL: baseURL}
}

func (x *xt) Name() string { return "XT" }

// FetchUSDTTickers queries v4 tickers of x_usdt symbols.
func (x *xt) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespXT{}
	if err := getJSON(ctx, x.rest, x.rest.TickerTimeout(), x.baseURL+"/v4/public/ticker", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr.Result))
	for _, r := range rr.Result {
		if !strings.HasSuffix(r.S, "_usdt") {
			continue
		}
		base := strings.ToUpper(strings.TrimSuffix(r.S, "_usdt"))
		if base == "" {
			continue
		}
		t := storage.NewTicker(x.Name(), base)
		t.Price = num(r.C)
		t.Volume24h = num(r.Q)
		t.High24h = num(r.H)
		t.Low24h = num(r.L)
		t.Change24h = storage.Float(convert.Float(r.CR, 0) * 100)
		t.Turnover24h = num(r.V)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the x_usdt depth.
func (x *xt) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, xtMaxDepth)

	q := url.Values{}
	q.Add("symbol", strings.ToLower(base)+"_usdt")
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookXT{}
	if err = getJSON(ctx, x.rest, x.rest.OrderbookTimeout(), x.baseURL+"/v4/public/depth", q, nil, &rr); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(x.Name(), base+"/USDT", parseLevels(rr.Result.Asks), parseLevels(rr.Result.Bids), limit), nil
}
