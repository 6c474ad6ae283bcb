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
	"golang.org/x/sync/errgroup"
)

const p2pb2bMaxDepth = 100

type p2pb2b struct {
	rest    *connector.REST
	baseURL string
}

type restRespP2PB2B struct {
	Success interface{} `json:"success"`
	Message interface{} `json:"message"`
	Result  map[string]struct {
		Ticker struct {
			Last   interface{} `json:"last"`
			Vol    interface{} `json:"vol"`
			Deal   interface{} `json:"deal"`
			High   interface{} `json:"high"`
			Low    interface{} `json:"low"`
			Change interface{} `json:"change"`
		} `json:"ticker"`
	} `json:"result"`
}

type restBookP2PB2B struct {
	Success interface{} `json:"success"`
	Message interface{} `json:"message"`
	Result  struct {
		Orders []struct {
			Price interface{} `json:"price"`
			Left  interface{} `json:"left"`
		} `json:"orders"`
	} `json:"result"`
}

func newP2PB2B(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.P2PB2BRESTBaseURL
	}
	return &p2pb2b{rest: rest, baseURL: baseURL}
}

func (p *p2pb2b) Name() string { return "P2PB2B" }

// FetchUSDTTickers queries the market map and keeps X_USDT markets.
func (p *p2pb2b) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	rr := restRespP2PB2B{}
	if err := getJSON(ctx, p.rest, p.rest.TickerTimeout(), p.baseURL+"/tickers", nil, nil, &rr); err != nil {
		return nil, err
	}
	if !truthy(rr.Success) {
		return nil, errors.Errorf("api error: %v", rr.Message)
	}

	tickers := make([]storage.Ticker, 0, len(rr.Result))
	for market, m := range rr.Result {
		if !strings.HasSuffix(market, "_USDT") {
			continue
		}
		base := strings.TrimSuffix(market, "_USDT")
		if base == "" {
			continue
		}
		t := storage.NewTicker(p.Name(), base)
		t.Price = num(m.Ticker.Last)
		t.Volume24h = num(m.Ticker.Vol)
		t.High24h = num(m.Ticker.High)
		t.Low24h = num(m.Ticker.Low)
		t.Change24h = num(m.Ticker.Change)
		t.Turnover24h = num(m.Ticker.Deal)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the sell and buy sides of X_USDT concurrently.
// Any side failing fails the whole book.
func (p *p2pb2b) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	limit = clampLimit(limit, p2pb2bMaxDepth)

	var asks, bids []storage.Level
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		asks, err = p.fetchSide(gctx, base, "sell", limit)
		return err
	})
	g.Go(func() error {
		var err error
		bids, err = p.fetchSide(gctx, base, "buy", limit)
		return err
	})
	if err = g.Wait(); err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(p.Name(), base+"/USDT", asks, bids, limit), nil
}

func (p *p2pb2b) fetchSide(ctx context.Context, base string, side string, limit int) ([]storage.Level, error) {
	q := url.Values{}
	q.Add("market", base+"_USDT")
	q.Add("side", side)
	q.Add("limit", strconv.Itoa(limit))
	rr := restBookP2PB2B{}
	if err := getJSON(ctx, p.rest, p.rest.OrderbookTimeout(), p.baseURL+"/book", q, nil, &rr); err != nil {
		return nil, err
	}
	if !truthy(rr.Success) {
		return nil, errors.Errorf("api error on %s side: %v", side, rr.Message)
	}
	// amount is the order's original size, left is what is still open.
	levels := make([]storage.Level, 0, len(rr.Result.Orders))
	for _, o := range rr.Result.Orders {
		levels = append(levels, storage.Level{Price: convert.Float(o.Price, 0), Amount: convert.Float(o.Left, 0)})
	}
	return levels, nil
}
