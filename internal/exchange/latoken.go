package exchange

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const latokenMaxDepth = 100

// latoken identifies currencies and pairs by opaque ids only, so tickers are
// joined with the currency and pair tables. Both tables are loaded once per
// adapter, concurrent callers share a single load.
type latoken struct {
	rest    *connector.REST
	baseURL string

	loads       singleflight.Group
	mu          sync.RWMutex
	currencies  map[string]string // id -> tag
	currencyIDs map[string]string // tag -> id
	pairs       map[string]string // base id + "/" + quote id -> pair symbol
}

type restRespLatokenCurrency struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

type restRespLatokenPair struct {
	ID            string `json:"id"`
	BaseCurrency  string `json:"baseCurrency"`
	QuoteCurrency string `json:"quoteCurrency"`
	Symbol        string `json:"symbol"`
}

type restRespLatokenTicker struct {
	BaseCurrency  string      `json:"baseCurrency"`
	QuoteCurrency string      `json:"quoteCurrency"`
	LastPrice     interface{} `json:"lastPrice"`
	Volume24h     interface{} `json:"volume24h"`
	High24h       interface{} `json:"high24h"`
	Low24h        interface{} `json:"low24h"`
	Change24h     interface{} `json:"change24h"`
}

type restBookLatoken struct {
	Ask []interface{} `json:"ask"`
	Bid []interface{} `json:"bid"`
}

func newLatoken(rest *connector.REST, baseURL string, _ Options) TickerFetcher {
	if baseURL == "" {
		baseURL = config.LatokenRESTBaseURL
	}
	return &latoken{rest: rest, baseURL: baseURL}
}

func (l *latoken) Name() string { return "LATOKEN" }

// FetchUSDTTickers joins the ticker table with the currency and pair tables.
// Change is sent as a fraction.
func (l *latoken) FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error) {
	if err := l.loadCurrencies(ctx); err != nil {
		return nil, err
	}
	if err := l.loadPairs(ctx); err != nil {
		return nil, err
	}
	usdtID, ok := l.currencyID(storage.QuoteUSDT)
	if !ok {
		return nil, errors.New("USDT missing from currency table")
	}

	rr := []restRespLatokenTicker{}
	if err := getJSON(ctx, l.rest, l.rest.TickerTimeout(), l.baseURL+"/ticker", nil, nil, &rr); err != nil {
		return nil, err
	}

	tickers := make([]storage.Ticker, 0, len(rr))
	for _, r := range rr {
		if r.QuoteCurrency != usdtID {
			continue
		}
		base := l.baseTag(r.BaseCurrency, r.QuoteCurrency)
		if base == "" {
			continue
		}
		price := convert.Float(r.LastPrice, 0)
		volume := convert.Float(r.Volume24h, 0)

		t := storage.NewTicker(l.Name(), base)
		t.Price = storage.Float(price)
		t.Volume24h = storage.Float(volume)
		t.High24h = num(r.High24h)
		t.Low24h = num(r.Low24h)
		t.Change24h = storage.Float(convert.Float(r.Change24h, 0) * 100)
		t.Turnover24h = product(price, volume)
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOrderbook queries the book by base and quote currency ids.
func (l *latoken) FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error) {
	base, err := splitSymbol(symbol)
	if err != nil {
		return storage.Orderbook{}, err
	}
	if err = l.loadCurrencies(ctx); err != nil {
		return storage.Orderbook{}, err
	}
	baseID, ok := l.currencyID(base)
	if !ok {
		return storage.Orderbook{}, errors.Errorf("currency not found: %s", base)
	}
	usdtID, ok := l.currencyID(storage.QuoteUSDT)
	if !ok {
		return storage.Orderbook{}, errors.New("USDT missing from currency table")
	}
	limit = clampLimit(limit, latokenMaxDepth)

	rr := restBookLatoken{}
	endpoint := l.baseURL + "/book/" + url.PathEscape(baseID) + "/" + url.PathEscape(usdtID)
	err = getJSON(ctx, l.rest, l.rest.OrderbookTimeout(), endpoint, url.Values{"limit": {strconv.Itoa(limit)}}, nil, &rr)
	if err != nil {
		return storage.Orderbook{}, err
	}
	return newOrderbook(l.Name(), base+"/USDT", parseLevels(rr.Ask), parseLevels(rr.Bid), limit), nil
}

func (l *latoken) loadCurrencies(ctx context.Context) error {
	l.mu.RLock()
	loaded := len(l.currencies) > 0
	l.mu.RUnlock()
	if loaded {
		return nil
	}
	return l.shared(ctx, "currency", func(ctx context.Context) error {
		rr := []restRespLatokenCurrency{}
		if err := getJSON(ctx, l.rest, l.rest.TickerTimeout(), l.baseURL+"/currency", nil, nil, &rr); err != nil {
			return errors.Wrap(err, "load currency table")
		}
		currencies := make(map[string]string, len(rr))
		ids := make(map[string]string, len(rr))
		for _, c := range rr {
			currencies[c.ID] = c.Tag
			if _, ok := ids[c.Tag]; !ok {
				ids[c.Tag] = c.ID
			}
		}
		l.mu.Lock()
		l.currencies = currencies
		l.currencyIDs = ids
		l.mu.Unlock()
		return nil
	})
}

func (l *latoken) loadPairs(ctx context.Context) error {
	l.mu.RLock()
	loaded := len(l.pairs) > 0
	l.mu.RUnlock()
	if loaded {
		return nil
	}
	return l.shared(ctx, "pair", func(ctx context.Context) error {
		rr := []restRespLatokenPair{}
		if err := getJSON(ctx, l.rest, l.rest.TickerTimeout(), l.baseURL+"/pair", nil, nil, &rr); err != nil {
			return errors.Wrap(err, "load pair table")
		}
		pairs := make(map[string]string, len(rr))
		for _, p := range rr {
			pairs[p.BaseCurrency+"/"+p.QuoteCurrency] = p.Symbol
		}
		l.mu.Lock()
		l.pairs = pairs
		l.mu.Unlock()
		return nil
	})
}

// shared runs load once for all concurrent callers of key. The load outlives
// a cancelled caller and is bounded by getJSON's timeout instead. Each caller
// stops waiting when its own ctx is done.
func (l *latoken) shared(ctx context.Context, key string, load func(ctx context.Context) error) error {
	ch := l.loads.DoChan(key, func() (interface{}, error) {
		return nil, load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *latoken) currencyID(tag string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.currencyIDs[tag]
	return id, ok
}

// baseTag resolves a base currency id through the currency table,
// then through the pair symbol.
func (l *latoken) baseTag(baseID string, quoteID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if tag := l.currencies[baseID]; tag != "" {
		return tag
	}
	if symbol := l.pairs[baseID+"/"+quoteID]; symbol != "" {
		if i := strings.Index(symbol, "/"); i > 0 {
			return strings.ToUpper(symbol[:i])
		}
	}
	return ""
}
