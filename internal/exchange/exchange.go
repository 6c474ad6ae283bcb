package exchange

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

// TickerFetcher fetches every USDT quoted 24h spot ticker of one exchange.
type TickerFetcher interface {
	Name() string
	FetchUSDTTickers(ctx context.Context) ([]storage.Ticker, error)
}

// OrderbookFetcher fetches one symbol's order book.
// It is implemented only by exchanges with a public order book endpoint.
type OrderbookFetcher interface {
	FetchOrderbook(ctx context.Context, symbol string, limit int) (storage.Orderbook, error)
}

var (
	// ErrUnknownExchange is returned for an exchange name which has no adapter.
	ErrUnknownExchange = errors.New("unknown exchange")
	// ErrOrderbookUnsupported is returned when an exchange has no order book support.
	ErrOrderbookUnsupported = errors.New("order book not supported")
	// ErrInvalidSymbol is returned for a symbol which is not in BASE/USDT form.
	ErrInvalidSymbol = errors.New("symbol should be in BASE/USDT form")
)

// FetchError reports a failed ticker or order book fetch of an exchange.
type FetchError struct {
	Exchange string
	Err      error
}

func (e *FetchError) Error() string {
	return "fetch failed for exchange " + e.Exchange + ": " + e.Err.Error()
}

// Unwrap returns the underlying reason.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// DefaultOrderbookLimit is the order book depth used when a caller gives none.
const DefaultOrderbookLimit = 20

// Options tunes adapters which need more than a base url.
type Options struct {
	FanOutWorkers int
	FanOutTimeout time.Duration
}

type factory func(rest *connector.REST, baseURL string, opts Options) TickerFetcher

var registry = map[string]factory{
	"LBANK":     newLBank,
	"HASHKEY":   newHashKey,
	"GATEIO":    newGateIO,
	"LATOKEN":   newLatoken,
	"OURBIT":    newOurbit,
	"AZBIT":     newAzbit,
	"DEXTRADE":  newDexTrade,
	"DIGIFINEX": newDigiFinex,
	"VINDAX":    newVinDAX,
	"POLONIEX":  newPoloniex,
	"COINSTORE": newCoinstore,
	"BITMART":   newBitMart,
	"NIZA":      newNiza,
	"FAMEEX":    newFameEX,
	"ASCENDEX":  newAscendEX,
	"BITRUE":    newBitrue,
	"P2PB2B":    newP2PB2B,
	"BIGONE":    newBigONE,
	"XT":        newXT,
	"BICONOMY":  newBiconomy,
}

// New returns the adapter of the named exchange.
// An empty baseURL means the exchange's public API url.
func New(name string, rest *connector.REST, baseURL string, opts Options) (TickerFetcher, error) {
	f, ok := registry[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrap(ErrUnknownExchange, name)
	}
	return f(rest, strings.TrimRight(baseURL, "/"), opts), nil
}

// Names returns the identifiers of every supported exchange, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// json is case sensitive, some exchanges send keys differing only by case.
var json = jsoniter.Config{
	EscapeHTML:    true,
	CaseSensitive: true,
}.Froze()

// getJSON sends a GET request and decodes the JSON body into out.
// Any transport error or non-2xx status fails the request.
func getJSON(ctx context.Context, rest *connector.REST, timeout time.Duration, endpoint string, q url.Values, header http.Header, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := rest.Request(ctx, endpoint)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if len(q) > 0 {
		query := req.URL.Query()
		for k, vs := range q {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		req.URL.RawQuery = query.Encode()
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := rest.Do(req)
	if err != nil {
		return errors.Wrap(err, "request "+req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Errorf("http status %d from %s: %s", resp.StatusCode, req.URL.Path, strings.TrimSpace(string(body)))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response of "+req.URL.Path)
	}
	return nil
}

// splitSymbol returns the base currency of a BASE/USDT symbol.
func splitSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	base := strings.TrimSuffix(s, "/"+storage.QuoteUSDT)
	if base == s || base == "" || strings.Contains(base, "/") {
		return "", errors.Wrap(ErrInvalidSymbol, symbol)
	}
	return base, nil
}

// clampLimit keeps an order book limit within 1 and the exchange maximum.
func clampLimit(limit int, maxDepth int) int {
	if limit <= 0 {
		limit = DefaultOrderbookLimit
	}
	if limit > maxDepth {
		limit = maxDepth
	}
	return limit
}

// num is the usual fallback of an adapter, absent or broken values become zero.
func num(v interface{}) *float64 {
	f := convert.Float(v, 0)
	return &f
}

// pctChange returns (price - open) / open * 100, or nil when open is not positive.
func pctChange(price, open float64) *float64 {
	if open <= 0 {
		return nil
	}
	c := (price - open) / open * 100
	return &c
}

// product returns a * b when both are non zero, zero otherwise.
func product(a, b float64) *float64 {
	if a == 0 || b == 0 {
		return storage.Float(0)
	}
	return storage.Float(a * b)
}

// truthy reads the loosely typed success flags exchanges send: true, "true", 1.
func truthy(v interface{}) bool {
	switch s := v.(type) {
	case bool:
		return s
	case string:
		return s != "" && s != "false" && s != "0"
	case float64:
		return s != 0
	}
	return false
}

// codeIs reports whether an exchange status code equals want. A missing code never matches.
func codeIs(v interface{}, want float64) bool {
	c := convert.FloatPtr(v)
	return c != nil && *c == want
}
