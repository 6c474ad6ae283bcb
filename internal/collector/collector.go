// Package collector runs the exchange adapters, keeps the ticker snapshots and
// fetch log current and answers queries over them.
package collector

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/milkywaybrain/spotgalaxy/internal/market"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultLogLimit is the number of fetch log entries returned when a caller asks for none.
const DefaultLogLimit = 20

const maxLogLimit = 500

// StatusNever marks an exchange which has no fetch log yet.
const StatusNever = "never"

// ErrInvalidRequest is returned for malformed input of a query or market list change.
var ErrInvalidRequest = errors.New("invalid request")

// Collector ties the configured adapters to the store and the log sinks.
type Collector struct {
	store       storage.Store
	adapters    map[string]exchange.TickerFetcher
	names       []string
	sinks       []storage.LogSink
	concurrency int

	// serializes fetches of the same exchange
	locks sync.Map

	now func() time.Time
}

// FetchResult is the outcome of one exchange's ticker fetch.
type FetchResult struct {
	Exchange   string `json:"exchange"`
	Status     string `json:"status"`
	PairsCount int    `json:"pairs_count"`
	Message    string `json:"message"`
}

// ExchangeStatus is the latest fetch outcome of one exchange.
type ExchangeStatus struct {
	Exchange     string     `json:"exchange"`
	LastFetch    *time.Time `json:"last_fetch"`
	Status       string     `json:"status"`
	PairsCount   int        `json:"pairs_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ExchangeInfo describes what an exchange adapter supports.
type ExchangeInfo struct {
	Name      string `json:"name"`
	Orderbook bool   `json:"orderbook"`
}

// New returns a collector over the adapters, in the given order.
// concurrency bounds how many exchanges FetchAll runs at a time.
func New(store storage.Store, adapters []exchange.TickerFetcher, sinks []storage.LogSink, concurrency int) *Collector {
	c := &Collector{
		store:       store,
		adapters:    make(map[string]exchange.TickerFetcher, len(adapters)),
		names:       make([]string, 0, len(adapters)),
		sinks:       sinks,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, a := range adapters {
		if _, ok := c.adapters[a.Name()]; ok {
			continue
		}
		c.adapters[a.Name()] = a
		c.names = append(c.names, a.Name())
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

func (c *Collector) adapter(name string) (exchange.TickerFetcher, error) {
	a, ok := c.adapters[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrap(exchange.ErrUnknownExchange, name)
	}
	return a, nil
}

func (c *Collector) lock(name string) *sync.Mutex {
	m, _ := c.locks.LoadOrStore(name, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Fetch runs the exchange's ticker fetch. A successful fetch replaces the
// exchange's snapshot, a failed one leaves it untouched. Either way the
// outcome is appended to the fetch log and mirrored to the log sinks.
// The returned error is a *exchange.FetchError when the fetch itself failed.
func (c *Collector) Fetch(ctx context.Context, name string) (FetchResult, error) {
	a, err := c.adapter(name)
	if err != nil {
		return FetchResult{}, err
	}
	mu := c.lock(a.Name())
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	tickers, err := a.FetchUSDTTickers(ctx)
	if err == nil {
		fetchedAt := c.now()
		for i := range tickers {
			tickers[i].FetchedAt = fetchedAt
		}
		err = errors.Wrap(c.store.ReplaceSnapshot(ctx, a.Name(), tickers), "store snapshot")
	}
	if err != nil {
		ferr := &exchange.FetchError{Exchange: a.Name(), Err: err}
		if !errors.Is(err, ctx.Err()) {
			logErrStack(ferr)
		}
		c.record(ctx, storage.FetchLog{Exchange: a.Name(), Status: storage.StatusError, ErrorMessage: ferr.Error()})
		return FetchResult{Exchange: a.Name(), Status: storage.StatusError, Message: ferr.Error()}, ferr
	}

	log.Info().Str("exchange", a.Name()).Int("pairs", len(tickers)).Dur("took", time.Since(start)).Msg("tickers fetched")
	c.record(ctx, storage.FetchLog{Exchange: a.Name(), Status: storage.StatusSuccess, PairsCount: len(tickers)})
	return FetchResult{
		Exchange:   a.Name(),
		Status:     storage.StatusSuccess,
		PairsCount: len(tickers),
		Message:    "Successfully fetched " + strconv.Itoa(len(tickers)) + " USDT pairs from " + a.Name(),
	}, nil
}

// record appends the log entry to the store and every sink.
// Failures here are logged only, the fetch outcome stands.
func (c *Collector) record(ctx context.Context, entry storage.FetchLog) {
	entry.FetchedAt = c.now()
	if err := c.store.AppendLog(ctx, entry); err != nil {
		logErrStack(errors.Wrap(err, "append fetch log of "+entry.Exchange))
	}
	for _, s := range c.sinks {
		if err := s.WriteLog(ctx, entry); err != nil {
			logErrStack(errors.Wrap(err, "write fetch log of "+entry.Exchange+" to sink"))
		}
	}
}

// FetchAll fetches every configured exchange, a bounded number at a time.
// Results follow the configured exchange order.
func (c *Collector) FetchAll(ctx context.Context) []FetchResult {
	results := make([]FetchResult, len(c.names))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, name := range c.names {
		i, name := i, name
		g.Go(func() error {
			results[i], _ = c.Fetch(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Tickers pages the stored snapshots of all exchanges through the market query.
func (c *Collector) Tickers(ctx context.Context, q market.Query) (market.Page, error) {
	tickers, err := c.store.ReadAllSnapshots(ctx)
	if err != nil {
		return market.Page{}, err
	}
	entries, err := c.store.MarketLists(ctx)
	if err != nil {
		return market.Page{}, err
	}
	return market.List(tickers, market.NewOverlay(entries), q)
}

// Orderbook fetches the live order book of the symbol from the exchange.
func (c *Collector) Orderbook(ctx context.Context, name string, symbol string, limit int) (storage.Orderbook, error) {
	a, err := c.adapter(name)
	if err != nil {
		return storage.Orderbook{}, err
	}
	ob, ok := a.(exchange.OrderbookFetcher)
	if !ok {
		return storage.Orderbook{}, errors.Wrap(exchange.ErrOrderbookUnsupported, a.Name())
	}
	book, err := ob.FetchOrderbook(ctx, symbol, limit)
	if err != nil {
		if errors.Is(err, exchange.ErrInvalidSymbol) {
			return storage.Orderbook{}, err
		}
		ferr := &exchange.FetchError{Exchange: a.Name(), Err: err}
		if !errors.Is(err, ctx.Err()) {
			logErrStack(ferr)
		}
		return storage.Orderbook{}, ferr
	}
	return book, nil
}

// MiniDepth summarizes the top levels of the symbol's live order book.
func (c *Collector) MiniDepth(ctx context.Context, name string, symbol string) (market.Depth, error) {
	book, err := c.Orderbook(ctx, name, symbol, market.DefaultDepthLevels)
	if err != nil {
		return market.Depth{}, err
	}
	return market.MiniDepth(book, market.DefaultDepthLevels), nil
}

// Status returns the latest fetch outcome and stored pair count of every configured exchange.
func (c *Collector) Status(ctx context.Context) ([]ExchangeStatus, error) {
	latest, err := c.store.LatestLogs(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := c.store.SnapshotCounts(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]ExchangeStatus, 0, len(c.names))
	for _, name := range c.names {
		s := ExchangeStatus{Exchange: name, Status: StatusNever, PairsCount: counts[name]}
		if l, ok := latest[name]; ok {
			fetchedAt := l.FetchedAt
			s.LastFetch = &fetchedAt
			s.Status = l.Status
			s.ErrorMessage = l.ErrorMessage
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Logs returns the newest fetch log entries, newest first.
func (c *Collector) Logs(ctx context.Context, limit int) ([]storage.FetchLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return c.store.RecentLogs(ctx, limit)
}

// Exchanges lists the configured exchanges in order.
func (c *Collector) Exchanges() []ExchangeInfo {
	infos := make([]ExchangeInfo, 0, len(c.names))
	for _, name := range c.names {
		_, ok := c.adapters[name].(exchange.OrderbookFetcher)
		infos = append(infos, ExchangeInfo{Name: name, Orderbook: ok})
	}
	return infos
}

// SetMarketList puts the exchange's symbol on the list, off any other list.
func (c *Collector) SetMarketList(ctx context.Context, entry storage.MarketListEntry) error {
	entry, err := c.normalizeEntry(entry)
	if err != nil {
		return err
	}
	if !storage.ValidList(entry.List) {
		return errors.Wrap(storage.ErrUnknownList, entry.List)
	}
	return c.store.SetMarketList(ctx, entry)
}

// RemoveMarketList takes the exchange's symbol off every list.
func (c *Collector) RemoveMarketList(ctx context.Context, exchangeName string, symbol string) error {
	entry, err := c.normalizeEntry(storage.MarketListEntry{Exchange: exchangeName, Symbol: symbol})
	if err != nil {
		return err
	}
	return c.store.RemoveMarketList(ctx, entry.Exchange, entry.Symbol)
}

func (c *Collector) normalizeEntry(entry storage.MarketListEntry) (storage.MarketListEntry, error) {
	entry.Exchange = strings.ToUpper(strings.TrimSpace(entry.Exchange))
	entry.Symbol = strings.ToUpper(strings.TrimSpace(entry.Symbol))
	entry.List = strings.ToLower(strings.TrimSpace(entry.List))
	if entry.Exchange == "" || entry.Symbol == "" {
		return entry, errors.Wrap(ErrInvalidRequest, "exchange and symbol are required")
	}
	return entry, nil
}
