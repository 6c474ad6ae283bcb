package collector

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/milkywaybrain/spotgalaxy/internal/market"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

type fakeAdapter struct {
	name    string
	tickers []storage.Ticker
	err     error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchUSDTTickers(_ context.Context) ([]storage.Ticker, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]storage.Ticker, len(f.tickers))
	copy(out, f.tickers)
	return out, nil
}

type fakeBookAdapter struct {
	fakeAdapter
	book    storage.Orderbook
	bookErr error
}

func (f *fakeBookAdapter) FetchOrderbook(_ context.Context, symbol string, _ int) (storage.Orderbook, error) {
	if f.bookErr != nil {
		return storage.Orderbook{}, f.bookErr
	}
	b := f.book
	b.Symbol = symbol
	return b, nil
}

type memorySink struct {
	mu      sync.Mutex
	entries []storage.FetchLog
}

func (m *memorySink) WriteLog(_ context.Context, entry storage.FetchLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func setupTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewSQLite(&config.SQLite{Path: filepath.Join(t.TempDir(), "collector.db")})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTickers(exchange string, bases ...string) []storage.Ticker {
	tickers := make([]storage.Ticker, 0, len(bases))
	for i, b := range bases {
		t := storage.NewTicker(exchange, b)
		t.Price = storage.Float(float64(i + 1))
		t.Turnover24h = storage.Float(float64(10 * (i + 1)))
		tickers = append(tickers, t)
	}
	return tickers
}

func snapshotOf(t *testing.T, s storage.Store, exchange string) []storage.Ticker {
	t.Helper()
	all, err := s.ReadAllSnapshots(context.Background())
	if err != nil {
		t.Fatalf("read snapshots: %v", err)
	}
	var out []storage.Ticker
	for _, tk := range all {
		if tk.Exchange == exchange {
			out = append(out, tk)
		}
	}
	return out
}

func TestFetchReplacesSnapshot(t *testing.T) {
	store := setupTestStore(t)
	sink := &memorySink{}
	lbank := &fakeAdapter{name: "LBANK", tickers: testTickers("LBANK", "BTC", "ETH")}
	c := New(store, []exchange.TickerFetcher{lbank}, []storage.LogSink{sink}, 2)
	ctx := context.Background()

	res, err := c.Fetch(ctx, "lbank")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Status != storage.StatusSuccess || res.PairsCount != 2 || res.Exchange != "LBANK" {
		t.Errorf("result = %+v", res)
	}
	got := snapshotOf(t, store, "LBANK")
	if len(got) != 2 {
		t.Fatalf("stored %d tickers, want 2", len(got))
	}
	if got[0].FetchedAt.IsZero() {
		t.Errorf("fetched at not stamped")
	}

	lbank.tickers = testTickers("LBANK", "SOL")
	if _, err = c.Fetch(ctx, "LBANK"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	got = snapshotOf(t, store, "LBANK")
	if len(got) != 1 || got[0].Symbol != "SOL/USDT" {
		t.Errorf("snapshot not replaced: %+v", got)
	}

	lbank.tickers = nil
	if _, err = c.Fetch(ctx, "LBANK"); err != nil {
		t.Fatalf("empty fetch: %v", err)
	}
	if got = snapshotOf(t, store, "LBANK"); len(got) != 0 {
		t.Errorf("empty fetch left %d rows", len(got))
	}

	if len(sink.entries) != 3 {
		t.Errorf("sink got %d entries, want 3", len(sink.entries))
	}
}

func TestFetchFailureKeepsSnapshot(t *testing.T) {
	store := setupTestStore(t)
	sink := &memorySink{}
	xt := &fakeAdapter{name: "XT", tickers: testTickers("XT", "BTC", "ETH")}
	c := New(store, []exchange.TickerFetcher{xt}, []storage.LogSink{sink}, 1)
	ctx := context.Background()

	if _, err := c.Fetch(ctx, "XT"); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	xt.err = errors.New("connection refused")
	res, err := c.Fetch(ctx, "XT")
	var ferr *exchange.FetchError
	if !errors.As(err, &ferr) || ferr.Exchange != "XT" {
		t.Fatalf("err = %v, want FetchError", err)
	}
	if res.Status != storage.StatusError || res.Message != "fetch failed for exchange XT: connection refused" {
		t.Errorf("result = %+v", res)
	}
	if got := snapshotOf(t, store, "XT"); len(got) != 2 {
		t.Errorf("failed fetch changed the snapshot: %d rows", len(got))
	}

	logs, err := c.Logs(ctx, 0)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Status != storage.StatusError || logs[0].ErrorMessage != res.Message {
		t.Errorf("logs = %+v", logs)
	}
	if len(sink.entries) != 2 || sink.entries[1].Status != storage.StatusError {
		t.Errorf("sink entries = %+v", sink.entries)
	}
}

func TestFetchUnknownExchange(t *testing.T) {
	c := New(setupTestStore(t), nil, nil, 1)
	if _, err := c.Fetch(context.Background(), "NOPE"); !errors.Is(err, exchange.ErrUnknownExchange) {
		t.Fatalf("err = %v, want ErrUnknownExchange", err)
	}
}

func TestFetchAll(t *testing.T) {
	store := setupTestStore(t)
	adapters := []exchange.TickerFetcher{
		&fakeAdapter{name: "XT", tickers: testTickers("XT", "BTC")},
		&fakeAdapter{name: "LBANK", err: errors.New("boom")},
		&fakeAdapter{name: "GATEIO", tickers: testTickers("GATEIO", "BTC", "ETH")},
	}
	c := New(store, adapters, nil, 2)

	results := c.FetchAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	want := []struct {
		exchange string
		status   string
		pairs    int
	}{
		{"XT", storage.StatusSuccess, 1},
		{"LBANK", storage.StatusError, 0},
		{"GATEIO", storage.StatusSuccess, 2},
	}
	for i, w := range want {
		r := results[i]
		if r.Exchange != w.exchange || r.Status != w.status || r.PairsCount != w.pairs {
			t.Errorf("result %d = %+v, want %+v", i, r, w)
		}
	}
}

func TestStatus(t *testing.T) {
	store := setupTestStore(t)
	c := New(store, []exchange.TickerFetcher{
		&fakeAdapter{name: "XT", tickers: testTickers("XT", "BTC", "ETH")},
		&fakeAdapter{name: "LBANK", err: errors.New("timeout")},
		&fakeAdapter{name: "NIZA"},
	}, nil, 1)
	ctx := context.Background()

	_, _ = c.Fetch(ctx, "XT")
	_, _ = c.Fetch(ctx, "LBANK")

	statuses, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	xt, lbank, niza := statuses[0], statuses[1], statuses[2]
	if xt.Status != storage.StatusSuccess || xt.PairsCount != 2 || xt.LastFetch == nil {
		t.Errorf("XT status = %+v", xt)
	}
	if lbank.Status != storage.StatusError || lbank.ErrorMessage == "" || lbank.PairsCount != 0 {
		t.Errorf("LBANK status = %+v", lbank)
	}
	if niza.Status != StatusNever || niza.LastFetch != nil {
		t.Errorf("NIZA status = %+v", niza)
	}
}

func TestTickersWithMarketLists(t *testing.T) {
	store := setupTestStore(t)
	c := New(store, []exchange.TickerFetcher{
		&fakeAdapter{name: "XT", tickers: testTickers("XT", "BTC", "ETH")},
		&fakeAdapter{name: "LBANK", tickers: testTickers("LBANK", "BTC")},
	}, nil, 2)
	ctx := context.Background()
	c.FetchAll(ctx)

	err := c.SetMarketList(ctx, storage.MarketListEntry{Exchange: "lbank", Symbol: "btc/usdt", List: "Blacklist"})
	if err != nil {
		t.Fatalf("set list: %v", err)
	}

	page, err := c.Tickers(ctx, market.Query{List: market.FilterHideBlacklist})
	if err != nil {
		t.Fatalf("tickers: %v", err)
	}
	if page.Total != 2 || page.ComparablePairs != 1 {
		t.Errorf("page = %+v", page)
	}
	for _, r := range page.Rows {
		if r.Exchange == "LBANK" {
			t.Errorf("blacklisted LBANK row kept")
		}
	}

	if err = c.RemoveMarketList(ctx, "LBANK", "BTC/USDT"); err != nil {
		t.Fatalf("remove list: %v", err)
	}
	page, _ = c.Tickers(ctx, market.Query{List: market.FilterHideBlacklist})
	if page.Total != 3 {
		t.Errorf("total after removal = %d, want 3", page.Total)
	}

	if _, err = c.Tickers(ctx, market.Query{Sort: "bogus"}); !errors.Is(err, market.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestMarketListValidation(t *testing.T) {
	c := New(setupTestStore(t), nil, nil, 1)
	ctx := context.Background()

	err := c.SetMarketList(ctx, storage.MarketListEntry{Exchange: "XT", Symbol: "BTC/USDT", List: "greylist"})
	if !errors.Is(err, storage.ErrUnknownList) {
		t.Errorf("err = %v, want ErrUnknownList", err)
	}
	err = c.SetMarketList(ctx, storage.MarketListEntry{Exchange: "XT", List: storage.ListWhitelist})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	if err = c.RemoveMarketList(ctx, " ", "BTC/USDT"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestOrderbook(t *testing.T) {
	book := &fakeBookAdapter{
		fakeAdapter: fakeAdapter{name: "GATEIO"},
		book: storage.Orderbook{
			Exchange: "GATEIO",
			Asks:     []storage.Level{{Price: 100, Amount: 2}},
			Bids:     []storage.Level{{Price: 98, Amount: 1}},
		},
	}
	c := New(setupTestStore(t), []exchange.TickerFetcher{
		book,
		&fakeAdapter{name: "LBANK"},
	}, nil, 1)
	ctx := context.Background()

	ob, err := c.Orderbook(ctx, "gateio", "BTC/USDT", 10)
	if err != nil {
		t.Fatalf("orderbook: %v", err)
	}
	if ob.Symbol != "BTC/USDT" || len(ob.Asks) != 1 {
		t.Errorf("book = %+v", ob)
	}

	d, err := c.MiniDepth(ctx, "GATEIO", "BTC/USDT")
	if err != nil {
		t.Fatalf("mini depth: %v", err)
	}
	if d.AskValue != 200 || d.BidValue != 98 || d.SpreadPct == nil || *d.SpreadPct != 2 {
		t.Errorf("depth = %+v", d)
	}

	if _, err = c.Orderbook(ctx, "LBANK", "BTC/USDT", 10); !errors.Is(err, exchange.ErrOrderbookUnsupported) {
		t.Errorf("err = %v, want ErrOrderbookUnsupported", err)
	}
	if _, err = c.Orderbook(ctx, "NOPE", "BTC/USDT", 10); !errors.Is(err, exchange.ErrUnknownExchange) {
		t.Errorf("err = %v, want ErrUnknownExchange", err)
	}

	book.bookErr = errors.Wrap(exchange.ErrInvalidSymbol, "BTCUSDT")
	if _, err = c.Orderbook(ctx, "GATEIO", "BTCUSDT", 10); !errors.Is(err, exchange.ErrInvalidSymbol) {
		t.Errorf("err = %v, want ErrInvalidSymbol", err)
	}

	book.bookErr = errors.New("http status 502")
	_, err = c.Orderbook(ctx, "GATEIO", "BTC/USDT", 10)
	var ferr *exchange.FetchError
	if !errors.As(err, &ferr) || ferr.Exchange != "GATEIO" {
		t.Errorf("err = %v, want FetchError", err)
	}
}

func TestExchanges(t *testing.T) {
	c := New(setupTestStore(t), []exchange.TickerFetcher{
		&fakeAdapter{name: "LBANK"},
		&fakeBookAdapter{fakeAdapter: fakeAdapter{name: "XT"}},
		&fakeAdapter{name: "LBANK"},
	}, nil, 1)
	infos := c.Exchanges()
	if len(infos) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(infos))
	}
	if infos[0] != (ExchangeInfo{Name: "LBANK"}) || infos[1] != (ExchangeInfo{Name: "XT", Orderbook: true}) {
		t.Errorf("infos = %+v", infos)
	}
}

func TestLogsLimit(t *testing.T) {
	c := New(setupTestStore(t), []exchange.TickerFetcher{&fakeAdapter{name: "XT"}}, nil, 1)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, _ = c.Fetch(ctx, "XT")
	}
	logs, err := c.Logs(ctx, 0)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != DefaultLogLimit {
		t.Errorf("got %d logs, want %d", len(logs), DefaultLogLimit)
	}
	logs, _ = c.Logs(ctx, 3)
	if len(logs) != 3 {
		t.Errorf("got %d logs, want 3", len(logs))
	}
}
