package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// QuoteUSDT is the only quote currency tickers are collected for.
const QuoteUSDT = "USDT"

// Fetch log statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Market lists. An (exchange, symbol) pair is in at most one of them.
const (
	ListBlacklist  = "blacklist"
	ListWhitelist  = "whitelist"
	ListWalletLock = "wallet_lock"
)

// ErrUnknownList is returned for a market list name other than the ones above.
var ErrUnknownList = errors.New("unknown market list")

// Ticker represents final form of one exchange's 24h spot ticker for a USDT pair,
// normalized from the exchange specific response and ready to store.
// Nil numeric fields mean the exchange did not report the value.
type Ticker struct {
	Exchange      string    `json:"exchange"`
	Symbol        string    `json:"symbol"`
	BaseCurrency  string    `json:"base_currency"`
	QuoteCurrency string    `json:"quote_currency"`
	Price         *float64  `json:"price"`
	Volume24h     *float64  `json:"volume_24h"`
	High24h       *float64  `json:"high_24h"`
	Low24h        *float64  `json:"low_24h"`
	Change24h     *float64  `json:"change_24h"`
	Turnover24h   *float64  `json:"turnover_24h"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// NewTicker returns a ticker for base/USDT on the exchange with no values set.
func NewTicker(exchange string, base string) Ticker {
	return Ticker{
		Exchange:      exchange,
		Symbol:        base + "/" + QuoteUSDT,
		BaseCurrency:  base,
		QuoteCurrency: QuoteUSDT,
	}
}

// Level is one price level of an order book.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// Orderbook is one exchange's live order book for a symbol.
// Asks are ascending and bids descending by price.
// Error is set instead of levels for exchanges without a public book.
type Orderbook struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Asks      []Level `json:"asks"`
	Bids      []Level `json:"bids"`
	Timestamp *int64  `json:"timestamp,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// FetchLog records the outcome of one ticker fetch.
type FetchLog struct {
	ID           uint      `json:"id"`
	Exchange     string    `json:"exchange"`
	Status       string    `json:"status"`
	PairsCount   int       `json:"pairs_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// MarketListEntry tags an exchange's symbol with one of the market lists.
type MarketListEntry struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	List     string `json:"list"`
}

// ValidList reports whether name is a known market list.
func ValidList(name string) bool {
	switch name {
	case ListBlacklist, ListWhitelist, ListWalletLock:
		return true
	}
	return false
}

// Store keeps the latest ticker snapshot of every exchange, the fetch log and the market lists.
type Store interface {
	// ReplaceSnapshot deletes every stored ticker of the exchange and inserts tickers, in one transaction.
	ReplaceSnapshot(ctx context.Context, exchange string, tickers []Ticker) error
	// ReadAllSnapshots returns the tickers of all exchanges ordered by exchange and symbol.
	ReadAllSnapshots(ctx context.Context) ([]Ticker, error)
	AppendLog(ctx context.Context, entry FetchLog) error
	// RecentLogs returns the newest limit log entries, newest first.
	RecentLogs(ctx context.Context, limit int) ([]FetchLog, error)
	// LatestLogs returns the newest log entry of every exchange which has one.
	LatestLogs(ctx context.Context) (map[string]FetchLog, error)
	// SnapshotCounts returns the number of stored tickers per exchange.
	SnapshotCounts(ctx context.Context) (map[string]int, error)
	MarketLists(ctx context.Context) ([]MarketListEntry, error)
	// SetMarketList puts the pair in the entry's list, taking it out of any other list.
	SetMarketList(ctx context.Context, entry MarketListEntry) error
	RemoveMarketList(ctx context.Context, exchange string, symbol string) error
	Close() error
}

// LogSink receives a copy of every fetch log entry.
type LogSink interface {
	WriteLog(ctx context.Context, entry FetchLog) error
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func withTimeout(ctx context.Context, sec int) (context.Context, context.CancelFunc) {
	if sec > 0 {
		return context.WithTimeout(ctx, time.Duration(sec)*time.Second)
	}
	return context.WithCancel(ctx)
}
