package market

import (
	"sort"
	"strings"

	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
)

// List filters on the market lists.
const (
	FilterHideBlacklist = "hide_blacklist"
	FilterWhitelist     = "whitelist"
	FilterBlacklist     = "blacklist"
	FilterWalletLock    = "wallet_lock"
)

// Sort columns.
const (
	SortExchange = "exchange"
	SortSymbol   = "symbol"
	SortPrice    = "price"
	SortVolume   = "volume"
	SortChange   = "change"
	SortTurnover = "turnover"
)

// Paging bounds.
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// ErrInvalidQuery is returned for a query naming an unknown filter, sort column or order.
var ErrInvalidQuery = errors.New("invalid ticker query")

// Query selects, orders and pages the ticker rows.
type Query struct {
	Exchange  string
	Search    string
	List      string
	MultiOnly bool
	Sort      string
	Desc      bool
	Page      int
	PerPage   int
}

// Normalize fills the defaults and validates the query.
func (q *Query) Normalize() error {
	q.Exchange = strings.ToUpper(strings.TrimSpace(q.Exchange))
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	switch q.List {
	case "", FilterHideBlacklist, FilterWhitelist, FilterBlacklist, FilterWalletLock:
	default:
		return errors.Wrapf(ErrInvalidQuery, "unknown list filter %q", q.List)
	}
	switch q.Sort {
	case "":
		q.Sort = SortSymbol
	case SortExchange, SortSymbol, SortPrice, SortVolume, SortChange, SortTurnover:
	default:
		return errors.Wrapf(ErrInvalidQuery, "unknown sort column %q", q.Sort)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return nil
}

// Peer is the compact quote of the same symbol on another exchange.
type Peer struct {
	Exchange    string   `json:"exchange"`
	Price       *float64 `json:"price"`
	Change24h   *float64 `json:"change_24h"`
	Turnover24h *float64 `json:"turnover_24h"`
}

// Row is one ticker annotated with its cross exchange context.
type Row struct {
	storage.Ticker
	Flags
	Peers         []Peer  `json:"peers"`
	ExchangeCount int     `json:"exchange_count"`
	Comparable    bool    `json:"comparable"`
	TotalTurnover float64 `json:"total_turnover_24h"`
}

// Page is one page of rows plus the figures of the whole filtered set.
type Page struct {
	Rows            []Row    `json:"data"`
	Total           int      `json:"total"`
	Page            int      `json:"page"`
	PerPage         int      `json:"per_page"`
	Pages           int      `json:"pages"`
	ComparablePairs int      `json:"comparable_pairs"`
	Exchanges       []string `json:"exchanges"`
}

// List runs the query over the full snapshot set.
// Exchange counts and peers are always taken from the full set, while the
// comparable pairs figure counts the symbols of the filtered rows only.
func List(tickers []storage.Ticker, overlay *Overlay, q Query) (Page, error) {
	if err := q.Normalize(); err != nil {
		return Page{}, err
	}
	view := Group(tickers)

	exchangeSet := make(map[string]struct{})
	rows := make([]storage.Ticker, 0, len(tickers))
	for _, t := range tickers {
		exchangeSet[t.Exchange] = struct{}{}
		if keep(t, view, overlay, q) {
			rows = append(rows, t)
		}
	}

	comparable := make(map[string]struct{})
	for _, t := range rows {
		if view.Comparable(t.Symbol) {
			comparable[t.Symbol] = struct{}{}
		}
	}

	sortRows(rows, q.Sort, q.Desc)

	page := Page{
		Total:           len(rows),
		Page:            q.Page,
		PerPage:         q.PerPage,
		Pages:           (len(rows) + q.PerPage - 1) / q.PerPage,
		ComparablePairs: len(comparable),
		Exchanges:       make([]string, 0, len(exchangeSet)),
		Rows:            []Row{},
	}
	for e := range exchangeSet {
		page.Exchanges = append(page.Exchanges, e)
	}
	sort.Strings(page.Exchanges)

	start := (q.Page - 1) * q.PerPage
	if start >= len(rows) {
		return page, nil
	}
	end := start + q.PerPage
	if end > len(rows) {
		end = len(rows)
	}
	for _, t := range rows[start:end] {
		page.Rows = append(page.Rows, annotate(t, view, overlay))
	}
	return page, nil
}

func keep(t storage.Ticker, view *View, overlay *Overlay, q Query) bool {
	if q.Exchange != "" && t.Exchange != q.Exchange {
		return false
	}
	if q.Search != "" &&
		!strings.Contains(strings.ToLower(t.Symbol), q.Search) &&
		!strings.Contains(strings.ToLower(t.BaseCurrency), q.Search) {
		return false
	}
	switch q.List {
	case FilterHideBlacklist:
		if overlay.Has(storage.ListBlacklist, t.Exchange, t.Symbol) {
			return false
		}
	case FilterWhitelist:
		if !overlay.Has(storage.ListWhitelist, t.Exchange, t.Symbol) {
			return false
		}
	case FilterBlacklist:
		if !overlay.Has(storage.ListBlacklist, t.Exchange, t.Symbol) {
			return false
		}
	case FilterWalletLock:
		if !overlay.Has(storage.ListWalletLock, t.Exchange, t.Symbol) {
			return false
		}
	}
	if q.MultiOnly && !view.Comparable(t.Symbol) {
		return false
	}
	return true
}

func annotate(t storage.Ticker, view *View, overlay *Overlay) Row {
	peers := view.Peers(t)
	r := Row{
		Ticker:        t,
		Flags:         overlay.Flags(t.Exchange, t.Symbol),
		Peers:         make([]Peer, 0, len(peers)),
		ExchangeCount: view.ExchangeCount(t.Symbol),
		Comparable:    view.Comparable(t.Symbol),
		TotalTurnover: view.TotalTurnover(t.Symbol),
	}
	for _, p := range peers {
		r.Peers = append(r.Peers, Peer{
			Exchange:    p.Exchange,
			Price:       p.Price,
			Change24h:   p.Change24h,
			Turnover24h: p.Turnover24h,
		})
	}
	return r
}

// sortRows orders the rows in place. Ties keep their snapshot order.
func sortRows(rows []storage.Ticker, column string, desc bool) {
	var less func(a, b storage.Ticker) bool
	switch column {
	case SortExchange:
		less = func(a, b storage.Ticker) bool { return a.Exchange < b.Exchange }
	case SortPrice:
		less = func(a, b storage.Ticker) bool { return value(a.Price) < value(b.Price) }
	case SortVolume:
		less = func(a, b storage.Ticker) bool { return value(a.Volume24h) < value(b.Volume24h) }
	case SortChange:
		less = func(a, b storage.Ticker) bool { return value(a.Change24h) < value(b.Change24h) }
	case SortTurnover:
		less = func(a, b storage.Ticker) bool { return value(a.Turnover24h) < value(b.Turnover24h) }
	default:
		less = func(a, b storage.Ticker) bool { return a.Symbol < b.Symbol }
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// value reads an absent figure as zero for ordering.
func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
