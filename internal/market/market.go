// Package market joins the ticker snapshots of all exchanges by symbol and
// answers the cross exchange questions asked of them.
package market

import (
	"sort"

	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

// View is the symbol -> exchange -> ticker grouping of one snapshot set.
// It is built fresh per query and never mutated afterwards.
type View struct {
	bySymbol map[string]map[string]storage.Ticker
}

// Group builds the view in a single pass over the tickers.
// If an exchange reports a symbol twice, the first row is kept.
func Group(tickers []storage.Ticker) *View {
	v := &View{bySymbol: make(map[string]map[string]storage.Ticker)}
	for _, t := range tickers {
		exchanges, ok := v.bySymbol[t.Symbol]
		if !ok {
			exchanges = make(map[string]storage.Ticker)
			v.bySymbol[t.Symbol] = exchanges
		}
		if _, dup := exchanges[t.Exchange]; !dup {
			exchanges[t.Exchange] = t
		}
	}
	return v
}

// Ticker returns the exchange's row for the symbol.
func (v *View) Ticker(symbol string, exchange string) (storage.Ticker, bool) {
	t, ok := v.bySymbol[symbol][exchange]
	return t, ok
}

// Exchanges returns the exchanges listing the symbol, sorted.
func (v *View) Exchanges(symbol string) []string {
	exchanges := make([]string, 0, len(v.bySymbol[symbol]))
	for e := range v.bySymbol[symbol] {
		exchanges = append(exchanges, e)
	}
	sort.Strings(exchanges)
	return exchanges
}

// Peers returns the same symbol rows of every other exchange, sorted by exchange.
func (v *View) Peers(t storage.Ticker) []storage.Ticker {
	exchanges := v.bySymbol[t.Symbol]
	peers := make([]storage.Ticker, 0, len(exchanges))
	for _, e := range v.Exchanges(t.Symbol) {
		if e != t.Exchange {
			peers = append(peers, exchanges[e])
		}
	}
	return peers
}

// ExchangeCount is the number of exchanges listing the symbol.
func (v *View) ExchangeCount(symbol string) int {
	return len(v.bySymbol[symbol])
}

// Comparable reports whether more than one exchange lists the symbol.
func (v *View) Comparable(symbol string) bool {
	return v.ExchangeCount(symbol) > 1
}

// Symbols returns every symbol of the view, sorted.
func (v *View) Symbols() []string {
	symbols := make([]string, 0, len(v.bySymbol))
	for s := range v.bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ComparableSymbols returns the sorted symbols listed by more than one exchange.
func (v *View) ComparableSymbols() []string {
	var symbols []string
	for s, exchanges := range v.bySymbol {
		if len(exchanges) > 1 {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// TotalTurnover sums the known 24h turnover of the symbol across exchanges.
func (v *View) TotalTurnover(symbol string) float64 {
	var total float64
	for _, t := range v.bySymbol[symbol] {
		if t.Turnover24h != nil {
			total += *t.Turnover24h
		}
	}
	return total
}
