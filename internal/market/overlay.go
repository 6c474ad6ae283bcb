package market

import "github.com/milkywaybrain/spotgalaxy/internal/storage"

type listKey struct {
	exchange string
	symbol   string
}

// Overlay holds the manual market lists as sets of (exchange, symbol).
// A nil Overlay has no entries.
type Overlay struct {
	lists map[string]map[listKey]struct{}
}

// Flags tells which market lists a row belongs to.
type Flags struct {
	Blacklisted  bool `json:"blacklisted"`
	Whitelisted  bool `json:"whitelisted"`
	WalletLocked bool `json:"wallet_locked"`
}

// NewOverlay indexes the entries by list.
func NewOverlay(entries []storage.MarketListEntry) *Overlay {
	o := &Overlay{lists: make(map[string]map[listKey]struct{}, 3)}
	for _, e := range entries {
		set, ok := o.lists[e.List]
		if !ok {
			set = make(map[listKey]struct{})
			o.lists[e.List] = set
		}
		set[listKey{exchange: e.Exchange, symbol: e.Symbol}] = struct{}{}
	}
	return o
}

// Has reports whether (exchange, symbol) is on the list.
func (o *Overlay) Has(list string, exchange string, symbol string) bool {
	if o == nil {
		return false
	}
	_, ok := o.lists[list][listKey{exchange: exchange, symbol: symbol}]
	return ok
}

// Flags returns the list membership of (exchange, symbol).
func (o *Overlay) Flags(exchange string, symbol string) Flags {
	return Flags{
		Blacklisted:  o.Has(storage.ListBlacklist, exchange, symbol),
		Whitelisted:  o.Has(storage.ListWhitelist, exchange, symbol),
		WalletLocked: o.Has(storage.ListWalletLock, exchange, symbol),
	}
}
