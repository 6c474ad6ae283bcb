package exchange

import (
	"sort"

	"github.com/milkywaybrain/spotgalaxy/internal/convert"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
)

var (
	levelPriceKeys  = []string{"price", "rate", "p"}
	levelAmountKeys = []string{"quantity", "amount", "volume", "left", "size", "qty", "q"}
)

// parseLevels reads order book levels sent in any of the shapes exchanges use:
// [[price, amount], ...], [{"price": p, "quantity": a}, ...] or a flat
// [price, amount, price, amount, ...] array.
func parseLevels(raw []interface{}) []storage.Level {
	if len(raw) == 0 {
		return nil
	}
	switch raw[0].(type) {
	case []interface{}, map[string]interface{}:
		levels := make([]storage.Level, 0, len(raw))
		for _, item := range raw {
			levels = append(levels, parseLevel(item))
		}
		return levels
	}
	levels := make([]storage.Level, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		levels = append(levels, storage.Level{
			Price:  convert.Float(raw[i], 0),
			Amount: convert.Float(raw[i+1], 0),
		})
	}
	return levels
}

func parseLevel(item interface{}) storage.Level {
	switch l := item.(type) {
	case []interface{}:
		if len(l) < 2 {
			return storage.Level{}
		}
		return storage.Level{Price: convert.Float(l[0], 0), Amount: convert.Float(l[1], 0)}
	case map[string]interface{}:
		return storage.Level{Price: firstKey(l, levelPriceKeys), Amount: firstKey(l, levelAmountKeys)}
	}
	return storage.Level{}
}

// firstKey returns the first non zero value among keys, an empty or zero
// quantity falls through to the next key.
func firstKey(m map[string]interface{}, keys []string) float64 {
	for _, k := range keys {
		if f := convert.Float(m[k], 0); f != 0 {
			return f
		}
	}
	return 0
}

// newOrderbook drops empty levels, sorts asks ascending and bids descending
// by price and cuts both sides to limit.
func newOrderbook(exchange string, symbol string, asks []storage.Level, bids []storage.Level, limit int) storage.Orderbook {
	asks = cleanLevels(asks)
	bids = cleanLevels(bids)
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	if limit > 0 {
		if len(asks) > limit {
			asks = asks[:limit]
		}
		if len(bids) > limit {
			bids = bids[:limit]
		}
	}
	return storage.Orderbook{
		Exchange: exchange,
		Symbol:   symbol,
		Asks:     asks,
		Bids:     bids,
	}
}

func cleanLevels(levels []storage.Level) []storage.Level {
	out := make([]storage.Level, 0, len(levels))
	for _, l := range levels {
		if l.Price > 0 && l.Amount > 0 {
			out = append(out, l)
		}
	}
	return out
}
