package market

import (
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/shopspring/decimal"
)

// DefaultDepthLevels is the number of levels a mini depth sums per side.
const DefaultDepthLevels = 5

// Depth summarizes the top of an order book.
// Best prices and spread are absent when a side of the book is empty.
type Depth struct {
	Exchange  string   `json:"exchange"`
	Symbol    string   `json:"symbol"`
	Levels    int      `json:"levels"`
	BidValue  float64  `json:"bid_value"`
	AskValue  float64  `json:"ask_value"`
	BestBid   *float64 `json:"best_bid"`
	BestAsk   *float64 `json:"best_ask"`
	Spread    *float64 `json:"spread"`
	SpreadPct *float64 `json:"spread_pct"`
}

// MiniDepth sums price * amount over the top levels of each side and
// computes the spread, as a percent of the best ask.
func MiniDepth(ob storage.Orderbook, levels int) Depth {
	if levels <= 0 {
		levels = DefaultDepthLevels
	}
	d := Depth{
		Exchange: ob.Exchange,
		Symbol:   ob.Symbol,
		Levels:   levels,
		BidValue: sideValue(ob.Bids, levels),
		AskValue: sideValue(ob.Asks, levels),
	}
	if len(ob.Bids) > 0 {
		d.BestBid = storage.Float(ob.Bids[0].Price)
	}
	if len(ob.Asks) > 0 {
		d.BestAsk = storage.Float(ob.Asks[0].Price)
	}
	if d.BestBid == nil || d.BestAsk == nil || *d.BestAsk <= 0 {
		return d
	}

	ask := decimal.NewFromFloat(*d.BestAsk)
	spread := ask.Sub(decimal.NewFromFloat(*d.BestBid))
	d.Spread = storage.Float(spread.InexactFloat64())
	d.SpreadPct = storage.Float(spread.Div(ask).Mul(decimal.NewFromInt(100)).InexactFloat64())
	return d
}

func sideValue(side []storage.Level, levels int) float64 {
	if len(side) > levels {
		side = side[:levels]
	}
	total := decimal.Zero
	for _, l := range side {
		total = total.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromFloat(l.Amount)))
	}
	return total.InexactFloat64()
}
