package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one normalized market data point for a symbol.
// IndicatorValues carries upstream-computed technical indicators by name.
type Tick struct {
	Symbol          string
	Price           decimal.Decimal
	Bid             decimal.Decimal
	Ask             decimal.Decimal
	Volume          decimal.Decimal
	IndicatorValues map[string]decimal.Decimal
	MarketAlert     bool
	At              time.Time
}

// Spread returns ask-bid, or zero when either side is missing.
func (t Tick) Spread() decimal.Decimal {
	if t.Bid.IsZero() || t.Ask.IsZero() {
		return decimal.Zero
	}
	return t.Ask.Sub(t.Bid)
}

// Mid returns the quote midpoint, falling back to the last price.
func (t Tick) Mid() decimal.Decimal {
	if t.Bid.IsZero() || t.Ask.IsZero() {
		return t.Price
	}
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}
