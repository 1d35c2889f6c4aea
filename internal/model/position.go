package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the per-account/per-symbol exposure aggregate.
// Only the position manager mutates it.
type Position struct {
	AccountID        string           `json:"accountId" gorm:"primaryKey;type:varchar(36)"`
	Symbol           string           `json:"symbol" gorm:"primaryKey;type:varchar(20)"`
	Quantity         decimal.Decimal  `json:"quantity" gorm:"type:numeric(20,10)"`
	AvgEntryPrice    decimal.Decimal  `json:"avgEntryPrice" gorm:"type:numeric(20,10)"`
	RealizedPnl      decimal.Decimal  `json:"realizedPnl" gorm:"type:numeric(20,10)"`
	UnrealizedPnl    decimal.Decimal  `json:"unrealizedPnl" gorm:"type:numeric(20,10)"`
	Leverage         decimal.Decimal  `json:"leverage" gorm:"type:numeric(20,10)"`
	MarginRatio      *decimal.Decimal `json:"marginRatio,omitempty" gorm:"type:numeric(20,10)"`
	LiquidationPrice *decimal.Decimal `json:"liquidationPrice,omitempty" gorm:"type:numeric(20,10)"`
	Version          int64            `json:"version"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (Position) TableName() string {
	return "positions"
}

// Exposure returns the absolute notional at the given mark price.
func (p Position) Exposure(mark decimal.Decimal) decimal.Decimal {
	return p.Quantity.Abs().Mul(mark)
}

// AccountState is the exchange-side account snapshot consumed by risk checks.
type AccountState struct {
	AccountID        string          `json:"accountId"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	DailyRealizedPnl decimal.Decimal `json:"dailyRealizedPnl"`
	At               time.Time       `json:"at"`
}
