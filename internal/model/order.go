package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// AutoOrder binds an entry condition to an order template owned by a strategy.
type AutoOrder struct {
	ID               string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID           string           `json:"userId" gorm:"type:varchar(36);index"`
	AccountID        string           `json:"accountId" gorm:"type:varchar(36);index"`
	StrategyID       string           `json:"strategyId" gorm:"type:varchar(36);index"`
	EntryConditionID string           `json:"entryConditionId" gorm:"type:varchar(36)"`
	Symbol           string           `json:"symbol" gorm:"type:varchar(20);index"`
	Side             enum.OrderSide   `json:"side"`
	Quantity         decimal.Decimal  `json:"quantity" gorm:"type:numeric(20,10)"`
	OrderType        enum.OrderType   `json:"orderType"`
	LimitPrice       decimal.Decimal  `json:"limitPrice" gorm:"type:numeric(20,10)"`
	StopLossPrice    *decimal.Decimal `json:"stopLossPrice,omitempty" gorm:"type:numeric(20,10)"`
	TakeProfitPrice  *decimal.Decimal `json:"takeProfitPrice,omitempty" gorm:"type:numeric(20,10)"`
	MaxSlippage      decimal.Decimal  `json:"maxSlippage" gorm:"type:numeric(20,10)"`
	MaxSpread        decimal.Decimal  `json:"maxSpread" gorm:"type:numeric(20,10)"`
	IsActive         bool             `json:"isActive"`
	IsPaused         bool             `json:"isPaused"`
	ExpiresAt        *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (AutoOrder) TableName() string {
	return "auto_orders"
}

// Runnable reports whether the binding may produce orders right now.
func (a AutoOrder) Runnable(now time.Time) bool {
	if !a.IsActive || a.IsPaused {
		return false
	}
	if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return false
	}
	return true
}

// Order is the execution engine's view of a single exchange order.
type Order struct {
	ID             string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AutoOrderID    *string          `json:"autoOrderId,omitempty" gorm:"type:varchar(36);index"`
	TriggerEventID *string          `json:"triggerEventId,omitempty" gorm:"type:varchar(36)"`
	AccountID      string           `json:"accountId" gorm:"type:varchar(36);index"`
	StrategyID     string           `json:"strategyId" gorm:"type:varchar(36);index"`
	Symbol         string           `json:"symbol" gorm:"type:varchar(20);index"`
	Side           enum.OrderSide   `json:"side"`
	Type           enum.OrderType   `json:"type"`
	Price          decimal.Decimal  `json:"price" gorm:"type:numeric(20,10)"`
	Quantity       decimal.Decimal  `json:"quantity" gorm:"type:numeric(20,10)"`
	Status         enum.OrderStatus `json:"status" gorm:"index"`
	FilledQuantity decimal.Decimal  `json:"filledQuantity" gorm:"type:numeric(20,10)"`
	AveragePrice   decimal.Decimal  `json:"averagePrice" gorm:"type:numeric(20,10)"`
	RetryCount     int              `json:"retryCount"`
	Reason         string           `json:"reason,omitempty" gorm:"type:text"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// LeavesQuantity returns the unfilled remainder.
func (o Order) LeavesQuantity() decimal.Decimal {
	leaves := o.Quantity.Sub(o.FilledQuantity)
	if leaves.IsNegative() {
		return decimal.Zero
	}
	return leaves
}

// Notional returns price*quantity for limit orders, reference-priced otherwise.
func (o Order) Notional(reference decimal.Decimal) decimal.Decimal {
	price := o.Price
	if o.Type == enum.OrderTypeMarket || price.IsZero() {
		price = reference
	}
	return price.Mul(o.Quantity)
}
