package model

import "github.com/shopspring/decimal"

// RiskCheckResult is produced fresh for every submission attempt and is
// never authoritative beyond the attempt it guarded.
type RiskCheckResult struct {
	Allowed        bool     `json:"allowed"`
	BlockingReason string   `json:"blockingReason,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// RiskConfig holds per-strategy risk limits.
type RiskConfig struct {
	MaxOrderSize    decimal.Decimal `json:"maxOrderSize"`
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
	MaxExposure     decimal.Decimal `json:"maxExposure"`
	MaxSlippage     decimal.Decimal `json:"maxSlippage"`
	MaxSpread       decimal.Decimal `json:"maxSpread"`
	DailyLossLimit  decimal.Decimal `json:"dailyLossLimit"`
	OrderRateLimit  int             `json:"orderRateLimit"`
	OrderRateWindow int             `json:"orderRateWindowSeconds"`
}
