package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// EmergencyStopRecord tracks one kill-switch activation.
// At most one ACTIVE record may exist per (level, targetId).
type EmergencyStopRecord struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Level           enum.StopLevel  `json:"level" gorm:"uniqueIndex:idx_stop_scope,where:status = 1"`
	TargetID        string          `json:"targetId" gorm:"type:varchar(36);uniqueIndex:idx_stop_scope,where:status = 1"`
	Reason          string          `json:"reason" gorm:"type:text"`
	Status          enum.StopStatus `json:"status" gorm:"index"`
	TriggeredBy     string          `json:"triggeredBy" gorm:"type:varchar(36)"`
	TriggeredAt     time.Time       `json:"triggeredAt"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	OrdersAffected  int             `json:"ordersAffected"`
	CancelFailed    int             `json:"cancelFailed"`
	AmountPreserved decimal.Decimal `json:"amountPreserved" gorm:"type:numeric(20,10)"`
	Version         int64           `json:"version"`
}

func (EmergencyStopRecord) TableName() string {
	return "emergency_stop_records"
}

// Covers reports whether the record's scope applies to the given target set.
func (r EmergencyStopRecord) Covers(scope StopScope) bool {
	switch r.Level {
	case enum.StopLevelGlobal:
		return true
	case enum.StopLevelUser:
		return r.TargetID == scope.UserID
	case enum.StopLevelAccount:
		return r.TargetID == scope.AccountID
	case enum.StopLevelSymbol:
		return r.TargetID == scope.Symbol
	case enum.StopLevelStrategy:
		return r.TargetID == scope.StrategyID
	default:
		return false
	}
}

// StopScope identifies everything an order belongs to, so stop checks can
// match records at any level of the hierarchy.
type StopScope struct {
	UserID     string `json:"userId"`
	AccountID  string `json:"accountId"`
	Symbol     string `json:"symbol"`
	StrategyID string `json:"strategyId"`
}
