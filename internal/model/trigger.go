package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// LeafEvidence records what a leaf predicate observed at fire time.
type LeafEvidence struct {
	Kind      enum.ConditionKind `json:"kind"`
	Symbol    string             `json:"symbol"`
	Operator  enum.Operator      `json:"operator"`
	Threshold decimal.Decimal    `json:"threshold"`
	Observed  decimal.Decimal    `json:"observed"`
	Result    bool               `json:"result"`
}

// TriggerEvent is the immutable record of a condition firing.
type TriggerEvent struct {
	ID          string         `json:"id"`
	ConditionID string         `json:"conditionId"`
	Symbol      string         `json:"symbol"`
	FiredAt     time.Time      `json:"firedAt"`
	Evidence    []LeafEvidence `json:"evidence"`
}
