package model

import (
	"time"

	"main/internal/model/enum"
)

// RiskAlert is a deliverable notification. Escalation mutates severity and
// the channel set over time until the alert is acknowledged or resolved.
type RiskAlert struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Severity        enum.Severity  `json:"severity" gorm:"index"`
	Title           string         `json:"title" gorm:"type:varchar(200)"`
	Message         string         `json:"message" gorm:"type:text"`
	Channels        []enum.Channel `json:"channels" gorm:"serializer:json"`
	Scope           StopScope      `json:"scope" gorm:"serializer:json"`
	IsAcknowledged  bool           `json:"isAcknowledged"`
	IsResolved      bool           `json:"isResolved"`
	EscalatedCount  int            `json:"escalatedCount"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastDeliveredAt *time.Time     `json:"lastDeliveredAt,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledgedAt,omitempty"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	Version         int64          `json:"version"`
}

func (RiskAlert) TableName() string {
	return "risk_alerts"
}

// UrgencyScore ranks alerts for display. Severity dominates, age breaks
// ties; it never gates delivery.
func (a RiskAlert) UrgencyScore(now time.Time) float64 {
	age := now.Sub(a.CreatedAt).Minutes()
	if age < 0 {
		age = 0
	}
	score := float64(a.Severity) * 1000
	if age > 999 {
		age = 999
	}
	return score + age
}
