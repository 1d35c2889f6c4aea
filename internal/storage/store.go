package storage

import (
	"context"

	"main/internal/model"
)

// Stores provide durable CRUD with optimistic-versioned updates. Schema and
// migration ownership is external; AutoMigrate is opt-in for dev setups.

type OrderStore interface {
	SaveOrder(ctx context.Context, order model.Order) error
	// UpdateOrder applies an optimistic update: order.Version is the new
	// version, and the stored row must still be at order.Version-1.
	UpdateOrder(ctx context.Context, order model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
}

type PositionStore interface {
	SavePosition(ctx context.Context, position model.Position) error
	ListPositions(ctx context.Context) ([]model.Position, error)
}

type StopStore interface {
	SaveStop(ctx context.Context, record model.EmergencyStopRecord) error
	UpdateStop(ctx context.Context, record model.EmergencyStopRecord) error
	ListStops(ctx context.Context) ([]model.EmergencyStopRecord, error)
}

type AlertStore interface {
	SaveAlert(ctx context.Context, alert model.RiskAlert) error
	UpdateAlert(ctx context.Context, alert model.RiskAlert) error
	GetAlert(ctx context.Context, id string) (model.RiskAlert, error)
	ListAlerts(ctx context.Context) ([]model.RiskAlert, error)
}

type AutoOrderStore interface {
	SaveAutoOrder(ctx context.Context, auto model.AutoOrder) error
	ListAutoOrders(ctx context.Context) ([]model.AutoOrder, error)
}

// Store aggregates every persisted aggregate the core touches.
type Store interface {
	OrderStore
	PositionStore
	StopStore
	AlertStore
	AutoOrderStore
}
