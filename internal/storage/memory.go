package storage

import (
	"context"
	"sync"

	"main/internal/model"
	"main/pkg/exception"
)

// Memory is the in-process Store used by tests and paper mode.
type Memory struct {
	mu         sync.Mutex
	orders     map[string]model.Order
	positions  map[string]model.Position
	stops      map[string]model.EmergencyStopRecord
	alerts     map[string]model.RiskAlert
	autoOrders map[string]model.AutoOrder
}

func NewMemory() *Memory {
	return &Memory{
		orders:     make(map[string]model.Order),
		positions:  make(map[string]model.Position),
		stops:      make(map[string]model.EmergencyStopRecord),
		alerts:     make(map[string]model.RiskAlert),
		autoOrders: make(map[string]model.AutoOrder),
	}
}

func (m *Memory) SaveOrder(_ context.Context, order model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *Memory) UpdateOrder(_ context.Context, order model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return exception.ErrNotFound
	}
	if stored.Version != order.Version-1 {
		return exception.ErrVersionConflict
	}
	m.orders[order.ID] = order
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return model.Order{}, exception.ErrNotFound
	}
	return order, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *Memory) SavePosition(_ context.Context, position model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.AccountID+"|"+position.Symbol] = position
	return nil
}

func (m *Memory) ListPositions(_ context.Context) ([]model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) SaveStop(_ context.Context, record model.EmergencyStopRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[record.ID] = record
	return nil
}

func (m *Memory) UpdateStop(_ context.Context, record model.EmergencyStopRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.stops[record.ID]
	if !ok {
		return exception.ErrNotFound
	}
	if stored.Version != record.Version-1 {
		return exception.ErrVersionConflict
	}
	m.stops[record.ID] = record
	return nil
}

func (m *Memory) ListStops(_ context.Context) ([]model.EmergencyStopRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.EmergencyStopRecord, 0, len(m.stops))
	for _, r := range m.stops {
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) SaveAlert(_ context.Context, alert model.RiskAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alert.ID] = alert
	return nil
}

func (m *Memory) UpdateAlert(_ context.Context, alert model.RiskAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.alerts[alert.ID]
	if !ok {
		return exception.ErrNotFound
	}
	if stored.Version != alert.Version-1 {
		return exception.ErrVersionConflict
	}
	m.alerts[alert.ID] = alert
	return nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (model.RiskAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return model.RiskAlert{}, exception.ErrNotFound
	}
	return alert, nil
}

func (m *Memory) ListAlerts(_ context.Context) ([]model.RiskAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RiskAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) SaveAutoOrder(_ context.Context, auto model.AutoOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoOrders[auto.ID] = auto
	return nil
}

func (m *Memory) ListAutoOrders(_ context.Context) ([]model.AutoOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AutoOrder, 0, len(m.autoOrders))
	for _, a := range m.autoOrders {
		out = append(out, a)
	}
	return out, nil
}
