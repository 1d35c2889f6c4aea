package execution

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// StateMachine tracks order lifecycles:
// NEW -> SUBMITTED -> {PARTIALLY_FILLED -> FILLED | CANCELLED | REJECTED | EXPIRED}.
// Terminal orders are immutable.
type StateMachine struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[string]*model.Order)}
}

// Create registers a NEW order.
func (m *StateMachine) Create(order model.Order) error {
	if order.ID == "" {
		return exception.ErrOrderInvalidRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return exception.ErrOrderDuplicate
	}
	order.Status = enum.OrderStatusNew
	order.Version = 1
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = &order
	return nil
}

// Get returns a copy of the order.
func (m *StateMachine) Get(id string) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return *o, true
}

// Transition moves an order to the target status, recording the reason.
func (m *StateMachine) Transition(id string, status enum.OrderStatus, reason string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, exception.ErrOrderUnknown
	}
	if o.Status.IsTerminal() {
		return *o, exception.ErrOrderTerminal
	}
	if !canTransition(o.Status, status) {
		return *o, exception.ErrOrderInvalidTransition
	}
	o.Status = status
	if reason != "" {
		o.Reason = reason
	}
	o.UpdatedAt = time.Now()
	o.Version++
	return *o, nil
}

// ApplyFill accumulates filled quantity with a volume-weighted average
// price and advances to PARTIALLY_FILLED or FILLED.
func (m *StateMachine) ApplyFill(id string, qty, price decimal.Decimal) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, exception.ErrOrderUnknown
	}
	if o.Status.IsTerminal() {
		return *o, exception.ErrOrderTerminal
	}
	if !qty.IsPositive() {
		return *o, exception.ErrOrderInvalidFill
	}

	prevFilled := o.FilledQuantity
	prevNotional := prevFilled.Mul(o.AveragePrice)
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if o.FilledQuantity.GreaterThan(o.Quantity) {
		o.FilledQuantity = o.Quantity
	}
	// only the accepted part of an overfill report contributes notional
	accepted := o.FilledQuantity.Sub(prevFilled)
	if o.FilledQuantity.IsPositive() {
		o.AveragePrice = prevNotional.Add(accepted.Mul(price)).Div(o.FilledQuantity)
	}
	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = enum.OrderStatusFilled
	} else {
		o.Status = enum.OrderStatusPartiallyFilled
	}
	o.UpdatedAt = time.Now()
	o.Version++
	return *o, nil
}

// IncrementRetry bumps the retry counter on a live order.
func (m *StateMachine) IncrementRetry(id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, exception.ErrOrderUnknown
	}
	if o.Status.IsTerminal() {
		return *o, exception.ErrOrderTerminal
	}
	o.RetryCount++
	o.UpdatedAt = time.Now()
	o.Version++
	return *o, nil
}

// All returns copies of every tracked order.
func (m *StateMachine) All() []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out
}

// Open returns copies of all non-terminal orders.
func (m *StateMachine) Open() []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.Status.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}

func canTransition(from, to enum.OrderStatus) bool {
	switch from {
	case enum.OrderStatusNew:
		switch to {
		case enum.OrderStatusSubmitted, enum.OrderStatusCancelled,
			enum.OrderStatusRejected, enum.OrderStatusExpired:
			return true
		}
	case enum.OrderStatusSubmitted:
		switch to {
		case enum.OrderStatusPartiallyFilled, enum.OrderStatusFilled,
			enum.OrderStatusCancelled, enum.OrderStatusRejected, enum.OrderStatusExpired:
			return true
		}
	case enum.OrderStatusPartiallyFilled:
		switch to {
		case enum.OrderStatusPartiallyFilled, enum.OrderStatusFilled,
			enum.OrderStatusCancelled, enum.OrderStatusExpired:
			return true
		}
	}
	return false
}
