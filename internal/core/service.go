/*
Core wires the trading loop together.

# Module
  - feed fan-in: normalized ticks update the price cache, mark positions and
    drive condition evaluation
  - auto-order registry: binds entry conditions to order templates
  - trigger routing: fired conditions become dispatch requests on the
    execution engine

# Source
 1. ticks from the feed adapter (live or sim)
 2. auto-order definitions from the admin API or storage

# Produce
  - orders to the execution engine
  - alerts through the notification manager
*/
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/condition"
	"main/internal/execution"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/position"
	"main/internal/storage"
	"main/pkg/exception"
)

// Service owns the auto-order registry and routes every tick and trigger.
type Service struct {
	conditions *condition.Engine
	exec       *execution.Engine
	positions  *position.Manager
	cache      TickCache
	store      storage.AutoOrderStore
	metrics    *obs.Metrics

	mu    sync.Mutex
	autos map[string]*model.AutoOrder // keyed by condition id
	byID  map[string]string           // auto-order id -> condition id
}

// TickCache is the subset of the price cache the service writes through.
type TickCache interface {
	Put(tick model.Tick)
}

func NewService(conditions *condition.Engine, exec *execution.Engine, positions *position.Manager, cache TickCache, store storage.AutoOrderStore, metrics *obs.Metrics) *Service {
	return &Service{
		conditions: conditions,
		exec:       exec,
		positions:  positions,
		cache:      cache,
		store:      store,
		metrics:    metrics,
		autos:      make(map[string]*model.AutoOrder),
		byID:       make(map[string]string),
	}
}

// OnTick is the single feed entry point: cache, mark, evaluate.
func (s *Service) OnTick(tick model.Tick) {
	s.metrics.IncTick()
	if s.cache != nil {
		s.cache.Put(tick)
	}
	if mid := tick.Mid(); mid.IsPositive() {
		s.positions.MarkPrice(tick.Symbol, mid)
	}
	s.conditions.OnTick(tick)
}

// OnTrigger receives fired conditions from the evaluation engine.
func (s *Service) OnTrigger(event model.TriggerEvent) {
	s.metrics.IncTrigger()

	s.mu.Lock()
	auto, ok := s.autos[event.ConditionID]
	if !ok {
		s.mu.Unlock()
		logs.Warnf("trigger %s has no auto-order binding, dropped", event.ConditionID)
		return
	}
	bound := *auto
	s.mu.Unlock()

	scope := model.StopScope{
		UserID:     bound.UserID,
		AccountID:  bound.AccountID,
		Symbol:     bound.Symbol,
		StrategyID: bound.StrategyID,
	}
	if _, err := s.exec.SubmitTrigger(context.Background(), event, bound, scope); err != nil {
		logs.Warnf("trigger %s for auto-order %s not dispatched: %v", event.ID, bound.ID, err)
	}
}

// RegisterAutoOrder activates the binding and its entry condition.
func (s *Service) RegisterAutoOrder(ctx context.Context, auto model.AutoOrder, cond condition.Condition) (model.AutoOrder, error) {
	if auto.Symbol == "" || !auto.Side.IsAvailable() || !auto.OrderType.IsAvailable() {
		return model.AutoOrder{}, exception.ErrInvalidArgument
	}
	if !auto.Quantity.IsPositive() {
		return model.AutoOrder{}, exception.ErrInvalidArgument
	}
	if auto.ID == "" {
		auto.ID = uuid.NewString()
	}
	if cond.ID == "" {
		cond.ID = uuid.NewString()
	}
	if cond.Symbol == "" {
		cond.Symbol = auto.Symbol
	}
	auto.EntryConditionID = cond.ID
	auto.IsActive = true
	now := time.Now()
	auto.CreatedAt = now
	auto.UpdatedAt = now

	if err := s.conditions.Register(cond); err != nil {
		return model.AutoOrder{}, err
	}

	s.mu.Lock()
	stored := auto
	s.autos[cond.ID] = &stored
	s.byID[auto.ID] = cond.ID
	s.mu.Unlock()

	s.persist(ctx, auto)
	logs.Infof("auto-order %s registered: %s %s %s on condition %s",
		auto.ID, auto.Side, auto.Quantity, auto.Symbol, cond.ID)
	return auto, nil
}

// SetPaused pauses or resumes one binding without unregistering it.
func (s *Service) SetPaused(ctx context.Context, autoOrderID string, paused bool) (model.AutoOrder, error) {
	s.mu.Lock()
	condID, ok := s.byID[autoOrderID]
	if !ok {
		s.mu.Unlock()
		return model.AutoOrder{}, exception.ErrNotFound
	}
	auto := s.autos[condID]
	auto.IsPaused = paused
	auto.UpdatedAt = time.Now()
	out := *auto
	s.mu.Unlock()

	s.persist(ctx, out)
	return out, nil
}

// RemoveAutoOrder deactivates the binding and drops its condition.
func (s *Service) RemoveAutoOrder(ctx context.Context, autoOrderID string) error {
	s.mu.Lock()
	condID, ok := s.byID[autoOrderID]
	if !ok {
		s.mu.Unlock()
		return exception.ErrNotFound
	}
	auto := s.autos[condID]
	auto.IsActive = false
	auto.UpdatedAt = time.Now()
	out := *auto
	delete(s.autos, condID)
	delete(s.byID, autoOrderID)
	s.mu.Unlock()

	if err := s.conditions.Unregister(condID); err != nil {
		logs.Warnf("unregister condition %s: %v", condID, err)
	}
	s.persist(ctx, out)
	return nil
}

// AutoOrders returns copies of every active binding.
func (s *Service) AutoOrders() []model.AutoOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AutoOrder, 0, len(s.autos))
	for _, auto := range s.autos {
		out = append(out, *auto)
	}
	return out
}

func (s *Service) persist(ctx context.Context, auto model.AutoOrder) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveAutoOrder(ctx, auto); err != nil {
		logs.Errorf("persist auto-order %s: %v", auto.ID, err)
	}
}
