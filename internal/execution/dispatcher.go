package execution

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/stop"
	"main/internal/storage"
	"main/pkg/exception"
)

// AlertSink is where the engine reports every terminal or abnormal outcome.
type AlertSink interface {
	Raise(ctx context.Context, severity enum.Severity, title, message string, scope model.StopScope)
}

// MarketView supplies the latest tick per symbol for fresh risk checks.
type MarketView interface {
	LastTick(symbol string) (model.Tick, bool)
}

// Config tunes the dispatch pool and retry policy.
type Config struct {
	Workers       int
	QueueCap      int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	SubmitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 64
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 200 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 5 * time.Second
	}
	return c
}

// Deps are the collaborators a dispatch worker consults on every attempt.
type Deps struct {
	Risk      *risk.Checker
	Stops     *stop.Service
	Positions *position.Manager
	Adapter   exchange.Adapter
	Alerts    AlertSink
	Store     storage.OrderStore
	Market    MarketView
	Metrics   *obs.Metrics
}

type job struct {
	orderID string
	scope   model.StopScope
	firedAt time.Time
}

// Engine turns allowed trigger events into exchange orders. Dispatch runs
// on a bounded worker pool; enqueueing past capacity returns
// exception.ErrDispatchQueueFull as the backpressure signal.
type Engine struct {
	cfg     Config
	deps    Deps
	sm      *StateMachine
	queue   chan job
	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) bool
}

func NewEngine(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:   cfg,
		deps:  deps,
		sm:    NewStateMachine(),
		queue: make(chan job, cfg.QueueCap),
		sleep: sleepCtx,
	}
}

// Orders exposes the underlying state machine for read paths.
func (e *Engine) Orders() *StateMachine {
	return e.sm
}

// Run starts the dispatch workers.
func (e *Engine) Run(ctx context.Context) {
	if e.running.Swap(true) {
		return
	}
	for range e.cfg.Workers {
		go e.worker(ctx)
	}
}

func (e *Engine) worker(ctx context.Context) {
	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case j := <-e.queue:
			e.process(ctx, j)
		}
	}
}

// SubmitTrigger converts a fired trigger into an order and enqueues it.
// The emergency-stop gate and a coarse risk check run here; both run again
// inside the worker immediately before the network call.
func (e *Engine) SubmitTrigger(ctx context.Context, trigger model.TriggerEvent, auto model.AutoOrder, scope model.StopScope) (model.Order, error) {
	if !auto.Runnable(time.Now()) {
		return model.Order{}, exception.ErrOrderInvalidRequest
	}

	if rec, active := e.deps.Stops.Check(scope); active {
		e.raise(ctx, enum.SeverityHigh, "order blocked by emergency stop",
			fmt.Sprintf("condition %s fired for %s but %s stop is active: %s",
				trigger.ConditionID, trigger.Symbol, rec.Level, rec.Reason), scope)
		return model.Order{}, exception.ErrEmergencyStopActive
	}

	triggerID := trigger.ID
	order := model.Order{
		ID:             uuid.NewString(),
		AutoOrderID:    &auto.ID,
		TriggerEventID: &triggerID,
		AccountID:      auto.AccountID,
		StrategyID:     auto.StrategyID,
		Symbol:         auto.Symbol,
		Side:           auto.Side,
		Type:           auto.OrderType,
		Price:          auto.LimitPrice,
		Quantity:       auto.Quantity,
		ExpiresAt:      auto.ExpiresAt,
		CreatedAt:      time.Now(),
	}

	if result := e.deps.Risk.Check(e.riskInput(ctx, order)); !result.Allowed {
		e.deps.Metrics.IncRiskBlock()
		e.raise(ctx, enum.SeverityMedium, "order blocked by risk check", result.BlockingReason, scope)
		return model.Order{}, fmt.Errorf("%w: %s", exception.ErrRiskBlocked, result.BlockingReason)
	}

	if err := e.sm.Create(order); err != nil {
		return model.Order{}, err
	}
	created, _ := e.sm.Get(order.ID)
	e.persist(ctx, created)
	e.scheduleExpiry(created)

	select {
	case e.queue <- job{orderID: order.ID, scope: scope, firedAt: trigger.FiredAt}:
		return created, nil
	default:
		e.deps.Metrics.IncQueueDrop()
		rejected, _ := e.sm.Transition(order.ID, enum.OrderStatusRejected, "dispatch queue full")
		e.persist(ctx, rejected)
		e.raise(ctx, enum.SeverityHigh, "dispatch backpressure",
			fmt.Sprintf("order %s rejected, dispatch queue full", order.ID), scope)
		return rejected, exception.ErrDispatchQueueFull
	}
}

// process drives one order through gate checks, submission and retries.
// Gates are re-validated before every attempt, not only the first.
func (e *Engine) process(ctx context.Context, j job) {
	if !j.firedAt.IsZero() {
		e.deps.Metrics.ObserveTriggerLatency(time.Since(j.firedAt))
	}

	for attempt := 0; ; attempt++ {
		order, ok := e.sm.Get(j.orderID)
		if !ok || order.Status.IsTerminal() {
			return
		}

		if order.ExpiresAt != nil && time.Now().After(*order.ExpiresAt) {
			e.expire(ctx, order.ID, j.scope)
			return
		}

		if rec, active := e.deps.Stops.Check(j.scope); active {
			e.finish(ctx, order.ID, enum.OrderStatusRejected,
				fmt.Sprintf("emergency stop active: level=%s reason=%s", rec.Level, rec.Reason),
				enum.SeverityHigh, j.scope)
			return
		}

		if result := e.deps.Risk.Check(e.riskInput(ctx, order)); !result.Allowed {
			e.deps.Metrics.IncRiskBlock()
			e.finish(ctx, order.ID, enum.OrderStatusRejected,
				fmt.Sprintf("risk blocked: %s", result.BlockingReason),
				enum.SeverityMedium, j.scope)
			return
		}

		if order.Status == enum.OrderStatusNew {
			submitted, err := e.sm.Transition(order.ID, enum.OrderStatusSubmitted, "")
			if err != nil {
				logs.Errorf("order %s submit transition failed: %v", order.ID, err)
				return
			}
			e.deps.Metrics.IncSubmitted()
			e.persist(ctx, submitted)
			order = submitted
		}

		submitCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
		ack, err := e.deps.Adapter.Submit(submitCtx, order)
		cancel()

		switch {
		case err == nil:
			e.applyAck(ctx, order, ack, j.scope)
			return

		case errors.Is(err, exception.ErrExchangePermanent):
			e.finish(ctx, order.ID, enum.OrderStatusRejected,
				fmt.Sprintf("rejected by exchange: %v", err), enum.SeverityHigh, j.scope)
			return

		default:
			// transient, includes network timeouts
			if attempt >= e.cfg.MaxRetries {
				e.finish(ctx, order.ID, enum.OrderStatusRejected,
					fmt.Sprintf("retries exhausted after %d attempts: %v", attempt+1, err),
					enum.SeverityHigh, j.scope)
				return
			}
			bumped, rerr := e.sm.IncrementRetry(order.ID)
			if rerr != nil {
				return
			}
			e.persist(ctx, bumped)
			delay := e.backoff(attempt)
			logs.Warnf("order %s attempt %d failed (%v), retrying in %s", order.ID, attempt+1, err, delay)
			if !e.sleep(ctx, delay) {
				return
			}
		}
	}
}

func (e *Engine) applyAck(ctx context.Context, order model.Order, ack exchange.Ack, scope model.StopScope) {
	if ack.FilledQuantity.IsPositive() {
		e.recordFill(ctx, order.ID, ack.FilledQuantity, ack.AveragePrice, scope)
		return
	}
	// accepted but resting; fills arrive via OnExchangeFill
	updated, _ := e.sm.Get(order.ID)
	e.persist(ctx, updated)
}

// OnExchangeFill applies an asynchronous fill report from the venue stream.
func (e *Engine) OnExchangeFill(ctx context.Context, orderID string, qty, price decimal.Decimal, scope model.StopScope) error {
	_, ok := e.sm.Get(orderID)
	if !ok {
		return exception.ErrOrderUnknown
	}
	e.recordFill(ctx, orderID, qty, price, scope)
	return nil
}

func (e *Engine) recordFill(ctx context.Context, orderID string, qty, price decimal.Decimal, scope model.StopScope) {
	updated, err := e.sm.ApplyFill(orderID, qty, price)
	if err != nil {
		logs.Errorf("order %s fill apply failed: %v", orderID, err)
		return
	}
	e.persist(ctx, updated)

	e.deps.Positions.ApplyFill(position.Fill{
		OrderID:   updated.ID,
		AccountID: updated.AccountID,
		Symbol:    updated.Symbol,
		Side:      updated.Side,
		Quantity:  qty,
		Price:     price,
		At:        time.Now(),
	})

	if updated.Status == enum.OrderStatusFilled {
		e.deps.Metrics.IncFilled()
		e.raise(ctx, enum.SeverityLow, "order filled",
			fmt.Sprintf("order %s %s %s %s filled at avg %s, retries=%d",
				updated.ID, updated.Side, updated.Quantity, updated.Symbol, updated.AveragePrice, updated.RetryCount),
			scope)
	}
}

// MassCancel is the emergency-stop hook: best-effort cancel of every open
// order the record covers, reporting failures separately.
func (e *Engine) MassCancel(ctx context.Context, record model.EmergencyStopRecord) (int, int, decimal.Decimal) {
	cancelled, failed := 0, 0
	preserved := decimal.Zero

	for _, order := range e.sm.Open() {
		scope := model.StopScope{
			AccountID:  order.AccountID,
			Symbol:     order.Symbol,
			StrategyID: order.StrategyID,
		}
		if !record.Covers(scope) {
			continue
		}
		// NEW orders never reached the venue; cancel locally only
		if order.Status != enum.OrderStatusNew && !e.deps.Adapter.Cancel(ctx, order.ID) {
			failed++
			logs.Errorf("mass cancel: exchange refused cancel of order %s", order.ID)
			continue
		}
		leaves := order.LeavesQuantity()
		updated, err := e.sm.Transition(order.ID, enum.OrderStatusCancelled,
			fmt.Sprintf("emergency stop %s", record.ID))
		if err != nil {
			failed++
			continue
		}
		e.deps.Metrics.IncCancelled()
		e.persist(ctx, updated)
		cancelled++
		price := order.Price
		if price.IsZero() && e.deps.Market != nil {
			if tick, ok := e.deps.Market.LastTick(order.Symbol); ok {
				price = tick.Mid()
			}
		}
		preserved = preserved.Add(leaves.Mul(price))
	}
	return cancelled, failed, preserved
}

// scheduleExpiry arms a timer that cancels the unfilled remainder at expiresAt.
func (e *Engine) scheduleExpiry(order model.Order) {
	if order.ExpiresAt == nil {
		return
	}
	delay := time.Until(*order.ExpiresAt)
	if delay < 0 {
		delay = 0
	}
	id := order.ID
	scope := model.StopScope{AccountID: order.AccountID, Symbol: order.Symbol, StrategyID: order.StrategyID}
	time.AfterFunc(delay, func() {
		e.expire(context.Background(), id, scope)
	})
}

func (e *Engine) expire(ctx context.Context, orderID string, scope model.StopScope) {
	order, ok := e.sm.Get(orderID)
	if !ok || order.Status.IsTerminal() {
		return
	}
	if order.Status != enum.OrderStatusNew {
		e.deps.Adapter.Cancel(ctx, orderID)
	}
	e.deps.Metrics.IncExpired()
	reason := fmt.Sprintf("expired with %s unfilled", order.LeavesQuantity())
	updated, err := e.sm.Transition(orderID, enum.OrderStatusExpired, reason)
	if err != nil {
		return
	}
	e.persist(ctx, updated)
	e.raise(ctx, enum.SeverityMedium, "order expired", fmt.Sprintf("order %s: %s", orderID, reason), scope)
}

// finish applies a terminal transition and reports it.
func (e *Engine) finish(ctx context.Context, orderID string, status enum.OrderStatus, reason string, severity enum.Severity, scope model.StopScope) {
	updated, err := e.sm.Transition(orderID, status, reason)
	if err != nil {
		logs.Errorf("order %s transition to %s failed: %v", orderID, status, err)
		return
	}
	if status == enum.OrderStatusRejected {
		e.deps.Metrics.IncRejected()
	}
	e.persist(ctx, updated)
	e.raise(ctx, severity, fmt.Sprintf("order %s", status), fmt.Sprintf("order %s: %s", orderID, reason), scope)
}

// riskInput assembles a fresh snapshot for one check. The snapshot version
// is re-read after capture so a concurrent write fails the check instead
// of racing.
func (e *Engine) riskInput(ctx context.Context, order model.Order) risk.Input {
	var account model.AccountState
	if e.deps.Adapter != nil {
		if state, err := e.deps.Adapter.AccountState(ctx); err == nil {
			account = state
		} else {
			logs.Warnf("account state unavailable: %v", err)
		}
	}

	snapshot, _ := e.deps.Positions.Snapshot(order.AccountID, order.Symbol)
	var tick model.Tick
	if e.deps.Market != nil {
		tick, _ = e.deps.Market.LastTick(order.Symbol)
	}

	return risk.Input{
		Order:         order,
		Account:       account,
		Position:      snapshot,
		TotalExposure: e.deps.Positions.TotalExposure(order.AccountID),
		Tick:          tick,
		SnapshotStale: e.deps.Positions.Stale(snapshot),
		Now:           time.Now(),
	}
}

func (e *Engine) persist(ctx context.Context, order model.Order) {
	if e.deps.Store == nil {
		return
	}
	var err error
	if order.Version <= 1 {
		err = e.deps.Store.SaveOrder(ctx, order)
	} else {
		err = e.deps.Store.UpdateOrder(ctx, order)
	}
	if err != nil {
		logs.Errorf("persist order %s v%d: %v", order.ID, order.Version, err)
	}
}

func (e *Engine) raise(ctx context.Context, severity enum.Severity, title, message string, scope model.StopScope) {
	if e.deps.Alerts == nil {
		return
	}
	e.deps.Alerts.Raise(ctx, severity, title, message, scope)
}

func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.cfg.BackoffBase << attempt
	if delay > e.cfg.BackoffMax || delay <= 0 {
		delay = e.cfg.BackoffMax
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
