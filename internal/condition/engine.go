package condition

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// Condition binds an immutable tree to its firing policy.
type Condition struct {
	ID              string
	Symbol          string
	Tree            Tree
	CooldownSeconds int
	ReArm           enum.ReArmPolicy
}

// runtime carries the mutable edge-trigger state for one condition.
// It is only touched by the shard goroutine owning the symbol.
type runtime struct {
	cond      Condition
	lastTrue  bool
	lastFired time.Time
}

type shard struct {
	symbol  string
	ticks   chan model.Tick
	conds   []*runtime
	prev    model.Tick
	hasPrev bool
}

// Engine evaluates registered conditions on tick arrival. Evaluation for a
// given symbol is serialized in its shard goroutine; symbols run concurrently.
type Engine struct {
	mu       sync.Mutex
	shards   map[string]*shard
	byID     map[string]*shard
	sink     func(model.TriggerEvent)
	now      func() time.Time
	queueCap int
	started  bool
	ctx      context.Context
}

// NewEngine creates an engine delivering trigger events to sink.
func NewEngine(queueCap int, sink func(model.TriggerEvent)) *Engine {
	if queueCap <= 0 {
		queueCap = 256
	}
	return &Engine{
		shards:   make(map[string]*shard),
		byID:     make(map[string]*shard),
		sink:     sink,
		now:      time.Now,
		queueCap: queueCap,
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Register adds a condition keyed by its primary symbol.
func (e *Engine) Register(cond Condition) error {
	if cond.ID == "" {
		cond.ID = uuid.NewString()
	}
	if cond.Symbol == "" {
		return exception.ErrInvalidArgument
	}
	if !cond.ReArm.IsAvailable() {
		cond.ReArm = enum.ReArmOnFalse
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.byID[cond.ID]; ok {
		return exception.ErrConditionDuplicateID
	}
	s, ok := e.shards[cond.Symbol]
	if !ok {
		s = &shard{symbol: cond.Symbol, ticks: make(chan model.Tick, e.queueCap)}
		e.shards[cond.Symbol] = s
		if e.started {
			go e.runShard(e.ctx, s)
		}
	}
	rt := &runtime{cond: cond}
	s.conds = append(s.conds, rt)
	e.byID[cond.ID] = s
	return nil
}

// Unregister removes a condition by id.
func (e *Engine) Unregister(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.byID[id]
	if !ok {
		return exception.ErrConditionUnknownID
	}
	delete(e.byID, id)
	for i, rt := range s.conds {
		if rt.cond.ID == id {
			s.conds = append(s.conds[:i], s.conds[i+1:]...)
			break
		}
	}
	return nil
}

// Run starts one evaluation goroutine per registered symbol.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	e.ctx = ctx
	for _, s := range e.shards {
		go e.runShard(ctx, s)
	}
}

// OnTick routes a tick to its symbol shard without blocking; a full shard
// queue drops the tick (the next tick re-evaluates against fresh data anyway).
func (e *Engine) OnTick(tick model.Tick) {
	e.mu.Lock()
	s, ok := e.shards[tick.Symbol]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case s.ticks <- tick:
	default:
		logs.Warnf("condition: dropped tick for %s, shard queue full", tick.Symbol)
	}
}

func (e *Engine) runShard(ctx context.Context, s *shard) {
	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case tick := <-s.ticks:
			e.evaluateShard(s, tick)
		}
	}
}

func (e *Engine) evaluateShard(s *shard, tick model.Tick) {
	snap := Snapshot{
		Ticks: map[string]model.Tick{s.symbol: tick},
		Now:   tick.At,
	}
	if snap.Now.IsZero() {
		snap.Now = e.now()
	}
	if s.hasPrev {
		snap.Prev = map[string]model.Tick{s.symbol: s.prev}
	}

	for _, rt := range s.conds {
		e.step(rt, snap)
	}

	s.prev = tick
	s.hasPrev = true
}

// step applies edge-trigger and cooldown semantics for one condition.
// ReArmOnFalse fires only on a false->true transition; ReArmAfterCooldown
// also re-fires while continuously true once the cooldown elapses.
func (e *Engine) step(rt *runtime, snap Snapshot) {
	result, evidence := rt.cond.Tree.Evaluate(snap)
	now := snap.Now

	wasTrue := rt.lastTrue
	rt.lastTrue = result
	if !result {
		return
	}

	cooldownOver := rt.lastFired.IsZero() || now.Sub(rt.lastFired) >= e.cooldown(rt.cond)
	if !cooldownOver {
		return
	}
	if wasTrue && rt.cond.ReArm != enum.ReArmAfterCooldown {
		return
	}

	rt.lastFired = now

	event := model.TriggerEvent{
		ID:          uuid.NewString(),
		ConditionID: rt.cond.ID,
		Symbol:      rt.cond.Symbol,
		FiredAt:     now,
		Evidence:    evidence,
	}
	logs.Infof("condition %s fired for %s", rt.cond.ID, rt.cond.Symbol)
	if e.sink != nil {
		e.sink(event)
	}
}

func (e *Engine) cooldown(cond Condition) time.Duration {
	return time.Duration(cond.CooldownSeconds) * time.Second
}
