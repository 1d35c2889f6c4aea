package condition

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []model.TriggerEvent
}

func (r *eventRecorder) sink(event model.TriggerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func priceAboveCondition(t *testing.T, id string, threshold string, cooldownSec int, rearm enum.ReArmPolicy) Condition {
	t.Helper()
	b := NewBuilder()
	root := b.Leaf(Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    "BTCUSDT",
		Operator:  enum.OperatorGT,
		Threshold: decimal.RequireFromString(threshold),
	})
	tree, err := b.Build(root)
	require.NoError(t, err)
	return Condition{
		ID:              id,
		Symbol:          "BTCUSDT",
		Tree:            tree,
		CooldownSeconds: cooldownSec,
		ReArm:           rearm,
	}
}

func tickAt(price string, at time.Time) model.Tick {
	return model.Tick{
		Symbol: "BTCUSDT",
		Price:  decimal.RequireFromString(price),
		At:     at,
	}
}

// drive pushes ticks through a shard synchronously via the internal step,
// so tests control time exactly.
func drive(e *Engine, s *shard, ticks ...model.Tick) {
	for _, tick := range ticks {
		e.evaluateShard(s, tick)
	}
}

func registeredShard(t *testing.T, e *Engine, cond Condition) *shard {
	t.Helper()
	require.NoError(t, e.Register(cond))
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shards[cond.Symbol]
}

func TestEdgeTriggerFiresOnceWhileTrue(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	s := registeredShard(t, e, priceAboveCondition(t, "c1", "100", 300, enum.ReArmOnFalse))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	drive(e, s,
		tickAt("99", base),
		tickAt("101", base.Add(1*time.Second)),
		tickAt("102", base.Add(2*time.Second)),
		tickAt("103", base.Add(3*time.Second)),
	)
	assert.Equal(t, 1, rec.count(), "continuously true fires once")
}

func TestCooldownSuppressesRapidReFire(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	s := registeredShard(t, e, priceAboveCondition(t, "c1", "100", 300, enum.ReArmOnFalse))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	drive(e, s,
		tickAt("101", base),                     // fires
		tickAt("99", base.Add(10*time.Second)),  // false, re-arms
		tickAt("101", base.Add(20*time.Second)), // true again but inside cooldown
	)
	assert.Equal(t, 1, rec.count())

	// past cooldown, a fresh false->true edge fires again
	drive(e, s,
		tickAt("99", base.Add(299*time.Second)),
		tickAt("101", base.Add(301*time.Second)),
	)
	assert.Equal(t, 2, rec.count())
}

func TestReArmAfterCooldownReFiresWhileTrue(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	s := registeredShard(t, e, priceAboveCondition(t, "c1", "100", 60, enum.ReArmAfterCooldown))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	drive(e, s,
		tickAt("101", base),                     // fires
		tickAt("102", base.Add(30*time.Second)), // still true, cooldown running
		tickAt("103", base.Add(61*time.Second)), // still true, cooldown over: fires again
	)
	assert.Equal(t, 2, rec.count())
}

func TestReArmOnFalseNeverReFiresWhileTrue(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	s := registeredShard(t, e, priceAboveCondition(t, "c1", "100", 60, enum.ReArmOnFalse))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	drive(e, s,
		tickAt("101", base),
		tickAt("102", base.Add(120*time.Second)),
		tickAt("103", base.Add(240*time.Second)),
	)
	assert.Equal(t, 1, rec.count())
}

func TestTriggerEventCarriesEvidence(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	s := registeredShard(t, e, priceAboveCondition(t, "c1", "100", 0, enum.ReArmOnFalse))

	drive(e, s, tickAt("105", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.Equal(t, 1, rec.count())

	rec.mu.Lock()
	event := rec.events[0]
	rec.mu.Unlock()
	assert.Equal(t, "c1", event.ConditionID)
	assert.Equal(t, "BTCUSDT", event.Symbol)
	require.Len(t, event.Evidence, 1)
	assert.True(t, event.Evidence[0].Result)
	assert.Equal(t, "105", event.Evidence[0].Observed.String())
}

func TestRegisterValidation(t *testing.T) {
	e := NewEngine(16, nil)
	cond := priceAboveCondition(t, "dup", "1", 0, enum.ReArmOnFalse)
	require.NoError(t, e.Register(cond))
	assert.Error(t, e.Register(cond), "duplicate id")

	bad := cond
	bad.ID = "other"
	bad.Symbol = ""
	assert.Error(t, e.Register(bad))

	require.NoError(t, e.Unregister("dup"))
	assert.Error(t, e.Unregister("dup"))
}

func TestEngineDeliversThroughShards(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(16, rec.sink)
	require.NoError(t, e.Register(priceAboveCondition(t, "c1", "100", 0, enum.ReArmOnFalse)))
	e.Run(t.Context())

	e.OnTick(tickAt("105", time.Now()))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
