package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/condition"
	"main/internal/exchange"
	"main/internal/execution"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/stop"
	"main/pkg/exception"
)

type harness struct {
	svc   *Service
	exec  *execution.Engine
	venue *exchange.Paper
	conds *condition.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	venue := exchange.NewPaper("acc1", decimal.NewFromInt(1_000_000))
	cache := feed.NewCache()
	checker := risk.NewChecker(model.RiskConfig{MaxOrderSize: decimal.NewFromInt(1_000_000)})
	stops := stop.NewService(time.Hour, nil, nil, nil)

	exec := execution.NewEngine(execution.Config{}, execution.Deps{
		Risk:      checker,
		Stops:     stops,
		Positions: position.NewManager(),
		Adapter:   venue,
		Market:    cache,
		Metrics:   obs.NewMetrics(),
	})

	var svc *Service
	conds := condition.NewEngine(0, func(event model.TriggerEvent) {
		svc.OnTrigger(event)
	})
	svc = NewService(conds, exec, position.NewManager(), cache, nil, obs.NewMetrics())

	exec.Run(t.Context())
	conds.Run(t.Context())
	return &harness{svc: svc, exec: exec, venue: venue, conds: conds}
}

func priceAbove(symbol, threshold string) condition.Condition {
	b := condition.NewBuilder()
	root := b.Leaf(condition.Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    symbol,
		Operator:  enum.OperatorGT,
		Threshold: decimal.RequireFromString(threshold),
	})
	tree, err := b.Build(root)
	if err != nil {
		panic(err)
	}
	return condition.Condition{Symbol: symbol, Tree: tree}
}

func binding() model.AutoOrder {
	return model.AutoOrder{
		AccountID:  "acc1",
		StrategyID: "strat1",
		Symbol:     "BTCUSDT",
		Side:       enum.OrderSideBuy,
		OrderType:  enum.OrderTypeLimit,
		LimitPrice: decimal.NewFromInt(100),
		Quantity:   decimal.NewFromInt(2),
	}
}

func TestRegisterValidatesBinding(t *testing.T) {
	h := newHarness(t)

	bad := binding()
	bad.Symbol = ""
	_, err := h.svc.RegisterAutoOrder(t.Context(), bad, priceAbove("BTCUSDT", "50"))
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	bad = binding()
	bad.Quantity = decimal.Zero
	_, err = h.svc.RegisterAutoOrder(t.Context(), bad, priceAbove("BTCUSDT", "50"))
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	auto, err := h.svc.RegisterAutoOrder(t.Context(), binding(), priceAbove("BTCUSDT", "50"))
	require.NoError(t, err)
	assert.NotEmpty(t, auto.ID)
	assert.NotEmpty(t, auto.EntryConditionID)
	assert.True(t, auto.IsActive)
	assert.Len(t, h.svc.AutoOrders(), 1)
}

func TestTickDrivesConditionToFill(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RegisterAutoOrder(t.Context(), binding(), priceAbove("BTCUSDT", "50"))
	require.NoError(t, err)

	h.svc.OnTick(model.Tick{
		Symbol: "BTCUSDT",
		Price:  decimal.NewFromInt(100),
		Bid:    decimal.RequireFromString("99.99"),
		Ask:    decimal.RequireFromString("100.01"),
		At:     time.Now(),
	})

	require.Eventually(t, func() bool {
		orders := h.exec.Orders().All()
		return len(orders) == 1 && orders[0].Status == enum.OrderStatusFilled
	}, 2*time.Second, 10*time.Millisecond, "tick should trigger, dispatch and fill")
}

func TestPausedBindingDropsTriggers(t *testing.T) {
	h := newHarness(t)
	auto, err := h.svc.RegisterAutoOrder(t.Context(), binding(), priceAbove("BTCUSDT", "50"))
	require.NoError(t, err)

	paused, err := h.svc.SetPaused(t.Context(), auto.ID, true)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)

	h.svc.OnTrigger(model.TriggerEvent{
		ID:          "trig1",
		ConditionID: auto.EntryConditionID,
		Symbol:      "BTCUSDT",
		FiredAt:     time.Now(),
	})
	assert.Empty(t, h.exec.Orders().All(), "paused binding must not dispatch")

	resumed, err := h.svc.SetPaused(t.Context(), auto.ID, false)
	require.NoError(t, err)
	assert.False(t, resumed.IsPaused)
}

func TestUnknownTriggerIsDropped(t *testing.T) {
	h := newHarness(t)
	h.svc.OnTrigger(model.TriggerEvent{ID: "trig1", ConditionID: "nope", Symbol: "BTCUSDT"})
	assert.Empty(t, h.exec.Orders().All())
}

func TestRemoveAutoOrder(t *testing.T) {
	h := newHarness(t)
	auto, err := h.svc.RegisterAutoOrder(t.Context(), binding(), priceAbove("BTCUSDT", "50"))
	require.NoError(t, err)

	require.NoError(t, h.svc.RemoveAutoOrder(t.Context(), auto.ID))
	assert.Empty(t, h.svc.AutoOrders())
	assert.ErrorIs(t, h.svc.RemoveAutoOrder(t.Context(), auto.ID), exception.ErrNotFound)
}
