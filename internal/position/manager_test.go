package position

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fill(side enum.OrderSide, qty, price string) Fill {
	return Fill{
		OrderID:   "o1",
		AccountID: "acc1",
		Symbol:    "BTCUSDT",
		Side:      side,
		Quantity:  dec(qty),
		Price:     dec(price),
		At:        time.Now(),
	}
}

func TestApplyFillExtendsWeightedAverage(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "2", "100"))
	p := m.ApplyFill(fill(enum.OrderSideBuy, "2", "110"))

	assert.Equal(t, "4", p.Quantity.String())
	assert.Equal(t, "105", p.AvgEntryPrice.String())
	assert.True(t, p.RealizedPnl.IsZero())
}

func TestReduceRealizesProportionalPnl(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "4", "100"))
	p := m.ApplyFill(fill(enum.OrderSideSell, "1", "120"))

	assert.Equal(t, "3", p.Quantity.String())
	assert.Equal(t, "100", p.AvgEntryPrice.String(), "basis unchanged on reduce")
	assert.Equal(t, "20", p.RealizedPnl.String())
}

func TestCloseResetsBasis(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "2", "100"))
	p := m.ApplyFill(fill(enum.OrderSideSell, "2", "90"))

	assert.True(t, p.Quantity.IsZero())
	assert.True(t, p.AvgEntryPrice.IsZero())
	assert.Equal(t, "-20", p.RealizedPnl.String())
}

func TestFlipThroughZeroOpensAtFillPrice(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "2", "100"))
	p := m.ApplyFill(fill(enum.OrderSideSell, "5", "110"))

	assert.Equal(t, "-3", p.Quantity.String())
	assert.Equal(t, "110", p.AvgEntryPrice.String())
	assert.Equal(t, "20", p.RealizedPnl.String(), "only the closed 2 realize")
}

func TestShortSidePnl(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideSell, "3", "100"))
	p := m.ApplyFill(fill(enum.OrderSideBuy, "3", "90"))

	assert.True(t, p.Quantity.IsZero())
	assert.Equal(t, "30", p.RealizedPnl.String())
}

func TestMarkPriceUpdatesUnrealized(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "2", "100"))
	m.MarkPrice("BTCUSDT", dec("107"))

	p, ok := m.Snapshot("acc1", "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "14", p.UnrealizedPnl.String())
}

func TestSnapshotVersioning(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "1", "100"))

	snap, ok := m.Snapshot("acc1", "BTCUSDT")
	require.True(t, ok)
	assert.False(t, m.Stale(snap))

	m.ApplyFill(fill(enum.OrderSideBuy, "1", "100"))
	assert.True(t, m.Stale(snap), "any write supersedes the snapshot")

	unknown, ok := m.Snapshot("acc1", "ETHUSDT")
	assert.False(t, ok)
	assert.False(t, m.Stale(unknown), "empty snapshot of an empty book is fresh")
}

func TestTotalExposureAcrossSymbols(t *testing.T) {
	m := NewManager()
	m.ApplyFill(fill(enum.OrderSideBuy, "2", "100"))
	eth := fill(enum.OrderSideSell, "10", "20")
	eth.Symbol = "ETHUSDT"
	m.ApplyFill(eth)

	m.MarkPrice("BTCUSDT", dec("110"))
	// ETH has no mark, falls back to entry price: 2*110 + 10*20
	assert.Equal(t, "420", m.TotalExposure("acc1").String())
	assert.True(t, m.TotalExposure("other").IsZero())
}

func TestMarginBreachFiresOutsideLock(t *testing.T) {
	m := NewManager()
	m.SetLeverage("acc1", "BTCUSDT", dec("10"))

	var mu sync.Mutex
	var breached []string
	m.OnMarginBreach(dec("0.05"), func(accountID, symbol string, ratio decimal.Decimal) {
		// re-entering the manager here must not deadlock
		_ = m.TotalExposure(accountID)
		mu.Lock()
		breached = append(breached, symbol)
		mu.Unlock()
	})

	m.ApplyFill(fill(enum.OrderSideBuy, "1", "100"))
	// 10x long from 100: margin 10, a drop to 91 leaves ratio (10-9)/91 < 0.05
	m.MarkPrice("BTCUSDT", dec("91"))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, breached)
	assert.Equal(t, "BTCUSDT", breached[0])
}
