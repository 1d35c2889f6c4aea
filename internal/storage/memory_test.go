package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

func TestOrderVersionedUpdate(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	order := model.Order{ID: "o1", Symbol: "BTCUSDT", Status: enum.OrderStatusNew, Version: 1}
	require.NoError(t, m.SaveOrder(ctx, order))

	order.Status = enum.OrderStatusSubmitted
	order.Version = 2
	require.NoError(t, m.UpdateOrder(ctx, order))

	got, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusSubmitted, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestOrderUpdateConflicts(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()
	require.NoError(t, m.SaveOrder(ctx, model.Order{ID: "o1", Version: 1}))

	// skipping a version means someone else wrote in between
	stale := model.Order{ID: "o1", Version: 3}
	assert.ErrorIs(t, m.UpdateOrder(ctx, stale), exception.ErrVersionConflict)

	// replaying the same version loses against the stored write
	replay := model.Order{ID: "o1", Version: 1}
	assert.ErrorIs(t, m.UpdateOrder(ctx, replay), exception.ErrVersionConflict)

	assert.ErrorIs(t, m.UpdateOrder(ctx, model.Order{ID: "missing", Version: 2}), exception.ErrNotFound)
}

func TestStopAndAlertUpdates(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	record := model.EmergencyStopRecord{ID: "s1", Level: enum.StopLevelGlobal, Status: enum.StopStatusActive, Version: 1}
	require.NoError(t, m.SaveStop(ctx, record))
	record.Status = enum.StopStatusCancelled
	record.Version = 2
	require.NoError(t, m.UpdateStop(ctx, record))
	record.Version = 2
	assert.ErrorIs(t, m.UpdateStop(ctx, record), exception.ErrVersionConflict)

	alert := model.RiskAlert{ID: "a1", Severity: enum.SeverityHigh, Version: 1}
	require.NoError(t, m.SaveAlert(ctx, alert))
	alert.IsAcknowledged = true
	alert.Version = 2
	require.NoError(t, m.UpdateAlert(ctx, alert))

	got, err := m.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.IsAcknowledged)

	_, err = m.GetAlert(ctx, "missing")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestListRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	require.NoError(t, m.SaveOrder(ctx, model.Order{ID: "o1", Version: 1}))
	require.NoError(t, m.SaveOrder(ctx, model.Order{ID: "o2", Version: 1}))
	require.NoError(t, m.SavePosition(ctx, model.Position{AccountID: "acc1", Symbol: "BTCUSDT"}))
	require.NoError(t, m.SaveAutoOrder(ctx, model.AutoOrder{ID: "auto1"}))

	orders, err := m.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	positions, err := m.ListPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	autos, err := m.ListAutoOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, autos, 1)
}
