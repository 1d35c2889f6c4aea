package condition

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func snapshotWith(price string) Snapshot {
	return Snapshot{
		Ticks: map[string]model.Tick{
			"BTCUSDT": {
				Symbol: "BTCUSDT",
				Price:  decimal.RequireFromString(price),
				Volume: decimal.NewFromInt(10),
			},
		},
		Now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func priceLeaf(op enum.Operator, threshold string) Leaf {
	return Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    "BTCUSDT",
		Operator:  op,
		Threshold: decimal.RequireFromString(threshold),
	}
}

func TestLeafComparisons(t *testing.T) {
	cases := []struct {
		name      string
		op        enum.Operator
		threshold string
		price     string
		want      bool
	}{
		{"gt true", enum.OperatorGT, "100", "101", true},
		{"gt false on equal", enum.OperatorGT, "100", "100", false},
		{"gte true on equal", enum.OperatorGTE, "100", "100", true},
		{"lt true", enum.OperatorLT, "100", "99.5", true},
		{"lte false", enum.OperatorLTE, "100", "100.0001", false},
		{"eq true", enum.OperatorEQ, "100", "100.00", true},
		{"neq true", enum.OperatorNEQ, "100", "99", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			root := b.Leaf(priceLeaf(tc.op, tc.threshold))
			tree, err := b.Build(root)
			require.NoError(t, err)

			got, evidence := tree.Evaluate(snapshotWith(tc.price))
			assert.Equal(t, tc.want, got)
			require.Len(t, evidence, 1)
			assert.Equal(t, tc.want, evidence[0].Result)
		})
	}
}

func TestAndShortCircuitsOnFalse(t *testing.T) {
	b := NewBuilder()
	falseLeaf := b.Leaf(priceLeaf(enum.OperatorGT, "1000"))
	trueLeaf := b.Leaf(priceLeaf(enum.OperatorGT, "1"))
	root := b.And(falseLeaf, trueLeaf)
	tree, err := b.Build(root)
	require.NoError(t, err)

	got, evidence := tree.Evaluate(snapshotWith("100"))
	assert.False(t, got)
	// second child never evaluated
	require.Len(t, evidence, 1)
}

func TestOrShortCircuitsOnTrue(t *testing.T) {
	b := NewBuilder()
	trueLeaf := b.Leaf(priceLeaf(enum.OperatorGT, "1"))
	falseLeaf := b.Leaf(priceLeaf(enum.OperatorGT, "1000"))
	root := b.Or(trueLeaf, falseLeaf)
	tree, err := b.Build(root)
	require.NoError(t, err)

	got, evidence := tree.Evaluate(snapshotWith("100"))
	assert.True(t, got)
	require.Len(t, evidence, 1)
}

func TestNotInvertsChild(t *testing.T) {
	b := NewBuilder()
	root := b.Not(b.Leaf(priceLeaf(enum.OperatorGT, "1000")))
	tree, err := b.Build(root)
	require.NoError(t, err)

	got, _ := tree.Evaluate(snapshotWith("100"))
	assert.True(t, got)
}

func TestMissingDataNeverFires(t *testing.T) {
	b := NewBuilder()
	known := b.Leaf(priceLeaf(enum.OperatorGT, "1"))
	unknown := b.Leaf(Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    "ETHUSDT",
		Operator:  enum.OperatorGT,
		Threshold: decimal.NewFromInt(1),
	})

	andRoot := b.And(known, unknown)
	tree, err := b.Build(andRoot)
	require.NoError(t, err)
	got, _ := tree.Evaluate(snapshotWith("100"))
	assert.False(t, got, "unknown under AND must veto")

	b2 := NewBuilder()
	known2 := b2.Leaf(priceLeaf(enum.OperatorGT, "1"))
	unknown2 := b2.Leaf(Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    "ETHUSDT",
		Operator:  enum.OperatorGT,
		Threshold: decimal.NewFromInt(1),
	})
	orRoot := b2.Or(unknown2, known2)
	tree2, err := b2.Build(orRoot)
	require.NoError(t, err)
	got2, _ := tree2.Evaluate(snapshotWith("100"))
	assert.True(t, got2, "unknown under OR must not veto a deciding true")

	b3 := NewBuilder()
	only := b3.Leaf(Leaf{
		Kind:      enum.ConditionKindPrice,
		Symbol:    "ETHUSDT",
		Operator:  enum.OperatorGT,
		Threshold: decimal.NewFromInt(1),
	})
	tree3, err := b3.Build(only)
	require.NoError(t, err)
	got3, _ := tree3.Evaluate(snapshotWith("100"))
	assert.False(t, got3, "unknown at root collapses to false")
}

func TestCrossUpRequiresPreviousTick(t *testing.T) {
	b := NewBuilder()
	root := b.Leaf(priceLeaf(enum.OperatorCrossUp, "100"))
	tree, err := b.Build(root)
	require.NoError(t, err)

	snap := snapshotWith("101")
	got, _ := tree.Evaluate(snap)
	assert.False(t, got, "no previous tick, cross is unknown")

	snap.Prev = map[string]model.Tick{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: decimal.RequireFromString("99")},
	}
	got, _ = tree.Evaluate(snap)
	assert.True(t, got)

	// already above on both ticks: no cross
	snap.Prev["BTCUSDT"] = model.Tick{Symbol: "BTCUSDT", Price: decimal.RequireFromString("100.5")}
	got, _ = tree.Evaluate(snap)
	assert.False(t, got)
}

func TestCrossDown(t *testing.T) {
	b := NewBuilder()
	root := b.Leaf(priceLeaf(enum.OperatorCrossDown, "100"))
	tree, err := b.Build(root)
	require.NoError(t, err)

	snap := snapshotWith("99")
	snap.Prev = map[string]model.Tick{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: decimal.RequireFromString("100")},
	}
	got, _ := tree.Evaluate(snap)
	assert.True(t, got)
}

func TestTimeWindow(t *testing.T) {
	build := func(start, end string) Tree {
		b := NewBuilder()
		root := b.Leaf(Leaf{
			Kind:        enum.ConditionKindTimeWindow,
			Symbol:      "BTCUSDT",
			WindowStart: start,
			WindowEnd:   end,
		})
		tree, err := b.Build(root)
		require.NoError(t, err)
		return tree
	}

	at := func(h, m int) Snapshot {
		return Snapshot{
			Ticks: map[string]model.Tick{"BTCUSDT": {Symbol: "BTCUSDT", Price: decimal.NewFromInt(1)}},
			Now:   time.Date(2026, 3, 1, h, m, 0, 0, time.UTC),
		}
	}

	tree := build("09:00", "17:00")
	got, _ := tree.Evaluate(at(12, 30))
	assert.True(t, got)
	got, _ = tree.Evaluate(at(17, 0))
	assert.False(t, got, "end is exclusive")
	got, _ = tree.Evaluate(at(8, 59))
	assert.False(t, got)

	wrapped := build("22:00", "02:00")
	got, _ = wrapped.Evaluate(at(23, 30))
	assert.True(t, got)
	got, _ = wrapped.Evaluate(at(1, 59))
	assert.True(t, got)
	got, _ = wrapped.Evaluate(at(12, 0))
	assert.False(t, got)
}

func TestCompositeAgreesWithLeafFold(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	price := decimal.NewFromInt(100)
	snap := snapshotWith("100")

	for range 200 {
		n := 2 + rng.Intn(5)
		leaves := make([]Leaf, 0, n)
		allTrue, anyTrue := true, false
		for range n {
			threshold := decimal.NewFromInt(int64(50 + rng.Intn(101)))
			op := enum.OperatorGT
			hit := price.GreaterThan(threshold)
			if rng.Intn(2) == 1 {
				op = enum.OperatorLT
				hit = price.LessThan(threshold)
			}
			leaves = append(leaves, Leaf{
				Kind:      enum.ConditionKindPrice,
				Symbol:    "BTCUSDT",
				Operator:  op,
				Threshold: threshold,
			})
			allTrue = allTrue && hit
			anyTrue = anyTrue || hit
		}

		build := func(combine func(b *Builder, children ...int32) int32) Tree {
			b := NewBuilder()
			ids := make([]int32, 0, len(leaves))
			for _, leaf := range leaves {
				ids = append(ids, b.Leaf(leaf))
			}
			tree, err := b.Build(combine(b, ids...))
			require.NoError(t, err)
			return tree
		}

		andTree := build(func(b *Builder, children ...int32) int32 { return b.And(children...) })
		got, _ := andTree.Evaluate(snap)
		require.Equal(t, allTrue, got, "and over %+v", leaves)

		orTree := build(func(b *Builder, children ...int32) int32 { return b.Or(children...) })
		got, _ = orTree.Evaluate(snap)
		require.Equal(t, anyTrue, got, "or over %+v", leaves)
	}
}

func TestBuildValidation(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(0)
	assert.Error(t, err, "empty arena")

	b2 := NewBuilder()
	leaf := b2.Leaf(priceLeaf(enum.OperatorGT, "1"))
	_, err = b2.Build(leaf + 10)
	assert.Error(t, err, "root out of range")

	b3 := NewBuilder()
	b3.And()
	_, err = b3.Build(0)
	assert.Error(t, err, "and with no children")

	b4 := NewBuilder()
	bad := b4.Leaf(Leaf{Kind: enum.ConditionKindTimeWindow, WindowStart: "9:00", WindowEnd: "17:00"})
	_, err = b4.Build(bad)
	assert.Error(t, err, "malformed clock")
}

func TestIndicatorLeaf(t *testing.T) {
	b := NewBuilder()
	root := b.Leaf(Leaf{
		Kind:          enum.ConditionKindIndicator,
		Symbol:        "BTCUSDT",
		Operator:      enum.OperatorLT,
		Threshold:     decimal.NewFromInt(30),
		IndicatorName: "rsi14",
	})
	tree, err := b.Build(root)
	require.NoError(t, err)

	snap := snapshotWith("100")
	got, _ := tree.Evaluate(snap)
	assert.False(t, got, "missing indicator is unknown")

	tick := snap.Ticks["BTCUSDT"]
	tick.IndicatorValues = map[string]decimal.Decimal{"rsi14": decimal.NewFromInt(25)}
	snap.Ticks["BTCUSDT"] = tick
	got, _ = tree.Evaluate(snap)
	assert.True(t, got)
}
