package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func leafNode(kind, operator, threshold string) ConditionNodeRequest {
	return ConditionNodeRequest{Op: "leaf", Kind: kind, Operator: operator, Threshold: threshold}
}

func TestBuildConditionComposite(t *testing.T) {
	req := ConditionRequest{
		CooldownSeconds: 60,
		ReArm:           "AFTER_COOLDOWN",
		Root: ConditionNodeRequest{
			Op: "and",
			Children: []ConditionNodeRequest{
				leafNode("PRICE", ">", "50000"),
				{
					Op:       "not",
					Children: []ConditionNodeRequest{leafNode("VOLUME", "<", "10")},
				},
			},
		},
	}

	cond, err := buildCondition(req, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cond.Symbol)
	assert.Equal(t, 60, cond.CooldownSeconds)
	assert.Equal(t, enum.ReArmAfterCooldown, cond.ReArm)
}

func TestBuildConditionRejectsBadInput(t *testing.T) {
	_, err := buildCondition(ConditionRequest{
		Root: ConditionNodeRequest{Op: "and"},
	}, "BTCUSDT")
	assert.ErrorContains(t, err, "requires children")

	_, err = buildCondition(ConditionRequest{
		Root: leafNode("PRICE", "~", "1"),
	}, "BTCUSDT")
	assert.ErrorContains(t, err, "unknown operator")

	_, err = buildCondition(ConditionRequest{
		Root: leafNode("PRICE", ">", "not-a-number"),
	}, "BTCUSDT")
	assert.ErrorContains(t, err, "bad threshold")

	_, err = buildCondition(ConditionRequest{
		Root: ConditionNodeRequest{
			Op:       "not",
			Children: []ConditionNodeRequest{leafNode("PRICE", ">", "1"), leafNode("PRICE", "<", "2")},
		},
	}, "BTCUSDT")
	assert.ErrorContains(t, err, "exactly one child")
}

func TestOperatorAliases(t *testing.T) {
	for _, alias := range []string{">", "GT", "gt"} {
		op, err := parseOperator(alias)
		require.NoError(t, err)
		assert.Equal(t, enum.OperatorGT, op)
	}
	op, err := parseOperator("CROSS_UP")
	require.NoError(t, err)
	assert.Equal(t, enum.OperatorCrossUp, op)
}

func TestAutoOrderRequestToModel(t *testing.T) {
	req := AutoOrderRequest{
		AccountID:  "acc1",
		Symbol:     "BTCUSDT",
		Side:       "buy",
		OrderType:  "limit",
		Quantity:   "0.5",
		LimitPrice: "50000",
	}
	auto, err := req.toModel()
	require.NoError(t, err)
	assert.Equal(t, enum.OrderSideBuy, auto.Side)
	assert.Equal(t, enum.OrderTypeLimit, auto.OrderType)
	assert.Equal(t, "0.5", auto.Quantity.String())
	assert.Equal(t, "50000", auto.LimitPrice.String())

	req.Quantity = "lots"
	_, err = req.toModel()
	assert.ErrorContains(t, err, "bad quantity")

	req.Quantity = "1"
	req.Side = "hold"
	_, err = req.toModel()
	assert.ErrorContains(t, err, "unknown side")
}
