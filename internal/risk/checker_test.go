package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseConfig() model.RiskConfig {
	return model.RiskConfig{
		MaxOrderSize:    dec("1000"),
		MaxPositionSize: dec("50"),
		MaxExposure:     dec("100000"),
		MaxSlippage:     dec("0.01"),
		MaxSpread:       dec("0.005"),
		DailyLossLimit:  dec("500"),
		OrderRateLimit:  10,
		OrderRateWindow: 60,
	}
}

func baseInput(notionalPrice, qty string) Input {
	price := dec(notionalPrice)
	return Input{
		Order: model.Order{
			ID:         "o1",
			AccountID:  "acc1",
			StrategyID: "strat1",
			Symbol:     "BTCUSDT",
			Side:       enum.OrderSideBuy,
			Type:       enum.OrderTypeLimit,
			Price:      price,
			Quantity:   dec(qty),
		},
		Account: model.AccountState{
			AccountID:        "acc1",
			Balance:          dec("100000"),
			AvailableBalance: dec("100000"),
		},
		Position: model.Position{AccountID: "acc1", Symbol: "BTCUSDT"},
		Tick: model.Tick{
			Symbol: "BTCUSDT",
			Price:  price,
			Bid:    price.Mul(dec("0.999")),
			Ask:    price.Mul(dec("1.001")),
		},
		Now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCheckAllows(t *testing.T) {
	c := NewChecker(baseConfig())
	result := c.Check(baseInput("100", "5"))
	assert.True(t, result.Allowed)
	assert.Empty(t, result.BlockingReason)
}

func TestMaxOrderSizeBlocksAfterBalancePasses(t *testing.T) {
	c := NewChecker(baseConfig())
	// notional 1500: balance check passes, size limit 1000 blocks
	result := c.Check(baseInput("100", "15"))
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonMaxOrderSize), result.BlockingReason)
}

func TestInsufficientBalanceBlocksFirst(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "15")
	in.Account.AvailableBalance = dec("600")
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonInsufficientBal), result.BlockingReason)
}

func TestStaleSnapshotFailsClosed(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "5")
	in.SnapshotStale = true
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.Equal(t, ReasonStaleSnapshot, result.BlockingReason)
}

func TestWarningNearOrderSizeLimit(t *testing.T) {
	c := NewChecker(baseConfig())
	// notional 900 is above 80% of 1000 but below the limit
	result := c.Check(baseInput("100", "9"))
	require.True(t, result.Allowed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "80%")
}

func TestMaxPositionSizeCountsDirection(t *testing.T) {
	c := NewChecker(baseConfig())

	in := baseInput("10", "20")
	in.Position.Quantity = dec("40")
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonMaxPositionSize), result.BlockingReason)

	// selling from a long reduces, so the same quantity passes
	in.Order.Side = enum.OrderSideSell
	result = c.Check(in)
	assert.True(t, result.Allowed)
}

func TestMaxExposure(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "5")
	in.TotalExposure = dec("99800")
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonMaxExposure), result.BlockingReason)
}

func TestSlippageOnLimitOrders(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "5")
	in.Order.Price = dec("102") // ~2% above mid, limit 1%
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonSlippage), result.BlockingReason)

	in.Order.Type = enum.OrderTypeMarket
	result = c.Check(in)
	assert.True(t, result.Allowed, "market orders skip slippage")
}

func TestSpreadLimit(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "5")
	in.Tick.Bid = dec("99")
	in.Tick.Ask = dec("101") // 2% relative spread, limit 0.5%
	in.Order.Price = in.Tick.Mid()
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonSpread), result.BlockingReason)
}

func TestDailyLossLimit(t *testing.T) {
	c := NewChecker(baseConfig())
	in := baseInput("100", "5")
	in.Account.DailyRealizedPnl = dec("-400")
	in.Position.UnrealizedPnl = dec("-150")
	result := c.Check(in)
	require.False(t, result.Allowed)
	assert.True(t, strings.HasPrefix(result.BlockingReason, ReasonDailyLoss), result.BlockingReason)
}

func TestDuplicateSuppressionAndRateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.OrderRateLimit = 3
	c := NewChecker(cfg)

	in := baseInput("100", "5")
	require.True(t, c.Check(in).Allowed)

	// identical symbol/side/qty inside the window is suppressed
	dup := c.Check(in)
	require.False(t, dup.Allowed)
	assert.Equal(t, ReasonDuplicateOrder, dup.BlockingReason)

	// distinct orders count toward the rate limit
	in2 := baseInput("100", "6")
	require.True(t, c.Check(in2).Allowed)
	in3 := baseInput("100", "7")
	require.True(t, c.Check(in3).Allowed)
	in4 := baseInput("100", "8")
	blocked := c.Check(in4)
	require.False(t, blocked.Allowed)
	assert.True(t, strings.HasPrefix(blocked.BlockingReason, ReasonRateLimited), blocked.BlockingReason)
}

func TestSameOrderReCheckIsExempt(t *testing.T) {
	cfg := baseConfig()
	cfg.OrderRateLimit = 2
	c := NewChecker(cfg)

	in := baseInput("100", "5")
	require.True(t, c.Check(in).Allowed)

	// dispatch re-checks carry the same order ID and must pass
	require.True(t, c.Check(in).Allowed)
	require.True(t, c.Check(in).Allowed)

	// a different order with the same key is still a duplicate
	other := baseInput("100", "5")
	other.Order.ID = "o2"
	dup := c.Check(other)
	require.False(t, dup.Allowed)
	assert.Equal(t, ReasonDuplicateOrder, dup.BlockingReason)

	// the re-checks consumed the window only once
	in3 := baseInput("100", "6")
	in3.Order.ID = "o3"
	require.True(t, c.Check(in3).Allowed)
	in4 := baseInput("100", "7")
	in4.Order.ID = "o4"
	blocked := c.Check(in4)
	require.False(t, blocked.Allowed)
	assert.True(t, strings.HasPrefix(blocked.BlockingReason, ReasonRateLimited), blocked.BlockingReason)
}

func TestCheckIsDeterministic(t *testing.T) {
	cfg := baseConfig()
	cfg.OrderRateLimit = 0 // rate window is the only stateful rule
	c := NewChecker(cfg)
	in := baseInput("100", "15")

	first := c.Check(in)
	for range 10 {
		assert.Equal(t, first, c.Check(in))
	}
}

func TestStrategyOverride(t *testing.T) {
	c := NewChecker(baseConfig())
	override := baseConfig()
	override.MaxOrderSize = dec("10000")
	c.SetStrategyConfig("strat1", override)

	result := c.Check(baseInput("100", "15"))
	assert.True(t, result.Allowed, "override raises the limit for this strategy")

	in := baseInput("100", "15")
	in.Order.StrategyID = "other"
	result = c.Check(in)
	assert.False(t, result.Allowed, "other strategies keep defaults")
}
