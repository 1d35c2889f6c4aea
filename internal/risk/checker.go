package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Blocking reasons, also used as notification text.
const (
	ReasonStaleSnapshot    = "stale position snapshot"
	ReasonInsufficientBal  = "insufficient balance"
	ReasonMaxOrderSize     = "exceeds max order size"
	ReasonMaxPositionSize  = "exceeds max position size"
	ReasonMaxExposure      = "exceeds max aggregate exposure"
	ReasonSlippage         = "price deviation exceeds max slippage"
	ReasonSpread           = "spread exceeds max spread"
	ReasonDailyLoss        = "daily loss limit reached"
	ReasonRateLimited      = "order rate limit exceeded"
	ReasonDuplicateOrder   = "duplicate order suppressed"
)

// Input is everything one check evaluates. The result is never cached;
// callers build a fresh input per attempt.
type Input struct {
	Order         model.Order
	Account       model.AccountState
	Position      model.Position
	TotalExposure decimal.Decimal
	Tick          model.Tick
	// SnapshotStale marks that the position snapshot version moved between
	// read and use. The check fails closed instead of racing.
	SnapshotStale bool
	Now           time.Time
}

type strategyWindow struct {
	windowStart time.Time
	count       int
	lastKey     string
	lastOrderID string
	lastAt      time.Time
}

// Checker validates proposed orders against limits and current exposure.
// Rules evaluate in fixed order and short-circuit on the first block.
type Checker struct {
	mu       sync.Mutex
	defaults model.RiskConfig
	strategy map[string]model.RiskConfig
	windows  map[string]*strategyWindow
}

func NewChecker(defaults model.RiskConfig) *Checker {
	return &Checker{
		defaults: defaults,
		strategy: make(map[string]model.RiskConfig),
		windows:  make(map[string]*strategyWindow),
	}
}

// SetStrategyConfig overrides limits for one strategy.
func (c *Checker) SetStrategyConfig(strategyID string, cfg model.RiskConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy[strategyID] = cfg
}

func (c *Checker) config(strategyID string) model.RiskConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.strategy[strategyID]; ok {
		return cfg
	}
	return c.defaults
}

func blocked(reason string, warnings []string) model.RiskCheckResult {
	return model.RiskCheckResult{Allowed: false, BlockingReason: reason, Warnings: warnings}
}

// Check runs the rule chain. Pure with respect to Input except for the
// per-strategy rate window, which only advances when the order passes
// every other rule.
func (c *Checker) Check(in Input) model.RiskCheckResult {
	cfg := c.config(in.Order.StrategyID)
	var warnings []string

	if in.SnapshotStale {
		return blocked(ReasonStaleSnapshot, warnings)
	}

	reference := in.Tick.Mid()
	notional := in.Order.Notional(reference)

	if notional.GreaterThan(in.Account.AvailableBalance) {
		return blocked(fmt.Sprintf("%s: need %s, available %s",
			ReasonInsufficientBal, notional, in.Account.AvailableBalance), warnings)
	}

	if cfg.MaxOrderSize.IsPositive() && notional.GreaterThan(cfg.MaxOrderSize) {
		return blocked(fmt.Sprintf("%s: notional %s > limit %s",
			ReasonMaxOrderSize, notional, cfg.MaxOrderSize), warnings)
	}
	if cfg.MaxOrderSize.IsPositive() {
		headroom := cfg.MaxOrderSize.Mul(decimal.NewFromFloat(0.8))
		if notional.GreaterThan(headroom) {
			warnings = append(warnings, "order notional above 80% of max order size")
		}
	}

	next := nextPosition(in.Position.Quantity, in.Order.Side, in.Order.Quantity)
	if cfg.MaxPositionSize.IsPositive() && next.Abs().GreaterThan(cfg.MaxPositionSize) {
		return blocked(fmt.Sprintf("%s: resulting position %s > limit %s",
			ReasonMaxPositionSize, next, cfg.MaxPositionSize), warnings)
	}

	if cfg.MaxExposure.IsPositive() {
		exposure := in.TotalExposure.Add(notional)
		if exposure.GreaterThan(cfg.MaxExposure) {
			return blocked(fmt.Sprintf("%s: exposure %s > limit %s",
				ReasonMaxExposure, exposure, cfg.MaxExposure), warnings)
		}
	}

	if cfg.MaxSlippage.IsPositive() && in.Order.Type == enum.OrderTypeLimit && in.Order.Price.IsPositive() {
		if reference.IsZero() {
			warnings = append(warnings, "no reference price, slippage not checked")
		} else {
			deviation := in.Order.Price.Sub(reference).Abs().Div(reference)
			if deviation.GreaterThan(cfg.MaxSlippage) {
				return blocked(fmt.Sprintf("%s: deviation %s > limit %s",
					ReasonSlippage, deviation, cfg.MaxSlippage), warnings)
			}
		}
	}

	if cfg.MaxSpread.IsPositive() {
		spread := in.Tick.Spread()
		if spread.IsPositive() && reference.IsPositive() {
			relative := spread.Div(reference)
			if relative.GreaterThan(cfg.MaxSpread) {
				return blocked(fmt.Sprintf("%s: spread %s > limit %s",
					ReasonSpread, relative, cfg.MaxSpread), warnings)
			}
		}
	}

	if cfg.DailyLossLimit.IsPositive() {
		loss := in.Account.DailyRealizedPnl.Add(in.Position.UnrealizedPnl)
		if loss.IsNegative() && loss.Neg().GreaterThanOrEqual(cfg.DailyLossLimit) {
			return blocked(fmt.Sprintf("%s: loss %s >= limit %s",
				ReasonDailyLoss, loss.Neg(), cfg.DailyLossLimit), warnings)
		}
	}

	if reason, ok := c.admitRate(in.Order, cfg, in.Now); !ok {
		return blocked(reason, warnings)
	}

	return model.RiskCheckResult{Allowed: true, Warnings: warnings}
}

// admitRate enforces the per-strategy rate window and duplicate suppression.
func (c *Checker) admitRate(order model.Order, cfg model.RiskConfig, now time.Time) (string, bool) {
	if cfg.OrderRateLimit <= 0 || cfg.OrderRateWindow <= 0 {
		return "", true
	}
	if now.IsZero() {
		now = time.Now()
	}
	window := time.Duration(cfg.OrderRateWindow) * time.Second

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[order.StrategyID]
	if !ok {
		w = &strategyWindow{}
		c.windows[order.StrategyID] = w
	}
	if w.windowStart.IsZero() || now.Sub(w.windowStart) >= window {
		w.windowStart = now
		w.count = 0
	}

	// the same order is checked once at submit and again before each
	// dispatch attempt; re-checks consume the window only once and never
	// trip their own suppression
	if order.ID != "" && order.ID == w.lastOrderID {
		return "", true
	}

	key := order.Symbol + "|" + order.Side.String() + "|" + order.Quantity.String()
	if w.lastKey == key && now.Sub(w.lastAt) < window {
		return ReasonDuplicateOrder, false
	}

	w.count++
	if w.count > cfg.OrderRateLimit {
		return fmt.Sprintf("%s: %d in window", ReasonRateLimited, w.count), false
	}
	w.lastKey = key
	w.lastOrderID = order.ID
	w.lastAt = now
	return "", true
}

func nextPosition(pos decimal.Decimal, side enum.OrderSide, qty decimal.Decimal) decimal.Decimal {
	switch side {
	case enum.OrderSideBuy:
		return pos.Add(qty)
	case enum.OrderSideSell:
		return pos.Sub(qty)
	default:
		return pos
	}
}
