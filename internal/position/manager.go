package position

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

// maintenanceMarginRate approximates the exchange maintenance requirement.
const maintenanceMarginRate = "0.005"

// Fill is the execution report applied to position aggregates.
type Fill struct {
	OrderID   string
	AccountID string
	Symbol    string
	Side      enum.OrderSide
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	At        time.Time
}

type key struct {
	accountID string
	symbol    string
}

// Manager is the single writer of position aggregates. Every mutation is
// serialized behind one mutex; readers get copies stamped with a version.
type Manager struct {
	mu        sync.Mutex
	positions map[key]*model.Position
	marks     map[string]decimal.Decimal
	threshold decimal.Decimal
	onBreach  func(accountID, symbol string, ratio decimal.Decimal)
}

func NewManager() *Manager {
	return &Manager{
		positions: make(map[key]*model.Position),
		marks:     make(map[string]decimal.Decimal),
		threshold: decimal.RequireFromString("0.05"),
	}
}

// OnMarginBreach registers the automatic emergency-stop hook. The callback
// runs outside the manager lock.
func (m *Manager) OnMarginBreach(threshold decimal.Decimal, fn func(accountID, symbol string, ratio decimal.Decimal)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold.IsPositive() {
		m.threshold = threshold
	}
	m.onBreach = fn
}

// SetLeverage configures leverage for an account/symbol pair.
func (m *Manager) SetLeverage(accountID, symbol string, leverage decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensure(accountID, symbol)
	p.Leverage = leverage
	p.Version++
}

func (m *Manager) ensure(accountID, symbol string) *model.Position {
	k := key{accountID: accountID, symbol: symbol}
	p, ok := m.positions[k]
	if !ok {
		p = &model.Position{AccountID: accountID, Symbol: symbol, Leverage: decimal.NewFromInt(1)}
		m.positions[k] = p
	}
	return p
}

// ApplyFill folds one fill into the aggregate. Increases extend the
// weighted-average basis; decreases realize PnL proportionally against it.
// A fill larger than the open position closes it and opens the remainder
// in the opposite direction at the fill price.
func (m *Manager) ApplyFill(fill Fill) model.Position {
	m.mu.Lock()
	p := m.ensure(fill.AccountID, fill.Symbol)

	signed := fill.Quantity
	if fill.Side == enum.OrderSideSell {
		signed = signed.Neg()
	}

	switch {
	case p.Quantity.IsZero() || p.Quantity.Sign() == signed.Sign():
		// extend: weighted average cost basis
		oldNotional := p.Quantity.Abs().Mul(p.AvgEntryPrice)
		addNotional := fill.Quantity.Mul(fill.Price)
		newQty := p.Quantity.Add(signed)
		p.AvgEntryPrice = oldNotional.Add(addNotional).Div(newQty.Abs())
		p.Quantity = newQty
	default:
		closeQty := decimal.Min(p.Quantity.Abs(), fill.Quantity)
		pnl := fill.Price.Sub(p.AvgEntryPrice).Mul(closeQty)
		if p.Quantity.IsNegative() {
			pnl = pnl.Neg()
		}
		p.RealizedPnl = p.RealizedPnl.Add(pnl)
		p.Quantity = p.Quantity.Add(signed)
		if p.Quantity.IsZero() {
			p.AvgEntryPrice = decimal.Zero
			p.UnrealizedPnl = decimal.Zero
		} else if p.Quantity.Sign() == signed.Sign() {
			// flipped through zero, remainder opens at the fill price
			p.AvgEntryPrice = fill.Price
		}
	}

	p.UpdatedAt = fill.At
	p.Version++
	m.refresh(p)
	out := *p
	breach := m.breachLocked(p)
	m.mu.Unlock()

	if breach != nil {
		breach()
	}
	return out
}

// MarkPrice updates the mark for a symbol and recomputes unrealized PnL,
// margin ratio and liquidation distance for every holder.
func (m *Manager) MarkPrice(symbol string, mark decimal.Decimal) {
	var breaches []func()

	m.mu.Lock()
	m.marks[symbol] = mark
	for _, p := range m.positions {
		if p.Symbol != symbol || p.Quantity.IsZero() {
			continue
		}
		m.refresh(p)
		p.Version++
		if fn := m.breachLocked(p); fn != nil {
			breaches = append(breaches, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range breaches {
		fn()
	}
}

// refresh recomputes the derived fields from the current mark. Caller holds the lock.
func (m *Manager) refresh(p *model.Position) {
	mark, ok := m.marks[p.Symbol]
	if !ok || mark.IsZero() || p.Quantity.IsZero() {
		p.MarginRatio = nil
		p.LiquidationPrice = nil
		return
	}

	diff := mark.Sub(p.AvgEntryPrice).Mul(p.Quantity.Abs())
	if p.Quantity.IsNegative() {
		diff = diff.Neg()
	}
	p.UnrealizedPnl = diff

	if p.Leverage.LessThanOrEqual(decimal.NewFromInt(1)) {
		p.MarginRatio = nil
		p.LiquidationPrice = nil
		return
	}

	notional := p.Quantity.Abs().Mul(mark)
	margin := p.Quantity.Abs().Mul(p.AvgEntryPrice).Div(p.Leverage)
	ratio := margin.Add(p.UnrealizedPnl).Div(notional)
	p.MarginRatio = &ratio

	maint := decimal.RequireFromString(maintenanceMarginRate)
	step := p.AvgEntryPrice.Div(p.Leverage)
	var liq decimal.Decimal
	if p.Quantity.IsPositive() {
		liq = p.AvgEntryPrice.Sub(step).Add(p.AvgEntryPrice.Mul(maint))
	} else {
		liq = p.AvgEntryPrice.Add(step).Sub(p.AvgEntryPrice.Mul(maint))
	}
	p.LiquidationPrice = &liq
}

func (m *Manager) breachLocked(p *model.Position) func() {
	if m.onBreach == nil || p.MarginRatio == nil {
		return nil
	}
	if p.MarginRatio.GreaterThanOrEqual(m.threshold) {
		return nil
	}
	accountID, symbol, ratio := p.AccountID, p.Symbol, *p.MarginRatio
	fn := m.onBreach
	logs.Warnf("position %s/%s margin ratio %s below threshold %s", accountID, symbol, ratio, m.threshold)
	return func() { fn(accountID, symbol, ratio) }
}

// Snapshot returns a versioned copy of the aggregate.
func (m *Manager) Snapshot(accountID, symbol string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[key{accountID: accountID, symbol: symbol}]
	if !ok {
		return model.Position{AccountID: accountID, Symbol: symbol, Leverage: decimal.NewFromInt(1)}, false
	}
	return *p, true
}

// Stale reports whether a previously read snapshot has been superseded.
func (m *Manager) Stale(snapshot model.Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[key{accountID: snapshot.AccountID, symbol: snapshot.Symbol}]
	if !ok {
		return snapshot.Version != 0
	}
	return p.Version != snapshot.Version
}

// TotalExposure sums absolute notional across one account at current marks.
func (m *Manager) TotalExposure(accountID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, p := range m.positions {
		if p.AccountID != accountID || p.Quantity.IsZero() {
			continue
		}
		mark, ok := m.marks[p.Symbol]
		if !ok || mark.IsZero() {
			mark = p.AvgEntryPrice
		}
		total = total.Add(p.Quantity.Abs().Mul(mark))
	}
	return total
}

// All returns copies of every tracked position.
func (m *Manager) All() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}
