package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/model"
)

// Paper is an in-process exchange used by paper mode and tests. Fill
// behavior and failures are scripted by the caller.
type Paper struct {
	mu          sync.Mutex
	account     model.AccountState
	fillRatio   decimal.Decimal
	pendingErrs []error
	failCancel  map[string]bool
	cancelled   map[string]bool
	submissions int
	lastOrder   model.Order
}

func NewPaper(accountID string, balance decimal.Decimal) *Paper {
	return &Paper{
		account: model.AccountState{
			AccountID:        accountID,
			Balance:          balance,
			AvailableBalance: balance,
		},
		fillRatio:  decimal.NewFromInt(1),
		failCancel: make(map[string]bool),
		cancelled:  make(map[string]bool),
	}
}

// FailNext scripts errors returned by upcoming submissions, in order.
func (p *Paper) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingErrs = append(p.pendingErrs, errs...)
}

// SetFillRatio scripts the immediately-filled fraction of each submission.
func (p *Paper) SetFillRatio(ratio decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fillRatio = ratio
}

// FailCancel makes Cancel report failure for the given order.
func (p *Paper) FailCancel(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCancel[orderID] = true
}

func (p *Paper) Submit(ctx context.Context, order model.Order) (Ack, error) {
	select {
	case <-ctx.Done():
		return Ack{}, &TransientError{Reason: "submit cancelled", Err: ctx.Err()}
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.submissions++
	p.lastOrder = order
	if len(p.pendingErrs) > 0 {
		err := p.pendingErrs[0]
		p.pendingErrs = p.pendingErrs[1:]
		if err != nil {
			return Ack{}, err
		}
	}

	filled := order.Quantity.Mul(p.fillRatio)
	status := AckAccepted
	switch {
	case filled.GreaterThanOrEqual(order.Quantity):
		filled = order.Quantity
		status = AckFilled
	case filled.IsPositive():
		status = AckPartiallyFilled
	}

	price := order.Price
	if price.IsZero() {
		price = decimal.NewFromInt(1)
	}
	return Ack{
		ExchangeOrderID: uuid.NewString(),
		Status:          status,
		FilledQuantity:  filled,
		AveragePrice:    price,
		At:              time.Now(),
	}, nil
}

func (p *Paper) Cancel(ctx context.Context, orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCancel[orderID] {
		return false
	}
	p.cancelled[orderID] = true
	return true
}

func (p *Paper) AccountState(ctx context.Context) (model.AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.account
	out.At = time.Now()
	return out, nil
}

// Submissions returns how many submit calls the paper venue has seen.
func (p *Paper) Submissions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submissions
}

// LastOrder returns the most recently submitted order.
func (p *Paper) LastOrder() model.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOrder
}

// Cancelled reports whether Cancel succeeded for the order.
func (p *Paper) Cancelled(orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled[orderID]
}
