package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/pkg/exception"
)

// Ack is the exchange's acceptance of a submission.
type Ack struct {
	ExchangeOrderID string
	Status          AckStatus
	FilledQuantity  decimal.Decimal
	AveragePrice    decimal.Decimal
	At              time.Time
}

// AckStatus is the submission outcome reported by the venue.
type AckStatus uint8

const (
	AckAccepted AckStatus = iota + 1
	AckPartiallyFilled
	AckFilled
)

// Adapter is the external exchange contract consumed by the execution
// engine. Implementations map venue wire protocols onto it.
type Adapter interface {
	Submit(ctx context.Context, order model.Order) (Ack, error)
	Cancel(ctx context.Context, orderID string) bool
	AccountState(ctx context.Context) (model.AccountState, error)
}

// TransientError marks a retryable failure (network, rate limit).
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient: %s", e.Reason)
}

func (e *TransientError) Unwrap() []error {
	return []error{exception.ErrExchangeTransient, e.Err}
}

// PermanentError marks a non-retryable rejection (invalid params, venue reject).
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent: %s", e.Reason)
}

func (e *PermanentError) Unwrap() []error {
	return []error{exception.ErrExchangePermanent, e.Err}
}

// Transient wraps a reason as a retryable submission failure.
func Transient(reason string) error {
	return &TransientError{Reason: reason}
}

// Permanent wraps a reason as a terminal submission failure.
func Permanent(reason string) error {
	return &PermanentError{Reason: reason}
}
