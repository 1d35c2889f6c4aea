package exception

import "errors"

var (
	ErrExchangeTransient    = errors.New("exchange: transient failure")
	ErrExchangePermanent    = errors.New("exchange: permanent failure")
	ErrExchangeDisconnected = errors.New("exchange: disconnected")
	ErrExchangeTimeout      = errors.New("exchange: call timed out")
)
