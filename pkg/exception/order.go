package exception

import "errors"

var (
	ErrOrderInvalidRequest    = errors.New("order: invalid request")
	ErrOrderDuplicate         = errors.New("order: already exists")
	ErrOrderUnknown           = errors.New("order: not found")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrOrderInvalidFill       = errors.New("order: invalid fill quantity")
	ErrOrderTerminal          = errors.New("order: already terminal")
	ErrDispatchQueueFull      = errors.New("order: dispatch queue full")
	ErrOrderRetriesExhausted  = errors.New("order: retries exhausted")
)
