package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyRunning  = errors.New("already running")
	ErrInternal        = errors.New("internal error")
	ErrVersionConflict = errors.New("version conflict")
)
