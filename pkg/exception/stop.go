package exception

import "errors"

var (
	ErrEmergencyStopActive = errors.New("stop: emergency stop active")
	ErrStopDuplicateActive = errors.New("stop: active record exists for level/target")
	ErrStopUnknownRecord   = errors.New("stop: record not found")
	ErrStopNotActive       = errors.New("stop: record is not active")
	ErrStopBadConfirmToken = errors.New("stop: confirmation token mismatch")
	ErrStopInvalidLevel    = errors.New("stop: invalid level")
)
