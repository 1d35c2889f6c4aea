package exception

import "errors"

var (
	ErrRiskBlocked       = errors.New("risk: order blocked")
	ErrRiskStaleSnapshot = errors.New("risk: position snapshot is stale")
	ErrRiskNilConfig     = errors.New("risk: nil config")
)
