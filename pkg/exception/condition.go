package exception

import "errors"

var (
	ErrConditionEmptyTree     = errors.New("condition: empty tree")
	ErrConditionUnknownNode   = errors.New("condition: unknown node kind")
	ErrConditionBadChildIndex = errors.New("condition: child index out of range")
	ErrConditionNoChildren    = errors.New("condition: combinator without children")
	ErrConditionDuplicateID   = errors.New("condition: duplicate id")
	ErrConditionUnknownID     = errors.New("condition: unknown id")
	ErrConditionDataGap       = errors.New("condition: leaf data unavailable")
	ErrConditionBadOperator   = errors.New("condition: unsupported operator")
	ErrConditionBadTimeWindow = errors.New("condition: invalid time window")
)
