package enum

// ConditionKind price, volume, time window, technical indicator, market alert
type ConditionKind uint8

const (
	_condition_kind_beg ConditionKind = iota
	ConditionKindPrice
	ConditionKindVolume
	ConditionKindTimeWindow
	ConditionKindIndicator
	ConditionKindMarketAlert
	_condition_kind_end
)

func (k ConditionKind) IsAvailable() bool {
	return k > _condition_kind_beg && k < _condition_kind_end
}

func (k ConditionKind) String() string {
	switch k {
	case ConditionKindPrice:
		return "PRICE"
	case ConditionKindVolume:
		return "VOLUME"
	case ConditionKindTimeWindow:
		return "TIME_WINDOW"
	case ConditionKindIndicator:
		return "INDICATOR"
	case ConditionKindMarketAlert:
		return "MARKET_ALERT"
	default:
		return "UNKNOWN"
	}
}

// Operator comparison applied by a leaf predicate
type Operator uint8

const (
	_operator_beg Operator = iota
	OperatorGT
	OperatorGTE
	OperatorLT
	OperatorLTE
	OperatorEQ
	OperatorNEQ
	OperatorCrossUp
	OperatorCrossDown
	_operator_end
)

func (o Operator) IsAvailable() bool {
	return o > _operator_beg && o < _operator_end
}

func (o Operator) String() string {
	switch o {
	case OperatorGT:
		return ">"
	case OperatorGTE:
		return ">="
	case OperatorLT:
		return "<"
	case OperatorLTE:
		return "<="
	case OperatorEQ:
		return "=="
	case OperatorNEQ:
		return "!="
	case OperatorCrossUp:
		return "CROSS_UP"
	case OperatorCrossDown:
		return "CROSS_DOWN"
	default:
		return "UNKNOWN"
	}
}

// ReArmPolicy how an edge-triggered condition becomes able to fire again
type ReArmPolicy uint8

const (
	_re_arm_policy_beg ReArmPolicy = iota
	ReArmOnFalse
	ReArmAfterCooldown
	_re_arm_policy_end
)

func (p ReArmPolicy) IsAvailable() bool {
	return p > _re_arm_policy_beg && p < _re_arm_policy_end
}
