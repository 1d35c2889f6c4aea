package enum

// StopLevel global, user, account, symbol, strategy. Lower value masks higher.
type StopLevel uint8

const (
	_stop_level_beg StopLevel = iota
	StopLevelGlobal
	StopLevelUser
	StopLevelAccount
	StopLevelSymbol
	StopLevelStrategy
	_stop_level_end
)

func (l StopLevel) IsAvailable() bool {
	return l > _stop_level_beg && l < _stop_level_end
}

// Masks reports whether a stop at level l shadows a stop at other.
func (l StopLevel) Masks(other StopLevel) bool {
	return l < other
}

func (l StopLevel) String() string {
	switch l {
	case StopLevelGlobal:
		return "GLOBAL"
	case StopLevelUser:
		return "USER"
	case StopLevelAccount:
		return "ACCOUNT"
	case StopLevelSymbol:
		return "SYMBOL"
	case StopLevelStrategy:
		return "STRATEGY"
	default:
		return "UNKNOWN"
	}
}

// StopStatus active, cancelled, expired
type StopStatus uint8

const (
	_stop_status_beg StopStatus = iota
	StopStatusActive
	StopStatusCancelled
	StopStatusExpired
	_stop_status_end
)

func (s StopStatus) IsAvailable() bool {
	return s > _stop_status_beg && s < _stop_status_end
}

func (s StopStatus) String() string {
	switch s {
	case StopStatusActive:
		return "ACTIVE"
	case StopStatusCancelled:
		return "CANCELLED"
	case StopStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}
