package enum

// Severity low, medium, high, critical, emergency
type Severity uint8

const (
	_severity_beg Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
	SeverityEmergency
	_severity_end
)

func (s Severity) IsAvailable() bool {
	return s > _severity_beg && s < _severity_end
}

// Next returns the severity one level up, capped at emergency.
func (s Severity) Next() Severity {
	if s >= SeverityEmergency {
		return SeverityEmergency
	}
	return s + 1
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	case SeverityEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}
