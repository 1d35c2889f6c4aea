package exception

import "errors"

var (
	ErrNotifyQueueFull      = errors.New("notify: delivery queue full")
	ErrNotifyUnknownAlert   = errors.New("notify: alert not found")
	ErrNotifyNoChannels     = errors.New("notify: no channels configured")
	ErrNotifyChannelFailed  = errors.New("notify: channel delivery failed")
	ErrNotifyEscalationCeil = errors.New("notify: escalation ceiling reached")
)
