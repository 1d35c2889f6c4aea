package notify

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

// LogChannel writes alerts to the structured log. It never fails, which
// makes it the floor of every severity route.
type LogChannel struct{}

func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

func (*LogChannel) Kind() enum.Channel {
	return enum.ChannelLog
}

func (*LogChannel) Send(_ context.Context, alert model.RiskAlert) error {
	switch alert.Severity {
	case enum.SeverityLow:
		logs.Infof("[alert:%s] %s: %s", alert.Severity, alert.Title, alert.Message)
	case enum.SeverityMedium, enum.SeverityHigh:
		logs.Warnf("[alert:%s] %s: %s", alert.Severity, alert.Title, alert.Message)
	default:
		logs.Errorf("[alert:%s] %s: %s", alert.Severity, alert.Title, alert.Message)
	}
	return nil
}
