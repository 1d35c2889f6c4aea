package enum

// Channel notification transport
type Channel uint8

const (
	_channel_beg Channel = iota
	ChannelLog
	ChannelDesktop
	ChannelTelegram
	ChannelEmail
	ChannelWebhook
	ChannelSlack
	ChannelDiscord
	_channel_end
)

func (c Channel) IsAvailable() bool {
	return c > _channel_beg && c < _channel_end
}

func (c Channel) String() string {
	switch c {
	case ChannelLog:
		return "LOG"
	case ChannelDesktop:
		return "DESKTOP"
	case ChannelTelegram:
		return "TELEGRAM"
	case ChannelEmail:
		return "EMAIL"
	case ChannelWebhook:
		return "WEBHOOK"
	case ChannelSlack:
		return "SLACK"
	case ChannelDiscord:
		return "DISCORD"
	default:
		return "UNKNOWN"
	}
}
