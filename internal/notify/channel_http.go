package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(exception.ErrNotifyChannelFailed, "status %d", resp.StatusCode)
	}
	return nil
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// TelegramChannel sends via the bot sendMessage endpoint.
type TelegramChannel struct {
	client   *http.Client
	botToken string
	chatID   string
}

func NewTelegramChannel(botToken, chatID string) *TelegramChannel {
	return &TelegramChannel{client: defaultClient(), botToken: botToken, chatID: chatID}
}

func (*TelegramChannel) Kind() enum.Channel {
	return enum.ChannelTelegram
}

func (c *TelegramChannel) Send(ctx context.Context, alert model.RiskAlert) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.botToken)
	return postJSON(ctx, c.client, url, map[string]any{
		"chat_id": c.chatID,
		"text":    fmt.Sprintf("[%s] %s\n%s", alert.Severity, alert.Title, alert.Message),
	})
}

// WebhookChannel posts the full alert to a configured endpoint.
type WebhookChannel struct {
	client *http.Client
	url    string
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{client: defaultClient(), url: url}
}

func (*WebhookChannel) Kind() enum.Channel {
	return enum.ChannelWebhook
}

func (c *WebhookChannel) Send(ctx context.Context, alert model.RiskAlert) error {
	return postJSON(ctx, c.client, c.url, alert)
}

// SlackChannel posts to an incoming-webhook URL.
type SlackChannel struct {
	client *http.Client
	url    string
}

func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{client: defaultClient(), url: webhookURL}
}

func (*SlackChannel) Kind() enum.Channel {
	return enum.ChannelSlack
}

func (c *SlackChannel) Send(ctx context.Context, alert model.RiskAlert) error {
	return postJSON(ctx, c.client, c.url, map[string]any{
		"text": fmt.Sprintf("*[%s] %s*\n%s", alert.Severity, alert.Title, alert.Message),
	})
}

// DiscordChannel posts to a channel webhook.
type DiscordChannel struct {
	client *http.Client
	url    string
}

func NewDiscordChannel(webhookURL string) *DiscordChannel {
	return &DiscordChannel{client: defaultClient(), url: webhookURL}
}

func (*DiscordChannel) Kind() enum.Channel {
	return enum.ChannelDiscord
}

func (c *DiscordChannel) Send(ctx context.Context, alert model.RiskAlert) error {
	return postJSON(ctx, c.client, c.url, map[string]any{
		"content": fmt.Sprintf("**[%s] %s**\n%s", alert.Severity, alert.Title, alert.Message),
	})
}
