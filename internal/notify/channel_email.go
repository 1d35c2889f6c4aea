package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// EmailChannel delivers over SMTP with plain auth.
type EmailChannel struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(host string, port int, username, password, from string, to []string) *EmailChannel {
	return &EmailChannel{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
		to:   to,
		send: smtp.SendMail,
	}
}

func (*EmailChannel) Kind() enum.Channel {
	return enum.ChannelEmail
}

func (c *EmailChannel) Send(ctx context.Context, alert model.RiskAlert) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: [%s] %s\r\n\r\n%s\r\n",
		c.from, strings.Join(c.to, ", "), alert.Severity, alert.Title, alert.Message)

	done := make(chan error, 1)
	go func() {
		done <- c.send(c.addr, c.auth, c.from, c.to, []byte(msg))
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "smtp send")
		}
		return nil
	}
}
