package alerts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"fulfillment_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// EmailSender delivers alerts over SMTP via go-mail.
type EmailSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string

	send func(ctx context.Context, msg *gomail.Msg) error
}

// NewEmailSender returns nil when email is not configured.
func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	if !cfg.IsEmailEnabled() {
		return nil
	}
	s := &EmailSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, to Recipient, msg Message) error {
	address := strings.TrimSpace(to.Email)
	if address == "" {
		return ErrNoDestination
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.AddToFormat(to.Name, address); err != nil {
		return permanent(ChannelEmail, "invalid_address", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	if err := s.send(ctx, m); err != nil {
		return classifyEmailFailure(err)
	}
	return nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// classifyEmailFailure treats a non-temporary RCPT TO rejection as permanent.
func classifyEmailFailure(err error) error {
	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) && sendErr.Reason == gomail.ErrSMTPRcptTo && !sendErr.IsTemp() {
		return permanent(ChannelEmail, "recipient_rejected", err)
	}
	return transient(ChannelEmail, "send_failed", err)
}

var _ Transport = (*EmailSender)(nil)
