package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"fireguard/internal/models"
)

// ErrNoRecipients means the mailer has nobody to send to.
var ErrNoRecipients = errors.New("not sending email, no recipients defined")

// Mailer delivers alert emails over SMTP.
type Mailer struct {
	dialer     *gomail.Dialer
	sender     string
	recipients []string
}

// MailerConfig configures the SMTP channel.
type MailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Sender     string
	Recipients []string
}

// NewMailer creates an SMTP-backed sender.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if len(cfg.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	var d *gomail.Dialer
	if cfg.Username == "" {
		d = &gomail.Dialer{Host: cfg.Host, Port: cfg.Port}
	} else {
		d = gomail.NewPlainDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return &Mailer{dialer: d, sender: cfg.Sender, recipients: cfg.Recipients}, nil
}

// Send delivers one alert email. The context bounds the whole dial-and-send;
// gomail has no context support, so the work runs in a goroutine and the
// caller observes the deadline.
func (m *Mailer) Send(ctx context.Context, a *models.Alert) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", subject(a))
	msg.SetBody("text/plain", body(a))

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func subject(a *models.Alert) string {
	return fmt.Sprintf("[%s] %s - device %d", strings.ToUpper(string(a.Level)), a.Type, a.DeviceID)
}

func body(a *models.Alert) string {
	var b strings.Builder
	b.WriteString("FireGuard Alert\n\n")
	fmt.Fprintf(&b, "Type:    %s\n", a.Type)
	fmt.Fprintf(&b, "Level:   %s\n", a.Level)
	fmt.Fprintf(&b, "Device:  %d\n", a.DeviceID)
	fmt.Fprintf(&b, "Time:    %s\n", a.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Message: %s\n", a.Message)
	return b.String()
}
