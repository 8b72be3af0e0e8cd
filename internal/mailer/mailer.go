// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"lexpertease/internal/config"
)

// ErrNotConfigured is returned when SMTP credentials are missing.
var ErrNotConfigured = errors.New("email config missing")

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages and reports success or failure.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Verify checks that the transport accepts connections.
	Verify(ctx context.Context) error
}

// SMTPMailer implements Sender with gomail.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

var _ Sender = (*SMTPMailer)(nil)

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) configured() bool {
	return m.cfg.Host != "" && m.cfg.User != "" && m.cfg.From() != ""
}

func (m *SMTPMailer) dialer() *gomail.Dialer {
	return gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)
}

// Send delivers msg. gomail does not take a context, so cancellation only
// stops the caller from waiting.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("empty recipient")
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.cfg.From(), m.cfg.FromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		gm.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			gm.AddAlternative("text/html", msg.HTML)
		}
	} else {
		gm.SetBody("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer().DialAndSend(gm) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}

	m.logger.Info("email sent", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// Verify dials the SMTP server and authenticates without sending.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	if !m.configured() {
		return ErrNotConfigured
	}
	done := make(chan error, 1)
	go func() {
		sc, err := m.dialer().Dial()
		if err == nil {
			err = sc.Close()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp verify: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
