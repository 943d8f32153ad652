package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("mailer is not configured")

const subject = "Workshop Registration Confirmation"

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) configured() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

// Dialer is the part of gomail.Dialer used to hand a message to the relay.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	cfg    Config
	dialer Dialer
	log    *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return NewWithDialer(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), log)
}

func NewWithDialer(cfg Config, dialer Dialer, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, dialer: dialer, log: log}
}

// Notify sends the plain-text confirmation for a new registration. Delivery is
// best-effort: callers log and drop the returned error.
func (m *Mailer) Notify(ctx context.Context, name, email, workshop string) error {
	if !m.cfg.configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := m.Message(name, email, workshop)
	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Warn().Err(err).Str("email", email).Msg("failed to send confirmation email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", email).Str("workshop", workshop).Msg("📧 confirmation email sent")
	return nil
}

func (m *Mailer) Message(name, email, workshop string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", Body(name, workshop))
	return msg
}

func Body(name, workshop string) string {
	return fmt.Sprintf("Hello %s,\n\n"+
		"Thank you for registering for the %s workshop.\n"+
		"Your registration has been received. Please keep the QR code shown after "+
		"registration and present it at check-in.\n\n"+
		"See you there!\n", name, workshop)
}
