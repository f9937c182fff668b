package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/logger"
)

// EmailSender delivers a notification over email. Delivery is best-effort;
// callers log failures and move on.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	logg     *logger.Logger
}

// NewSMTPSender builds an email sender from SMTP config. Returns nil when
// no host is configured, which disables the email channel entirely.
func NewSMTPSender(cfg config.SMTPConfig, logg *logger.Logger) EmailSender {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil
	}
	return &smtpSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.DefaultFrom,
		logg:     logg,
	}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient address required")
	}

	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "to", to), "notification email sent")
	return nil
}
