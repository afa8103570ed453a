package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Compile-time interface guard.
var _ Channel = (*EmailChannel)(nil)

// EmailConfig is the channel_config payload for email delivery. Empty SMTP
// fields fall back to the process-wide notify.smtp settings.
type EmailConfig struct {
	ToEmail    string `json:"to_email"`
	SMTPServer string `json:"smtp_server,omitempty"`
	SMTPPort   int    `json:"smtp_port,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"` //nolint:gosec // G101: config field name, not a credential
	FromEmail  string `json:"from_email,omitempty"`
}

// sendMailFunc matches smtp.SendMail; swapped in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends plain-text mail over SMTP with STARTTLS when offered.
type EmailChannel struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

func newEmailChannel(raw json.RawMessage, d Defaults) (Channel, error) {
	var cfg EmailConfig
	if err := decodeConfig(KindEmail, raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.ToEmail == "" {
		return nil, &ConfigError{Kind: KindEmail, Field: "to_email", Reason: "required"}
	}
	if _, err := mail.ParseAddressList(cfg.ToEmail); err != nil {
		return nil, &ConfigError{Kind: KindEmail, Field: "to_email", Reason: "invalid address list"}
	}

	cfg.SMTPServer = firstNonEmpty(cfg.SMTPServer, d.SMTP.Host)
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = d.SMTP.Port
	}
	cfg.Username = firstNonEmpty(cfg.Username, d.SMTP.Username)
	cfg.Password = firstNonEmpty(cfg.Password, d.SMTP.Password)
	cfg.FromEmail = firstNonEmpty(cfg.FromEmail, d.SMTP.From, cfg.Username)

	if cfg.SMTPServer == "" || cfg.SMTPPort == 0 {
		return nil, &ConfigError{Kind: KindEmail, Field: "smtp_server", Reason: "SMTP server not configured"}
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, &ConfigError{Kind: KindEmail, Field: "username", Reason: "SMTP credentials not configured"}
	}

	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (c *EmailChannel) Kind() Kind { return KindEmail }

func (c *EmailChannel) SendFailure(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, failureSubject(s), FormatFailure(s, nc))
}

func (c *EmailChannel) SendRecovery(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, recoverySubject(s), FormatRecovery(s, nc))
}

func (c *EmailChannel) send(ctx context.Context, subject, body string) error {
	// net/smtp has no context support; honour cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return &SendError{Kind: KindEmail, Err: err}
	}

	recipients, _ := mail.ParseAddressList(c.cfg.ToEmail)
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, r.Address)
	}

	addr := net.JoinHostPort(c.cfg.SMTPServer, strconv.Itoa(c.cfg.SMTPPort))
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPServer)
	msg := buildMessage(c.cfg.FromEmail, to, subject, body, time.Now())

	if err := c.sendMail(addr, auth, c.cfg.FromEmail, to, msg); err != nil {
		return &SendError{Kind: KindEmail, Err: fmt.Errorf("smtp %s: %w", addr, err)}
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(strings.Join(to, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue folds CR and LF into spaces so a value stays on one header line.
func headerValue(v string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
}
