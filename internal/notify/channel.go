// Package notify implements the notification channels Vigil can deliver
// transitions through. Channels are a closed set resolved by kind through a
// static table; each validates its configuration when built.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Kind identifies a channel implementation.
type Kind string

const (
	KindEmail   Kind = "email"
	KindSlack   Kind = "slack"
	KindDiscord Kind = "discord"
	KindSMS     Kind = "sms"
)

// Subject describes the monitored target a notification is about.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// TargetKind is "poll" or "push".
	TargetKind string `json:"target_kind"`
	URL        string `json:"url,omitempty"`
}

// IsPush reports whether the subject is a heartbeat (push) target.
func (s Subject) IsPush() bool {
	return s.TargetKind == "push"
}

// Context carries the outcome that caused the notification.
type Context struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ResponseTime time.Duration `json:"response_time,omitempty"`
	StatusCode   int           `json:"status_code,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`

	// Push targets only.
	LastHeartbeat    *time.Time    `json:"last_heartbeat,omitempty"`
	ExpectedInterval time.Duration `json:"expected_interval,omitempty"`
	GracePeriod      time.Duration `json:"grace_period,omitempty"`
}

// Channel delivers failure and recovery notifications.
type Channel interface {
	Kind() Kind
	SendFailure(ctx context.Context, subject Subject, nc Context) error
	SendRecovery(ctx context.Context, subject Subject, nc Context) error
}

// ErrUnknownKind is returned by Build for a kind missing from the table.
var ErrUnknownKind = errors.New("unknown channel kind")

// ConfigError reports an invalid channel configuration. It is returned at
// construction time and is never worth retrying.
type ConfigError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s channel: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s channel: %s: %s", e.Kind, e.Field, e.Reason)
}

// SendError wraps a delivery failure. Distinct from ConfigError so callers
// can tell a broken configuration from a transient outage.
type SendError struct {
	Kind Kind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// SMTPDefaults are process-wide mail settings used when an alert config
// leaves them out.
type SMTPDefaults struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	From     string `mapstructure:"from"`
}

// TwilioDefaults are process-wide SMS settings used when an alert config
// leaves them out.
type TwilioDefaults struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"` //nolint:gosec // G101: config field name, not a credential
	FromNumber string `mapstructure:"from_number"`
	BaseURL    string `mapstructure:"base_url"`
}

// Defaults bundles the fallback settings handed to every builder.
type Defaults struct {
	SMTP    SMTPDefaults   `mapstructure:"smtp"`
	Twilio  TwilioDefaults `mapstructure:"twilio"`
	Timeout time.Duration  `mapstructure:"timeout"`
}

// DefaultDefaults returns the built-in fallbacks.
func DefaultDefaults() Defaults {
	return Defaults{
		SMTP:    SMTPDefaults{Host: "smtp.gmail.com", Port: 587},
		Twilio:  TwilioDefaults{BaseURL: "https://api.twilio.com"},
		Timeout: 10 * time.Second,
	}
}

func (d Defaults) httpClient() *http.Client {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

type builder func(raw json.RawMessage, d Defaults) (Channel, error)

// builders is the static kind table.
var builders = map[Kind]builder{
	KindEmail:   newEmailChannel,
	KindSlack:   newSlackChannel,
	KindDiscord: newDiscordChannel,
	KindSMS:     newSMSChannel,
}

// Build resolves kind through the static table and constructs the channel
// from its raw JSON configuration.
func Build(kind Kind, raw json.RawMessage, d Defaults) (Channel, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return b(raw, d)
}

// Kinds lists the supported channel kinds in stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// decodeConfig unmarshals raw into dst, mapping syntax errors to ConfigError.
func decodeConfig(kind Kind, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ConfigError{Kind: kind, Reason: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
