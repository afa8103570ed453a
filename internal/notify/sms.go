package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Compile-time interface guard.
var _ Channel = (*SMSChannel)(nil)

// SMSConfig is the channel_config payload for Twilio SMS delivery. Empty
// credential fields fall back to the process-wide notify.twilio settings.
type SMSConfig struct {
	ToNumber   string `json:"to_number"`
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"` //nolint:gosec // G101: config field name, not a credential
	FromNumber string `json:"from_number,omitempty"`
}

// SMSChannel sends text messages through the Twilio Messages REST API.
type SMSChannel struct {
	client  *http.Client
	cfg     SMSConfig
	baseURL string
}

func newSMSChannel(raw json.RawMessage, d Defaults) (Channel, error) {
	var cfg SMSConfig
	if err := decodeConfig(KindSMS, raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.ToNumber == "" {
		return nil, &ConfigError{Kind: KindSMS, Field: "to_number", Reason: "required"}
	}
	cfg.AccountSID = firstNonEmpty(cfg.AccountSID, d.Twilio.AccountSID)
	cfg.AuthToken = firstNonEmpty(cfg.AuthToken, d.Twilio.AuthToken)
	cfg.FromNumber = firstNonEmpty(cfg.FromNumber, d.Twilio.FromNumber)
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, &ConfigError{Kind: KindSMS, Field: "account_sid", Reason: "Twilio credentials not configured"}
	}

	return &SMSChannel{
		client:  d.httpClient(),
		cfg:     cfg,
		baseURL: strings.TrimRight(firstNonEmpty(d.Twilio.BaseURL, "https://api.twilio.com"), "/"),
	}, nil
}

func (c *SMSChannel) Kind() Kind { return KindSMS }

func (c *SMSChannel) SendFailure(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, shortFailure(s, nc))
}

func (c *SMSChannel) SendRecovery(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, shortRecovery(s, nc))
}

func (c *SMSChannel) send(ctx context.Context, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.cfg.AccountSID))
	form := url.Values{
		"To":   {c.cfg.ToNumber},
		"From": {c.cfg.FromNumber},
		"Body": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &SendError{Kind: KindSMS, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return &SendError{Kind: KindSMS, Err: fmt.Errorf("twilio request: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SendError{Kind: KindSMS, Err: fmt.Errorf("twilio: status %d", resp.StatusCode)}
	}
	return nil
}
