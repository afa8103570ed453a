package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/HerbHall/vigil/internal/version"
)

// Compile-time interface guards.
var (
	_ Channel = (*SlackChannel)(nil)
	_ Channel = (*DiscordChannel)(nil)
)

// postJSON sends payload to target and treats any non-2xx status as failure.
func postJSON(ctx context.Context, client *http.Client, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Vigil-Notifier/"+version.Short())

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error prints the full URL, path secret included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("POST %s: %w", redactURL(target), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", redactURL(target), resp.StatusCode)
	}
	return nil
}

// validateWebhookURL requires an absolute http(s) URL.
func validateWebhookURL(kind Kind, raw string) error {
	if raw == "" {
		return &ConfigError{Kind: kind, Field: "webhook_url", Reason: "required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Kind: kind, Field: "webhook_url", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// redactURL keeps scheme and host only; webhook paths embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "webhook"
	}
	return u.Scheme + "://" + u.Host
}

// -- Slack --

// SlackConfig is the channel_config payload for Slack incoming webhooks.
type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
	Username   string `json:"username,omitempty"`
}

type slackAttachment struct {
	Color    string   `json:"color"`
	Text     string   `json:"text"`
	MrkdwnIn []string `json:"mrkdwn_in"`
}

type slackPayload struct {
	Username    string            `json:"username"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// SlackChannel posts attachments to a Slack incoming webhook.
type SlackChannel struct {
	client *http.Client
	cfg    SlackConfig
}

func newSlackChannel(raw json.RawMessage, d Defaults) (Channel, error) {
	var cfg SlackConfig
	if err := decodeConfig(KindSlack, raw, &cfg); err != nil {
		return nil, err
	}
	if err := validateWebhookURL(KindSlack, cfg.WebhookURL); err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = "Vigil"
	}
	return &SlackChannel{client: d.httpClient(), cfg: cfg}, nil
}

func (c *SlackChannel) Kind() Kind { return KindSlack }

func (c *SlackChannel) SendFailure(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, FormatFailure(s, nc), "danger")
}

func (c *SlackChannel) SendRecovery(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, FormatRecovery(s, nc), "good")
}

func (c *SlackChannel) send(ctx context.Context, text, color string) error {
	payload := slackPayload{
		Username: c.cfg.Username,
		Channel:  c.cfg.Channel,
		Attachments: []slackAttachment{{
			Color:    color,
			Text:     text,
			MrkdwnIn: []string{"text"},
		}},
	}
	if err := postJSON(ctx, c.client, c.cfg.WebhookURL, payload); err != nil {
		return &SendError{Kind: KindSlack, Err: err}
	}
	return nil
}

// -- Discord --

const (
	discordColorFailure  = 0xFF0000
	discordColorRecovery = 0x00FF00
)

// DiscordConfig is the channel_config payload for Discord webhooks.
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Username   string `json:"username,omitempty"`
}

type discordEmbed struct {
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordChannel posts embeds to a Discord webhook.
type DiscordChannel struct {
	client *http.Client
	cfg    DiscordConfig
}

func newDiscordChannel(raw json.RawMessage, d Defaults) (Channel, error) {
	var cfg DiscordConfig
	if err := decodeConfig(KindDiscord, raw, &cfg); err != nil {
		return nil, err
	}
	if err := validateWebhookURL(KindDiscord, cfg.WebhookURL); err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = "Vigil"
	}
	return &DiscordChannel{client: d.httpClient(), cfg: cfg}, nil
}

func (c *DiscordChannel) Kind() Kind { return KindDiscord }

func (c *DiscordChannel) SendFailure(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, FormatFailure(s, nc), discordColorFailure)
}

func (c *DiscordChannel) SendRecovery(ctx context.Context, s Subject, nc Context) error {
	return c.send(ctx, FormatRecovery(s, nc), discordColorRecovery)
}

func (c *DiscordChannel) send(ctx context.Context, text string, color int) error {
	payload := discordPayload{
		Username: c.cfg.Username,
		Embeds:   []discordEmbed{{Description: text, Color: color}},
	}
	if err := postJSON(ctx, c.client, c.cfg.WebhookURL, payload); err != nil {
		return &SendError{Kind: KindDiscord, Err: err}
	}
	return nil
}
