package monitor

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode"

	"github.com/HerbHall/vigil/internal/notify"
)

const (
	maxNameLength    = 255
	maxIntervalSecs  = 7 * 24 * 60 * 60
	maxTimeoutSecs   = 300
	maxExpectedBytes = 1024
)

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "must not be empty")
	}
	if len(name) > maxNameLength {
		return "", invalid("name", "must be at most %d characters", maxNameLength)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return "", invalid("name", "must not contain control characters")
	}
	return name, nil
}

func validateProbeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("url", "must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("url", "must be an absolute http or https URL")
	}
	return raw, nil
}

// applyPollParams validates p and writes it onto t. Zero intervals are
// filled from defaults, which the caller sets to either the configured
// defaults (create) or the stored values (update).
func applyPollParams(t *PollTarget, p PollTargetParams, defInterval, defTimeout int) error {
	name, err := validateName(p.Name)
	if err != nil {
		return err
	}
	rawURL, err := validateProbeURL(p.URL)
	if err != nil {
		return err
	}
	if len(p.ExpectedText) > maxExpectedBytes {
		return invalid("expected_text", "must be at most %d bytes", maxExpectedBytes)
	}

	interval := p.CheckInterval
	if interval == 0 {
		interval = defInterval
	}
	if interval <= 0 || interval > maxIntervalSecs {
		return invalid("check_interval", "must be between 1 and %d seconds", maxIntervalSecs)
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = defTimeout
	}
	if timeout <= 0 || timeout > maxTimeoutSecs {
		return invalid("timeout", "must be between 1 and %d seconds", maxTimeoutSecs)
	}

	t.Name = name
	t.URL = rawURL
	t.ExpectedText = p.ExpectedText
	t.CheckIntervalSeconds = interval
	t.TimeoutSeconds = timeout
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return nil
}

// applyPushParams validates p and writes it onto t. A nil grace period
// keeps defGrace.
func applyPushParams(t *PushTarget, p PushTargetParams, defInterval, defGrace int) error {
	name, err := validateName(p.Name)
	if err != nil {
		return err
	}

	interval := p.ExpectedInterval
	if interval == 0 {
		interval = defInterval
	}
	if interval <= 0 {
		return invalid("expected_interval", "must be positive")
	}
	if interval > maxIntervalSecs {
		return invalid("expected_interval", "must be at most %d seconds", maxIntervalSecs)
	}

	grace := defGrace
	if p.GracePeriod != nil {
		grace = *p.GracePeriod
	}
	if grace < 0 {
		return invalid("grace_period", "cannot be negative")
	}
	if grace > maxIntervalSecs {
		return invalid("grace_period", "must be at most %d seconds", maxIntervalSecs)
	}

	t.Name = name
	t.ExpectedIntervalSeconds = interval
	t.GracePeriodSeconds = grace
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return nil
}

// validateAlertParams checks that the channel kind is known and that its
// configuration builds. Construction errors are reported as validation
// failures on channel_config so the caller sees them synchronously.
func validateAlertParams(p AlertConfigParams, build ChannelBuilder, d notify.Defaults) error {
	if p.ChannelKind == "" {
		return invalid("channel_kind", "must not be empty")
	}
	if len(p.ChannelConfig) == 0 {
		return invalid("channel_config", "must not be empty")
	}
	if !json.Valid(p.ChannelConfig) {
		return invalid("channel_config", "must be valid JSON")
	}
	if _, err := build(p.ChannelKind, p.ChannelConfig, d); err != nil {
		if isUnknownKind(err) {
			return invalid("channel_kind", "unsupported channel kind %q", p.ChannelKind)
		}
		return invalid("channel_config", "%v", err)
	}
	return nil
}
