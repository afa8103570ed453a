package testutil

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/HerbHall/vigil/internal/monitor"
	"github.com/HerbHall/vigil/internal/notify"
)

// NewPollTarget returns PollTargetParams with a unique name and the given
// URL. Override individual fields with options.
func NewPollTarget(url string, opts ...func(*monitor.PollTargetParams)) monitor.PollTargetParams {
	p := monitor.PollTargetParams{
		Name:          "poll-" + uuid.NewString()[:8],
		URL:           url,
		CheckInterval: 60,
		Timeout:       5,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithPollName sets the poll target name.
func WithPollName(name string) func(*monitor.PollTargetParams) {
	return func(p *monitor.PollTargetParams) { p.Name = name }
}

// WithExpectedText sets the text the response body must contain.
func WithExpectedText(text string) func(*monitor.PollTargetParams) {
	return func(p *monitor.PollTargetParams) { p.ExpectedText = text }
}

// WithCheckInterval sets the check interval in seconds.
func WithCheckInterval(seconds int) func(*monitor.PollTargetParams) {
	return func(p *monitor.PollTargetParams) { p.CheckInterval = seconds }
}

// WithPollInactive creates the poll target inactive.
func WithPollInactive() func(*monitor.PollTargetParams) {
	return func(p *monitor.PollTargetParams) {
		active := false
		p.IsActive = &active
	}
}

// NewPushTarget returns PushTargetParams with a unique name, a one minute
// expected interval and no grace period.
func NewPushTarget(opts ...func(*monitor.PushTargetParams)) monitor.PushTargetParams {
	grace := 0
	p := monitor.PushTargetParams{
		Name:             "push-" + uuid.NewString()[:8],
		ExpectedInterval: 60,
		GracePeriod:      &grace,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithPushName sets the push target name.
func WithPushName(name string) func(*monitor.PushTargetParams) {
	return func(p *monitor.PushTargetParams) { p.Name = name }
}

// WithSchedule sets the expected interval and grace period in seconds.
func WithSchedule(interval, grace int) func(*monitor.PushTargetParams) {
	return func(p *monitor.PushTargetParams) {
		p.ExpectedInterval = interval
		p.GracePeriod = &grace
	}
}

// NewWebhookAlert returns AlertConfigParams for a Slack or Discord channel
// posting to url.
func NewWebhookAlert(kind notify.Kind, url string) monitor.AlertConfigParams {
	raw, _ := json.Marshal(map[string]string{"webhook_url": url})
	return monitor.AlertConfigParams{ChannelKind: kind, ChannelConfig: raw}
}
