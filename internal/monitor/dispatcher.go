package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/vigil/internal/notify"
	"go.uber.org/zap"
)

// ChannelBuilder resolves a channel kind and its raw configuration into a
// Channel. notify.Build is the production implementation.
type ChannelBuilder func(kind notify.Kind, raw json.RawMessage, d notify.Defaults) (notify.Channel, error)

// AlertConfigSource supplies the alert configs of a target.
type AlertConfigSource interface {
	ListActiveAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error)
}

// Notice describes one detected transition to deliver.
type Notice struct {
	Subject    notify.Subject
	Transition Transition
	Context    notify.Context
}

// ChannelResult is the outcome of one alert config for one notice.
type ChannelResult struct {
	ConfigID string
	Kind     notify.Kind
	Err      error
}

// Report collects the per-channel outcomes of a dispatch. Err is set only
// when the alert configs themselves could not be loaded.
type Report struct {
	Results []ChannelResult
	Err     error
}

// Sent returns the number of channels that delivered.
func (r Report) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of channels that did not deliver.
func (r Report) Failed() int {
	return len(r.Results) - r.Sent()
}

// Dispatcher sends a notice through every active alert config of its target.
// One config failing never affects the others.
type Dispatcher struct {
	configs  AlertConfigSource
	build    ChannelBuilder
	defaults notify.Defaults
	metrics  *Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil build uses notify.Build.
func NewDispatcher(configs AlertConfigSource, build ChannelBuilder, defaults notify.Defaults, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if build == nil {
		build = notify.Build
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		configs:  configs,
		build:    build,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
	}
}

// Dispatch invokes each active alert config of the notice's target exactly
// once, with the failure or recovery variant matching the transition.
// Sends ignore cancellation of ctx, since the status marker has already
// moved, and each is bounded by the notify timeout instead.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notice) Report {
	if n.Transition == TransitionNone {
		return Report{}
	}
	ctx = context.WithoutCancel(ctx)

	configs, err := d.configs.ListActiveAlertConfigs(ctx, n.Subject.ID)
	if err != nil {
		d.logger.Error("failed to load alert configs",
			zap.String("target_id", n.Subject.ID),
			zap.Error(err),
		)
		return Report{Err: fmt.Errorf("load alert configs: %w", err)}
	}

	report := Report{Results: make([]ChannelResult, 0, len(configs))}
	for i := range configs {
		res := d.deliver(ctx, configs[i], n)
		d.metrics.observeNotification(string(res.Kind), res.Err)
		report.Results = append(report.Results, res)
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, cfg AlertConfig, n Notice) (res ChannelResult) {
	res = ChannelResult{ConfigID: cfg.ID, Kind: cfg.ChannelKind}
	log := d.logger.With(
		zap.String("alert_config_id", cfg.ID),
		zap.String("channel_kind", string(cfg.ChannelKind)),
		zap.String("target_id", n.Subject.ID),
		zap.String("transition", string(n.Transition)),
	)

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("channel panicked: %v", r)
			log.Error("notification channel panicked", zap.Any("panic", r))
		}
	}()

	ch, err := d.build(cfg.ChannelKind, cfg.ChannelConfig, d.defaults)
	if err != nil {
		res.Err = err
		if isUnknownKind(err) {
			log.Warn("unknown channel kind")
		} else {
			log.Warn("invalid channel configuration", zap.Error(err))
		}
		return res
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout())
	defer cancel()
	if n.Transition.IsFailure() {
		err = ch.SendFailure(sendCtx, n.Subject, n.Context)
	} else {
		err = ch.SendRecovery(sendCtx, n.Subject, n.Context)
	}
	if err != nil {
		res.Err = err
		log.Warn("notification delivery failed", zap.Error(err))
		return res
	}

	log.Info("notification delivered")
	return res
}

func (d *Dispatcher) sendTimeout() time.Duration {
	if d.defaults.Timeout > 0 {
		return d.defaults.Timeout
	}
	return notify.DefaultDefaults().Timeout
}

func isUnknownKind(err error) bool {
	return errors.Is(err, notify.ErrUnknownKind)
}
