// Package monitor implements Vigil's monitoring core: poll and push target
// storage, the HTTP prober, the overdue and transition detectors, the
// notification dispatcher, and the scheduler loop that drives them.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/vigil/internal/notify"
	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the monitor plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	bus    plugin.EventBus
	repo   Repository

	clock          Clock
	notifyDefaults notify.Defaults
	buildChannel   ChannelBuilder
	registerer     prometheus.Registerer

	metrics    *Metrics
	prober     *Prober
	dispatcher *Dispatcher
	scheduler  *Scheduler
	overdue    *OverdueTracker
	locks      *keyedMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Module.
type Option func(*Module)

// WithClock replaces time.Now for detection and timestamps.
func WithClock(c Clock) Option {
	return func(m *Module) { m.clock = c }
}

// WithNotifyDefaults sets the process-wide channel fallbacks (SMTP, Twilio).
func WithNotifyDefaults(d notify.Defaults) Option {
	return func(m *Module) { m.notifyDefaults = d }
}

// WithChannelBuilder replaces notify.Build for resolving alert configs.
func WithChannelBuilder(b ChannelBuilder) Option {
	return func(m *Module) { m.buildChannel = b }
}

// WithRegisterer registers the module's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Module) { m.registerer = reg }
}

// WithRepository uses repo instead of the SQLite store from Dependencies.
func WithRepository(repo Repository) Option {
	return func(m *Module) { m.repo = repo }
}

// New creates a new monitor plugin instance.
func New(opts ...Option) *Module {
	m := &Module{
		cfg:            DefaultConfig(),
		clock:          time.Now,
		notifyDefaults: notify.DefaultDefaults(),
		buildChannel:   notify.Build,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "monitor",
		Version:     "1.0.0",
		Description: "Poll and heartbeat monitoring with transition alerts",
		Roles:       []string{"monitoring"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	if deps.Logger != nil {
		m.logger = deps.Logger
	}
	m.bus = deps.Bus

	cfg := DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("monitor config: %w", err)
		}
	}
	m.cfg = cfg.normalize()

	if m.repo == nil && deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "monitor", migrations()); err != nil {
			return fmt.Errorf("monitor migrations: %w", err)
		}
		m.repo = NewMonitorStore(deps.Store.DB())
	}

	m.metrics = NewMetrics(m.registerer)
	m.prober = NewProber(m.cfg.UserAgent, m.clock)
	m.overdue = NewOverdueTracker()
	m.locks = newKeyedMutex()
	if m.repo != nil {
		m.dispatcher = NewDispatcher(m.repo, m.buildChannel, m.notifyDefaults, m.metrics, m.logger.Named("dispatcher"))
	}
	m.scheduler = NewScheduler(m.scheduledPoll, m.Sweep, m.cfg.SweepInterval, m.cfg.MaxWorkers, m.metrics, m.logger.Named("scheduler"))

	m.logger.Info("monitor module initialized",
		zap.Duration("sweep_interval", m.cfg.SweepInterval),
		zap.Int("max_workers", m.cfg.MaxWorkers),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if m.repo == nil {
		m.logger.Warn("monitor started without a store, scheduling disabled")
		return nil
	}
	if m.cancel != nil {
		return nil
	}

	if err := m.rebuildOverdue(ctx); err != nil {
		return fmt.Errorf("rebuild overdue set: %w", err)
	}

	targets, err := m.repo.ListActivePollTargets(ctx)
	if err != nil {
		return fmt.Errorf("load poll targets: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.scheduler.Start(m.ctx)
	for i := range targets {
		m.scheduler.Schedule(targets[i].ID, targets[i].CheckInterval())
	}
	m.startMaintenance()

	m.logger.Info("monitor module started",
		zap.Int("poll_targets", len(targets)),
		zap.Int("overdue_targets", m.overdue.Len()),
	)
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}

	timeout := m.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	m.scheduler.Stop(timeout)
	m.cancel()
	m.wg.Wait()
	m.cancel = nil

	m.logger.Info("monitor module stopped")
	return nil
}

// rebuildOverdue restores the alerted-overdue set from the persisted push
// status markers, so a restart during an outage neither re-alerts nor
// forgets to send the recovery.
func (m *Module) rebuildOverdue(ctx context.Context) error {
	recs, err := m.repo.ListStatuses(ctx)
	if err != nil {
		return err
	}
	var ids []string
	for _, rec := range recs {
		if rec.TargetKind == KindPush && rec.Status == StatusUnhealthy {
			ids = append(ids, rec.TargetID)
		}
	}
	m.overdue.Reset(ids)
	m.metrics.overdueTargets.Set(float64(len(ids)))
	return nil
}

// Snapshot reports the scheduler state.
func (m *Module) Snapshot() Snapshot {
	snap := Snapshot{
		SweepInterval: m.cfg.SweepInterval.String(),
		ScheduledJobs: []string{},
		OverdueIDs:    []string{},
	}
	if m.scheduler != nil {
		snap.Running = m.scheduler.Running()
		snap.ScheduledJobs = m.scheduler.Jobs()
	}
	if m.overdue != nil {
		snap.OverdueIDs = m.overdue.IDs()
	}
	return snap
}

func (m *Module) now() time.Time {
	return m.clock().UTC()
}
