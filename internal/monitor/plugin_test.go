package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/vigil/internal/config"
	"github.com/HerbHall/vigil/internal/store"
	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/HerbHall/vigil/pkg/plugin/plugintest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestInit_WithConfig(t *testing.T) {
	v := viper.New()
	v.Set("sweep_interval", "5s")
	v.Set("max_workers", 3)
	v.Set("default_check_interval", "2m")
	v.Set("user_agent", "Vigil-Test")

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := New()
	err = m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: config.New(v),
		Store:  db,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if m.cfg.SweepInterval != 5*time.Second {
		t.Errorf("cfg.SweepInterval = %v, want 5s", m.cfg.SweepInterval)
	}
	if m.cfg.MaxWorkers != 3 {
		t.Errorf("cfg.MaxWorkers = %d, want 3", m.cfg.MaxWorkers)
	}
	if m.cfg.DefaultCheckInterval != 2*time.Minute {
		t.Errorf("cfg.DefaultCheckInterval = %v, want 2m", m.cfg.DefaultCheckInterval)
	}
	if m.cfg.UserAgent != "Vigil-Test" {
		t.Errorf("cfg.UserAgent = %q, want Vigil-Test", m.cfg.UserAgent)
	}
	// Unset keys keep their defaults.
	if m.cfg.ShutdownTimeout != DefaultConfig().ShutdownTimeout {
		t.Errorf("cfg.ShutdownTimeout = %v, want default", m.cfg.ShutdownTimeout)
	}
}

func TestInit_NilConfig(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init() with nil config error = %v", err)
	}
	defaults := DefaultConfig()
	if m.cfg != defaults {
		t.Errorf("cfg = %+v, want defaults %+v", m.cfg, defaults)
	}
}

func TestConfig_NormalizeRepairsInvalid(t *testing.T) {
	c := Config{SweepInterval: -1, MaxWorkers: 0, DefaultTimeout: time.Millisecond, DefaultGracePeriod: -time.Second}
	got := c.normalize()
	d := DefaultConfig()

	if got.SweepInterval != d.SweepInterval {
		t.Errorf("SweepInterval = %v, want %v", got.SweepInterval, d.SweepInterval)
	}
	if got.MaxWorkers != d.MaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", got.MaxWorkers, d.MaxWorkers)
	}
	if got.DefaultTimeout != d.DefaultTimeout {
		t.Errorf("DefaultTimeout = %v, want %v", got.DefaultTimeout, d.DefaultTimeout)
	}
	if got.DefaultGracePeriod != 0 {
		t.Errorf("DefaultGracePeriod = %v, want 0", got.DefaultGracePeriod)
	}
}

func TestInfo(t *testing.T) {
	info := New().Info()
	if info.Name != "monitor" {
		t.Errorf("Info().Name = %q, want monitor", info.Name)
	}
	if len(info.Roles) != 1 || info.Roles[0] != "monitoring" {
		t.Errorf("Info().Roles = %v, want [monitoring]", info.Roles)
	}
}

func TestStartStop_SchedulesActivePollTargets(t *testing.T) {
	env := newTestModule(t)
	ctx := context.Background()
	srv := newSwitchServer(t)

	active, err := env.m.CreatePollTarget(ctx, PollTargetParams{Name: "on", URL: srv.URL, CheckInterval: 3600})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}
	if _, err := env.m.CreatePollTarget(ctx, PollTargetParams{Name: "off", URL: srv.URL, IsActive: boolPtr(false)}); err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	if err := env.m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := env.m.Snapshot()
	if !snap.Running {
		t.Error("Snapshot().Running = false after Start")
	}
	if len(snap.ScheduledJobs) != 1 || snap.ScheduledJobs[0] != active.ID {
		t.Errorf("ScheduledJobs = %v, want [%s]", snap.ScheduledJobs, active.ID)
	}

	// The first run is immediate.
	waitFor(t, 2*time.Second, func() bool {
		res, err := env.m.repo.ListResults(ctx, active.ID, 1)
		return err == nil && len(res) == 1
	})

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := env.m.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if env.m.Snapshot().Running {
		t.Error("Snapshot().Running = true after Stop")
	}
	// A second Stop is a no-op.
	if err := env.m.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStartStopStart_ResumesScheduling(t *testing.T) {
	env := newTestModule(t)
	ctx := context.Background()
	srv := newSwitchServer(t)

	pt, err := env.m.CreatePollTarget(ctx, PollTargetParams{Name: "api", URL: srv.URL, CheckInterval: 3600})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	if err := env.m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		res, err := env.m.repo.ListResults(ctx, pt.ID, 10)
		return err == nil && len(res) == 1
	})
	if err := env.m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := env.m.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	t.Cleanup(func() { _ = env.m.Stop(context.Background()) })

	snap := env.m.Snapshot()
	if !snap.Running {
		t.Error("Snapshot().Running = false after restart")
	}
	if len(snap.ScheduledJobs) != 1 || snap.ScheduledJobs[0] != pt.ID {
		t.Errorf("ScheduledJobs = %v, want [%s]", snap.ScheduledJobs, pt.ID)
	}
	// The restarted job runs immediately again.
	waitFor(t, 2*time.Second, func() bool {
		res, err := env.m.repo.ListResults(ctx, pt.ID, 10)
		return err == nil && len(res) == 2
	})
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestModule(t, WithRegisterer(reg))
	ctx := context.Background()
	srv := newSwitchServer(t)

	pt, err := env.m.CreatePollTarget(ctx, PollTargetParams{Name: "api", URL: srv.URL})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}
	if _, err := env.m.RunPollCheck(ctx, pt.ID); err != nil {
		t.Fatalf("RunPollCheck: %v", err)
	}
	if _, err := env.m.ReceiveHeartbeat(ctx, "not-a-token", env.clock.Now()); err == nil {
		t.Fatal("ReceiveHeartbeat with garbage token succeeded")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil && len(metric.GetLabel()) == 1 {
				values[mf.GetName()+"/"+metric.GetLabel()[0].GetValue()] = c.GetValue()
			}
		}
	}
	if got := values["vigil_checks_total/healthy"]; got != 1 {
		t.Errorf("vigil_checks_total{status=healthy} = %v, want 1", got)
	}
	if got := values["vigil_heartbeats_total/not_found"]; got != 1 {
		t.Errorf("vigil_heartbeats_total{result=not_found} = %v, want 1", got)
	}
}
