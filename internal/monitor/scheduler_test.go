package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// pollCounter counts PollFunc invocations per target.
type pollCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func newPollCounter() *pollCounter {
	return &pollCounter{calls: make(map[string]int)}
}

func (c *pollCounter) poll(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[id]++
	return true
}

func (c *pollCounter) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(newPollCounter().poll, nil, time.Hour, 2, nil, zap.NewNop())

	if s.Running() {
		t.Error("Running() = true before Start, want false")
	}
	s.Start(context.Background())
	if !s.Running() {
		t.Error("Running() = false after Start, want true")
	}
	if !s.Stop(time.Second) {
		t.Error("Stop() = false, want clean stop")
	}
	if s.Running() {
		t.Error("Running() = true after Stop, want false")
	}
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	pc := newPollCounter()
	var sweeps atomic.Int32
	s := NewScheduler(pc.poll, func(context.Context) { sweeps.Add(1) }, time.Hour, 2, nil, zap.NewNop())

	s.Start(context.Background())
	waitFor(t, time.Second, func() bool { return sweeps.Load() == 1 })
	if !s.Stop(time.Second) {
		t.Fatal("Stop() = false, want clean stop")
	}

	s.Start(context.Background())
	defer s.Stop(time.Second)
	if !s.Running() {
		t.Fatal("Running() = false after restart")
	}
	waitFor(t, time.Second, func() bool { return sweeps.Load() == 2 })

	s.Schedule("poll-1", time.Hour)
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 1 })
	if jobs := s.Jobs(); len(jobs) != 1 || jobs[0] != "poll-1" {
		t.Errorf("Jobs() = %v, want [poll-1]", jobs)
	}
}

func TestScheduler_SweepRunsImmediatelyAndPeriodically(t *testing.T) {
	var sweeps atomic.Int32
	sweep := func(context.Context) { sweeps.Add(1) }

	s := NewScheduler(nil, sweep, 20*time.Millisecond, 1, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	waitFor(t, time.Second, func() bool { return sweeps.Load() >= 3 })
}

func TestScheduler_ScheduleRunsImmediately(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 2, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("poll-1", time.Hour)

	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 1 })
	if jobs := s.Jobs(); len(jobs) != 1 || jobs[0] != "poll-1" {
		t.Errorf("Jobs() = %v, want [poll-1]", jobs)
	}
}

func TestScheduler_TicksAtInterval(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 2, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("poll-1", 20*time.Millisecond)

	waitFor(t, 2*time.Second, func() bool { return pc.count("poll-1") >= 4 })
}

func TestScheduler_ScheduleBeforeStartIgnored(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 1, nil, zap.NewNop())
	s.Schedule("poll-1", time.Millisecond)

	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v before Start, want empty", s.Jobs())
	}
}

func TestScheduler_SameIntervalKeepsJob(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 1, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("poll-1", time.Hour)
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 1 })

	s.Schedule("poll-1", time.Hour)
	time.Sleep(50 * time.Millisecond)
	if got := pc.count("poll-1"); got != 1 {
		t.Errorf("calls = %d, want 1 (job kept, no restart)", got)
	}

	s.Reschedule("poll-1", 2*time.Hour)
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 2 })
}

func TestScheduler_UnscheduleStopsTicks(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 1, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("poll-1", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") >= 2 })

	s.Unschedule("poll-1")
	time.Sleep(20 * time.Millisecond)
	before := pc.count("poll-1")
	time.Sleep(60 * time.Millisecond)

	if after := pc.count("poll-1"); after != before {
		t.Errorf("calls grew from %d to %d after Unschedule", before, after)
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want empty", s.Jobs())
	}
}

func TestScheduler_PollFalseRemovesJob(t *testing.T) {
	var calls atomic.Int32
	poll := func(context.Context, string) bool {
		calls.Add(1)
		return false
	}
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewScheduler(poll, nil, time.Hour, 1, nil, zap.New(core))
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("gone", 10*time.Millisecond)

	waitFor(t, time.Second, func() bool { return len(s.Jobs()) == 0 })
	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if logs.FilterMessage("poll target unscheduled").Len() != 1 {
		t.Error("expected unschedule log entry")
	}
}

func TestScheduler_Trigger(t *testing.T) {
	pc := newPollCounter()
	s := NewScheduler(pc.poll, nil, time.Hour, 1, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	if s.Trigger("poll-1") {
		t.Error("Trigger() = true for unscheduled target")
	}

	s.Schedule("poll-1", time.Hour)
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 1 })

	if !s.Trigger("poll-1") {
		t.Fatal("Trigger() = false for scheduled target")
	}
	waitFor(t, time.Second, func() bool { return pc.count("poll-1") == 2 })
}

func TestScheduler_WorkerBound(t *testing.T) {
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		done     atomic.Int32
	)
	poll := func(context.Context, string) bool {
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		done.Add(1)
		return true
	}

	s := NewScheduler(poll, nil, time.Hour, 2, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		s.Schedule(id, time.Hour)
	}
	waitFor(t, 2*time.Second, func() bool { return done.Load() >= 6 })

	if got := maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent polls = %d, want <= 2", got)
	}
}

func TestScheduler_StopTimeoutAbandons(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	poll := func(context.Context, string) bool {
		close(started)
		<-release
		return true
	}
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewScheduler(poll, nil, time.Hour, 1, nil, zap.New(core))
	s.Start(context.Background())
	s.Schedule("stuck", time.Hour)
	<-started

	if s.Stop(30 * time.Millisecond) {
		t.Error("Stop() = true with a stuck check, want false")
	}
	if logs.FilterMessage("scheduler stop timed out, abandoning in-flight checks").Len() != 1 {
		t.Error("expected abandonment warning")
	}
	close(release)
}

func TestScheduler_InFlightSurvivesUnschedule(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var ctxErr atomic.Value
	poll := func(ctx context.Context, _ string) bool {
		close(started)
		<-release
		ctxErr.Store(ctx.Err() == nil)
		return true
	}
	s := NewScheduler(poll, nil, time.Hour, 1, nil, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop(time.Second)

	s.Schedule("poll-1", time.Hour)
	<-started
	s.Unschedule("poll-1")
	close(release)

	waitFor(t, time.Second, func() bool { return ctxErr.Load() != nil })
	if alive, _ := ctxErr.Load().(bool); !alive {
		t.Error("in-flight check context was cancelled by Unschedule")
	}
}
