package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollFunc executes one scheduled check of a poll target. Returning false
// removes the target from the schedule.
type PollFunc func(ctx context.Context, targetID string) (keep bool)

// SweepFunc evaluates every push target once.
type SweepFunc func(ctx context.Context)

type job struct {
	interval time.Duration
	trigger  chan struct{}
	cancel   context.CancelFunc
}

// Scheduler owns one ticker goroutine per scheduled poll target plus a
// single sweep loop for push targets. Poll executions share a bounded
// semaphore so probe concurrency does not grow with the target count.
type Scheduler struct {
	poll          PollFunc
	sweep         SweepFunc
	sweepInterval time.Duration
	sem           chan struct{}
	metrics       *Metrics
	logger        *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	jobs    map[string]*job
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler running at most workers poll checks at once.
func NewScheduler(poll PollFunc, sweep SweepFunc, sweepInterval time.Duration, workers int, metrics *Metrics, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{
		poll:          poll,
		sweep:         sweep,
		sweepInterval: sweepInterval,
		sem:           make(chan struct{}, workers),
		metrics:       metrics,
		logger:        logger,
		jobs:          make(map[string]*job),
	}
}

// Start launches the sweep loop. Poll jobs are added with Schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return
	}
	base, cancel := context.WithCancel(ctx)
	s.baseCtx, s.cancel = base, cancel

	if s.sweep == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		// Run immediately on start, then on each tick.
		s.sweep(base)

		for {
			select {
			case <-base.Done():
				return
			case <-ticker.C:
				s.sweep(base)
			}
		}
	}()
}

// Stop cancels every loop and waits up to timeout for in-flight work.
// It reports whether everything finished in time. A stopped scheduler can
// be started again.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return true
	}
	s.cancel()
	s.baseCtx, s.cancel = nil, nil
	for id, j := range s.jobs {
		j.cancel()
		delete(s.jobs, id)
	}
	s.metrics.scheduledJobs.Set(0)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out, abandoning in-flight checks",
			zap.Duration("timeout", timeout),
		)
		return false
	}
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx != nil && s.baseCtx.Err() == nil
}

// Schedule runs targetID every interval, starting immediately. An existing
// job with the same interval is kept; a different interval restarts it.
// Calls before Start are ignored.
func (s *Scheduler) Schedule(targetID string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil || s.baseCtx.Err() != nil {
		return
	}
	if j, ok := s.jobs[targetID]; ok {
		if j.interval == interval {
			return
		}
		j.cancel()
		delete(s.jobs, targetID)
	}
	s.spawnLocked(targetID, interval)
}

// Reschedule restarts targetID's job with a new interval.
func (s *Scheduler) Reschedule(targetID string, interval time.Duration) {
	s.Unschedule(targetID)
	s.Schedule(targetID, interval)
}

// Unschedule stops future executions for targetID. An execution already
// running completes.
func (s *Scheduler) Unschedule(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[targetID]; ok {
		j.cancel()
		delete(s.jobs, targetID)
		s.metrics.scheduledJobs.Set(float64(len(s.jobs)))
	}
}

// Trigger requests an immediate execution of a scheduled target. It
// reports false when the target has no job.
func (s *Scheduler) Trigger(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[targetID]
	if !ok {
		return false
	}
	select {
	case j.trigger <- struct{}{}:
	default:
	}
	return true
}

// Jobs returns the scheduled target ids in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Scheduler) spawnLocked(targetID string, interval time.Duration) {
	base := s.baseCtx
	jobCtx, cancel := context.WithCancel(base)
	j := &job{
		interval: interval,
		trigger:  make(chan struct{}, 1),
		cancel:   cancel,
	}
	s.jobs[targetID] = j
	s.metrics.scheduledJobs.Set(float64(len(s.jobs)))

	s.wg.Add(1)
	go s.runJob(base, jobCtx, targetID, j)
}

// runJob ticks until jobCtx is cancelled. Executions run on the scheduler's
// base context, so unscheduling stops future ticks without aborting a probe
// that is already in flight.
func (s *Scheduler) runJob(base, jobCtx context.Context, targetID string, j *job) {
	defer s.wg.Done()

	if !s.execute(base, jobCtx, targetID, j) {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-jobCtx.Done():
			return
		case <-ticker.C:
		case <-j.trigger:
		}
		if !s.execute(base, jobCtx, targetID, j) {
			return
		}
	}
}

func (s *Scheduler) execute(base, jobCtx context.Context, targetID string, j *job) bool {
	select {
	case <-jobCtx.Done():
		return false
	case s.sem <- struct{}{}:
	}
	defer func() { <-s.sem }()

	// Unscheduled while waiting for a slot.
	if jobCtx.Err() != nil {
		return false
	}

	if keep := s.poll(base, targetID); !keep {
		s.removeJob(targetID, j)
		return false
	}
	return true
}

// removeJob deletes targetID only if it still maps to j, so a job that was
// replaced by Schedule is not removed by its predecessor.
func (s *Scheduler) removeJob(targetID string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[targetID]; ok && cur == j {
		cur.cancel()
		delete(s.jobs, targetID)
		s.metrics.scheduledJobs.Set(float64(len(s.jobs)))
		s.logger.Info("poll target unscheduled", zap.String("target_id", targetID))
	}
}
