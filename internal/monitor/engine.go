package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/vigil/internal/notify"
	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunPollCheck probes the poll target now, records the outcome, and
// dispatches if the outcome is a transition. It is serialized with every
// other evaluation of the same target. Probe failures are reported in the
// returned result; the error is reserved for unknown targets and store
// failures.
func (m *Module) RunPollCheck(ctx context.Context, targetID string) (CheckResult, error) {
	if m.repo == nil {
		return CheckResult{}, ErrUnavailable
	}

	unlock := m.locks.Lock(targetID)
	defer unlock()

	t, err := m.repo.GetPollTarget(ctx, targetID)
	if err != nil {
		return CheckResult{}, err
	}

	result := m.prober.Probe(ctx, *t)
	if err := ctx.Err(); err != nil {
		// Aborted by shutdown: the outcome says nothing about the target.
		m.logger.Warn("poll check abandoned",
			zap.String("target_id", t.ID),
			zap.Error(err),
		)
		return result, err
	}

	prev, active, err := m.repo.RecordResult(ctx, &result)
	if err != nil {
		m.logger.Error("failed to record check result",
			zap.String("target_id", t.ID),
			zap.Error(err),
		)
		return result, fmt.Errorf("record result: %w", err)
	}
	m.metrics.observeCheck(result)

	if result.Status == StatusHealthy {
		m.logger.Debug("poll check healthy",
			zap.String("target_id", t.ID),
			zap.Float64("response_time_ms", result.ResponseTimeMs),
		)
	} else {
		m.logger.Info("poll check unhealthy",
			zap.String("target_id", t.ID),
			zap.String("error", result.ErrorMessage),
			zap.Int("status_code", result.StatusCode),
		)
	}
	m.publish(ctx, TopicCheckCompleted, result)

	if !active {
		return result, nil
	}
	tr := DetectPollTransition(prev, result.Status)
	if tr == TransitionNone {
		return result, nil
	}

	m.handleTransition(ctx, KindPoll, tr, pollSubject(t), notify.Context{
		Status:       string(result.Status),
		ErrorMessage: result.ErrorMessage,
		ResponseTime: result.ResponseTime(),
		StatusCode:   result.StatusCode,
		CheckedAt:    result.CheckedAt,
	})
	return result, nil
}

// scheduledPoll is the scheduler's PollFunc. It keeps the job only while
// the target exists and is active.
func (m *Module) scheduledPoll(ctx context.Context, targetID string) bool {
	t, err := m.repo.GetPollTarget(ctx, targetID)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		m.logger.Error("failed to load poll target", zap.String("target_id", targetID), zap.Error(err))
		return true
	}
	if !t.IsActive {
		return false
	}

	if _, err := m.RunPollCheck(ctx, targetID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false
		}
		if ctx.Err() == nil {
			m.logger.Error("scheduled poll check failed", zap.String("target_id", targetID), zap.Error(err))
		}
	}
	return true
}

// Sweep evaluates every active push target against the clock once. A
// failure on one target is logged and does not stop the others.
func (m *Module) Sweep(ctx context.Context) {
	if m.repo == nil {
		return
	}
	targets, err := m.repo.ListActivePushTargets(ctx)
	if err != nil {
		m.logger.Error("sweep: failed to load push targets", zap.Error(err))
		return
	}

	now := m.now()
	for i := range targets {
		if ctx.Err() != nil {
			return
		}
		if err := m.evaluatePush(ctx, targets[i].ID, now); err != nil {
			m.logger.Error("sweep: failed to evaluate push target",
				zap.String("target_id", targets[i].ID),
				zap.Error(err),
			)
		}
	}
	m.metrics.overdueTargets.Set(float64(m.overdue.Len()))
}

// evaluatePush runs overdue and transition detection for one push target.
// The status marker is written before the tracker changes, so a store
// failure leaves the transition pending for the next sweep.
func (m *Module) evaluatePush(ctx context.Context, targetID string, now time.Time) error {
	unlock := m.locks.Lock(targetID)
	defer unlock()

	t, err := m.repo.GetPushTarget(ctx, targetID)
	if errors.Is(err, ErrNotFound) {
		m.overdue.Remove(targetID)
		return nil
	}
	if err != nil {
		return err
	}
	if !t.IsActive {
		return nil
	}

	overdue := IsOverdue(*t, now)
	tr := DetectPushTransition(m.overdue.Contains(t.ID), overdue)
	if tr == TransitionNone {
		return nil
	}

	status := StatusHealthy
	if overdue {
		status = StatusUnhealthy
	}
	if err := m.repo.SetStatus(ctx, StatusRecord{
		TargetID:   t.ID,
		TargetKind: KindPush,
		Status:     status,
		ChangedAt:  now,
	}); err != nil {
		return fmt.Errorf("record push status: %w", err)
	}
	m.overdue.Apply(t.ID, tr)

	nc := notify.Context{
		Status:           string(status),
		CheckedAt:        now,
		LastHeartbeat:    t.LastHeartbeat,
		ExpectedInterval: t.ExpectedInterval(),
		GracePeriod:      t.GracePeriod(),
	}
	if overdue {
		nc.ErrorMessage = "no heartbeat received since " + formatLastSeen(t.LastHeartbeat)
	}
	m.handleTransition(ctx, KindPush, tr, pushSubject(t), nc)
	return nil
}

// ReceiveHeartbeat records a liveness signal for the push target owning
// token. It returns ErrNotFound for unknown tokens and ErrInactive for
// deactivated targets, writing nothing in either case. Detection is left
// to the next sweep.
func (m *Module) ReceiveHeartbeat(ctx context.Context, token string, now time.Time) (time.Time, error) {
	if m.repo == nil {
		return time.Time{}, ErrUnavailable
	}
	if _, err := uuid.Parse(token); err != nil {
		m.metrics.observeHeartbeat("not_found")
		return time.Time{}, ErrNotFound
	}

	at := now.UTC()
	t, err := m.repo.RecordHeartbeat(ctx, token, at)
	switch {
	case errors.Is(err, ErrNotFound):
		m.metrics.observeHeartbeat("not_found")
		return time.Time{}, err
	case errors.Is(err, ErrInactive):
		m.metrics.observeHeartbeat("inactive")
		if t != nil {
			m.logger.Info("heartbeat for inactive target ignored", zap.String("target_id", t.ID))
		}
		return time.Time{}, err
	case err != nil:
		m.metrics.observeHeartbeat("error")
		m.logger.Error("failed to record heartbeat", zap.Error(err))
		return time.Time{}, fmt.Errorf("record heartbeat: %w", err)
	}

	m.metrics.observeHeartbeat("accepted")
	m.logger.Debug("heartbeat received", zap.String("target_id", t.ID), zap.Time("at", at))
	m.publish(ctx, TopicHeartbeatReceived, HeartbeatReceivedEvent{
		TargetID:   t.ID,
		Name:       t.Name,
		ReceivedAt: at,
	})
	return at, nil
}

// handleTransition logs, counts, dispatches and publishes one transition.
func (m *Module) handleTransition(ctx context.Context, kind TargetKind, tr Transition, subject notify.Subject, nc notify.Context) {
	log := m.logger.With(
		zap.String("target_id", subject.ID),
		zap.String("target_kind", string(kind)),
		zap.String("name", subject.Name),
		zap.String("transition", string(tr)),
	)
	if tr.IsFailure() {
		log.Warn("target failed", zap.String("error", nc.ErrorMessage))
	} else {
		log.Info("target recovered")
	}
	m.metrics.observeTransition(kind, tr)

	report := m.dispatcher.Dispatch(ctx, Notice{Subject: subject, Transition: tr, Context: nc})
	if report.Err == nil && report.Failed() > 0 {
		log.Warn("some notifications failed",
			zap.Int("sent", report.Sent()),
			zap.Int("failed", report.Failed()),
		)
	}

	m.publish(ctx, topicFor(tr), TransitionEvent{
		TargetID:     subject.ID,
		TargetKind:   kind,
		Name:         subject.Name,
		Transition:   tr,
		Status:       Status(nc.Status),
		ErrorMessage: nc.ErrorMessage,
		At:           nc.CheckedAt,
		Notified:     report.Sent(),
		Failed:       report.Failed(),
	})
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	// Subscribers outlive the request that triggered the event.
	m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:     topic,
		Source:    "monitor",
		Timestamp: m.now(),
		Payload:   payload,
	})
}

func pollSubject(t *PollTarget) notify.Subject {
	return notify.Subject{ID: t.ID, Name: t.Name, TargetKind: string(KindPoll), URL: t.URL}
}

func pushSubject(t *PushTarget) notify.Subject {
	return notify.Subject{ID: t.ID, Name: t.Name, TargetKind: string(KindPush)}
}

func formatLastSeen(t *time.Time) string {
	if t == nil {
		return "creation"
	}
	return t.UTC().Format(time.RFC3339)
}
