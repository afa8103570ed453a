package monitor

import (
	"context"
	"time"
)

// GetOverdueTargets returns the active push targets that are overdue now.
func (m *Module) GetOverdueTargets(ctx context.Context) ([]PushTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	targets, err := m.repo.ListActivePushTargets(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	overdue := []PushTarget{}
	for i := range targets {
		if IsOverdue(targets[i], now) {
			overdue = append(overdue, targets[i])
		}
	}
	return overdue, nil
}

// GetSystemCounts aggregates health across every target. Poll targets
// report their last accounted status; push targets are evaluated against
// the clock. Inactive targets are counted separately.
func (m *Module) GetSystemCounts(ctx context.Context) (SystemCounts, error) {
	counts := SystemCounts{OverdueNames: []string{}}
	if m.repo == nil {
		return counts, ErrUnavailable
	}

	polls, err := m.repo.ListPollTargets(ctx)
	if err != nil {
		return counts, err
	}
	pushes, err := m.repo.ListPushTargets(ctx)
	if err != nil {
		return counts, err
	}
	recs, err := m.repo.ListStatuses(ctx)
	if err != nil {
		return counts, err
	}
	statuses := make(map[string]Status, len(recs))
	for _, rec := range recs {
		statuses[rec.TargetID] = rec.Status
	}

	counts.PollTargets = len(polls)
	counts.PushTargets = len(pushes)
	counts.Total = len(polls) + len(pushes)

	for i := range polls {
		if !polls[i].IsActive {
			counts.Inactive++
			continue
		}
		switch statuses[polls[i].ID] {
		case StatusHealthy:
			counts.Healthy++
		case StatusUnhealthy:
			counts.Unhealthy++
		default:
			counts.Unknown++
		}
	}

	now := m.now()
	for i := range pushes {
		switch {
		case !pushes[i].IsActive:
			counts.Inactive++
		case IsOverdue(pushes[i], now):
			counts.Unhealthy++
			counts.OverdueNames = append(counts.OverdueNames, pushes[i].Name)
		default:
			counts.Healthy++
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	counts.HeartbeatsToday, err = m.repo.CountHeartbeatsSince(ctx, midnight)
	if err != nil {
		return counts, err
	}
	return counts, nil
}

// GetPushStatus summarizes one push target.
func (m *Module) GetPushStatus(ctx context.Context, id string) (*PushStatus, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	t, err := m.repo.GetPushTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()

	total, err := m.repo.CountHeartbeats(ctx, id, time.Time{})
	if err != nil {
		return nil, err
	}
	recent, err := m.repo.CountHeartbeats(ctx, id, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	recorded, err := m.repo.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &PushStatus{
		Target:          *t,
		IsOverdue:       t.IsActive && IsOverdue(*t, now),
		TotalHeartbeats: total,
		Heartbeats24h:   recent,
		OverdueDeadline: OverdueDeadline(*t),
		RecordedStatus:  recorded,
	}
	if t.LastHeartbeat != nil {
		next := t.LastHeartbeat.Add(t.ExpectedInterval())
		st.NextExpected = &next
	}
	return st, nil
}
