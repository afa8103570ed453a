package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// -- Poll targets --

// CreatePollTarget registers a poll target and schedules it when active.
func (m *Module) CreatePollTarget(ctx context.Context, p PollTargetParams) (*PollTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	now := m.now()
	t := &PollTarget{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := applyPollParams(t, p, seconds(m.cfg.DefaultCheckInterval), seconds(m.cfg.DefaultTimeout)); err != nil {
		return nil, err
	}
	if err := m.repo.CreatePollTarget(ctx, t); err != nil {
		return nil, err
	}
	if t.IsActive {
		m.scheduler.Schedule(t.ID, t.CheckInterval())
	}
	m.logger.Info("poll target created", zap.String("target_id", t.ID), zap.String("name", t.Name))
	return t, nil
}

// GetPollTarget returns a poll target by id.
func (m *Module) GetPollTarget(ctx context.Context, id string) (*PollTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	return m.repo.GetPollTarget(ctx, id)
}

// ListPollTargets returns every poll target.
func (m *Module) ListPollTargets(ctx context.Context) ([]PollTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	return m.repo.ListPollTargets(ctx)
}

// UpdatePollTarget applies p to the stored target. Deactivating stops the
// schedule; an interval change restarts it.
func (m *Module) UpdatePollTarget(ctx context.Context, id string, p PollTargetParams) (*PollTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	t, err := m.repo.GetPollTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPollParams(t, p, t.CheckIntervalSeconds, t.TimeoutSeconds); err != nil {
		return nil, err
	}
	t.UpdatedAt = m.now()
	if err := m.repo.UpdatePollTarget(ctx, t); err != nil {
		return nil, err
	}

	if t.IsActive {
		m.scheduler.Schedule(t.ID, t.CheckInterval())
	} else {
		m.scheduler.Unschedule(t.ID)
	}
	m.logger.Info("poll target updated",
		zap.String("target_id", t.ID),
		zap.Bool("is_active", t.IsActive),
	)
	return t, nil
}

// DeletePollTarget unschedules and removes a poll target with its history
// and alert configs.
func (m *Module) DeletePollTarget(ctx context.Context, id string) error {
	if m.repo == nil {
		return ErrUnavailable
	}
	m.scheduler.Unschedule(id)
	if err := m.repo.DeletePollTarget(ctx, id); err != nil {
		return err
	}
	m.logger.Info("poll target deleted", zap.String("target_id", id))
	return nil
}

// ListResults returns the newest results of a poll target. limit <= 0
// means 100; values above 1000 are capped.
func (m *Module) ListResults(ctx context.Context, targetID string, limit int) ([]CheckResult, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	if _, err := m.repo.GetPollTarget(ctx, targetID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = 100
	case limit > 1000:
		limit = 1000
	}
	return m.repo.ListResults(ctx, targetID, limit)
}

// -- Push targets --

// CreatePushTarget registers a push target with a fresh token.
func (m *Module) CreatePushTarget(ctx context.Context, p PushTargetParams) (*PushTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	now := m.now()
	t := &PushTarget{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyPushParams(t, p, 0, seconds(m.cfg.DefaultGracePeriod)); err != nil {
		return nil, err
	}
	if err := m.repo.CreatePushTarget(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Info("push target created", zap.String("target_id", t.ID), zap.String("name", t.Name))
	return t, nil
}

// GetPushTarget returns a push target by id.
func (m *Module) GetPushTarget(ctx context.Context, id string) (*PushTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	return m.repo.GetPushTarget(ctx, id)
}

// ListPushTargets returns every push target.
func (m *Module) ListPushTargets(ctx context.Context) ([]PushTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	return m.repo.ListPushTargets(ctx)
}

// UpdatePushTarget applies p to the stored target. The token and last
// heartbeat are not user editable.
func (m *Module) UpdatePushTarget(ctx context.Context, id string, p PushTargetParams) (*PushTarget, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	t, err := m.repo.GetPushTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPushParams(t, p, t.ExpectedIntervalSeconds, t.GracePeriodSeconds); err != nil {
		return nil, err
	}
	t.UpdatedAt = m.now()
	if err := m.repo.UpdatePushTarget(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Info("push target updated",
		zap.String("target_id", t.ID),
		zap.Bool("is_active", t.IsActive),
	)
	return t, nil
}

// DeletePushTarget removes a push target and its alert configs.
func (m *Module) DeletePushTarget(ctx context.Context, id string) error {
	if m.repo == nil {
		return ErrUnavailable
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.repo.DeletePushTarget(ctx, id); err != nil {
		return err
	}
	m.overdue.Remove(id)
	m.logger.Info("push target deleted", zap.String("target_id", id))
	return nil
}

// -- Alert configs --

// CreateAlertConfig binds a new channel to a target. The channel config is
// built once up front so configuration errors surface here.
func (m *Module) CreateAlertConfig(ctx context.Context, kind TargetKind, targetID string, p AlertConfigParams) (*AlertConfig, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	if kind != KindPoll && kind != KindPush {
		return nil, invalid("target_kind", "must be poll or push")
	}
	if err := validateAlertParams(p, m.buildChannel, m.notifyDefaults); err != nil {
		return nil, err
	}
	c := &AlertConfig{
		ID:            uuid.NewString(),
		TargetID:      targetID,
		TargetKind:    kind,
		ChannelKind:   p.ChannelKind,
		ChannelConfig: p.ChannelConfig,
		IsActive:      true,
		CreatedAt:     m.now(),
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if err := m.repo.CreateAlertConfig(ctx, c); err != nil {
		return nil, err
	}
	m.logger.Info("alert config created",
		zap.String("alert_config_id", c.ID),
		zap.String("target_id", targetID),
		zap.String("channel_kind", string(c.ChannelKind)),
	)
	return c, nil
}

// ListAlertConfigs returns the alert configs of a target.
func (m *Module) ListAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	return m.repo.ListAlertConfigs(ctx, targetID)
}

// UpdateAlertConfig replaces the channel of an alert config.
func (m *Module) UpdateAlertConfig(ctx context.Context, id string, p AlertConfigParams) (*AlertConfig, error) {
	if m.repo == nil {
		return nil, ErrUnavailable
	}
	c, err := m.repo.GetAlertConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ChannelKind == "" {
		p.ChannelKind = c.ChannelKind
	}
	if len(p.ChannelConfig) == 0 {
		p.ChannelConfig = c.ChannelConfig
	}
	if err := validateAlertParams(p, m.buildChannel, m.notifyDefaults); err != nil {
		return nil, err
	}
	c.ChannelKind = p.ChannelKind
	c.ChannelConfig = p.ChannelConfig
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if err := m.repo.UpdateAlertConfig(ctx, c); err != nil {
		return nil, fmt.Errorf("update alert config: %w", err)
	}
	return c, nil
}

// DeleteAlertConfig removes one alert config.
func (m *Module) DeleteAlertConfig(ctx context.Context, id string) error {
	if m.repo == nil {
		return ErrUnavailable
	}
	return m.repo.DeleteAlertConfig(ctx, id)
}
