package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches a background goroutine that periodically
// prunes heartbeat events and check results past their retention windows.
func (m *Module) startMaintenance() {
	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance(ctx)
			}
		}
	}()
}

// runMaintenance executes a single maintenance cycle.
func (m *Module) runMaintenance(ctx context.Context) {
	if m.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := m.now()

	deletedEvents, err := m.repo.DeleteHeartbeatsBefore(ctx, now.Add(-m.cfg.HeartbeatRetention))
	if err != nil {
		m.logger.Warn("failed to delete old heartbeat events", zap.Error(err))
	} else if deletedEvents > 0 {
		m.logger.Info("purged old heartbeat events", zap.Int64("count", deletedEvents))
	}

	deletedResults, err := m.repo.DeleteResultsBefore(ctx, now.Add(-m.cfg.ResultRetention))
	if err != nil {
		m.logger.Warn("failed to delete old check results", zap.Error(err))
	} else if deletedResults > 0 {
		m.logger.Info("purged old check results", zap.Int64("count", deletedResults))
	}
}
