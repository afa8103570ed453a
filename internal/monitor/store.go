package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository is the persistence surface the monitor core needs. Every
// method either fully commits or returns an error and leaves state unchanged.
type Repository interface {
	CreatePollTarget(ctx context.Context, t *PollTarget) error
	GetPollTarget(ctx context.Context, id string) (*PollTarget, error)
	ListPollTargets(ctx context.Context) ([]PollTarget, error)
	ListActivePollTargets(ctx context.Context) ([]PollTarget, error)
	UpdatePollTarget(ctx context.Context, t *PollTarget) error
	DeletePollTarget(ctx context.Context, id string) error

	CreatePushTarget(ctx context.Context, t *PushTarget) error
	GetPushTarget(ctx context.Context, id string) (*PushTarget, error)
	GetPushTargetByToken(ctx context.Context, token string) (*PushTarget, error)
	ListPushTargets(ctx context.Context) ([]PushTarget, error)
	ListActivePushTargets(ctx context.Context) ([]PushTarget, error)
	UpdatePushTarget(ctx context.Context, t *PushTarget) error
	DeletePushTarget(ctx context.Context, id string) error

	AppendResult(ctx context.Context, r *CheckResult) error
	GetLastResult(ctx context.Context, targetID string) (*CheckResult, error)
	RecordResult(ctx context.Context, r *CheckResult) (prev Status, active bool, err error)
	ListResults(ctx context.Context, targetID string, limit int) ([]CheckResult, error)
	DeleteResultsBefore(ctx context.Context, before time.Time) (int64, error)

	GetStatus(ctx context.Context, targetID string) (Status, error)
	SetStatus(ctx context.Context, rec StatusRecord) error
	ListStatuses(ctx context.Context) ([]StatusRecord, error)

	RecordHeartbeat(ctx context.Context, token string, at time.Time) (*PushTarget, error)
	CountHeartbeats(ctx context.Context, targetID string, since time.Time) (int, error)
	CountHeartbeatsSince(ctx context.Context, since time.Time) (int, error)
	DeleteHeartbeatsBefore(ctx context.Context, before time.Time) (int64, error)

	CreateAlertConfig(ctx context.Context, c *AlertConfig) error
	GetAlertConfig(ctx context.Context, id string) (*AlertConfig, error)
	ListAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error)
	ListActiveAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error)
	UpdateAlertConfig(ctx context.Context, c *AlertConfig) error
	DeleteAlertConfig(ctx context.Context, id string) error
}

// Compile-time interface guard.
var _ Repository = (*MonitorStore)(nil)

// MonitorStore implements Repository on the shared SQLite database.
type MonitorStore struct {
	db *sql.DB
}

// NewMonitorStore creates a MonitorStore backed by the given database.
func NewMonitorStore(db *sql.DB) *MonitorStore {
	return &MonitorStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// inTx runs fn in a transaction. All queries inside fn must go through tx:
// the pool holds a single connection.
func (s *MonitorStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nameTaken reports whether another active target in table uses name.
func nameTaken(ctx context.Context, tx *sql.Tx, table, name, excludeID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE name = ? AND is_active = 1 AND id != ?`,
		name, excludeID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}
	return n > 0, nil
}

// deleteTargetTx removes a target row and everything it owns.
func deleteTargetTx(ctx context.Context, tx *sql.Tx, table, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monitor_alert_configs WHERE target_id = ?`, id); err != nil {
		return fmt.Errorf("delete alert configs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monitor_status WHERE target_id = ?`, id); err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	return nil
}

// -- Poll targets --

const pollColumns = `id, name, url, expected_text, check_interval, timeout, is_active, created_at, updated_at`

func scanPollTarget(row rowScanner) (*PollTarget, error) {
	var t PollTarget
	var active int
	if err := row.Scan(
		&t.ID, &t.Name, &t.URL, &t.ExpectedText, &t.CheckIntervalSeconds,
		&t.TimeoutSeconds, &active, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	return &t, nil
}

// CreatePollTarget inserts t. Returns ErrDuplicateName when t is active and
// another active poll target has the same name.
func (s *MonitorStore) CreatePollTarget(ctx context.Context, t *PollTarget) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if t.IsActive {
			taken, err := nameTaken(ctx, tx, "monitor_poll_targets", t.Name, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateName
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_poll_targets (`+pollColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.URL, t.ExpectedText, t.CheckIntervalSeconds,
			t.TimeoutSeconds, boolToInt(t.IsActive), t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert poll target: %w", err)
		}
		return nil
	})
}

// GetPollTarget returns the poll target with id or ErrNotFound.
func (s *MonitorStore) GetPollTarget(ctx context.Context, id string) (*PollTarget, error) {
	t, err := scanPollTarget(s.db.QueryRowContext(ctx,
		`SELECT `+pollColumns+` FROM monitor_poll_targets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll target: %w", err)
	}
	return t, nil
}

func (s *MonitorStore) queryPollTargets(ctx context.Context, query string, args ...any) ([]PollTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list poll targets: %w", err)
	}
	defer rows.Close()

	var targets []PollTarget
	for rows.Next() {
		t, err := scanPollTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll target row: %w", err)
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// ListPollTargets returns every poll target ordered by name.
func (s *MonitorStore) ListPollTargets(ctx context.Context) ([]PollTarget, error) {
	return s.queryPollTargets(ctx,
		`SELECT `+pollColumns+` FROM monitor_poll_targets ORDER BY name, created_at`)
}

// ListActivePollTargets returns the poll targets the scheduler should run.
func (s *MonitorStore) ListActivePollTargets(ctx context.Context) ([]PollTarget, error) {
	return s.queryPollTargets(ctx,
		`SELECT `+pollColumns+` FROM monitor_poll_targets WHERE is_active = 1 ORDER BY created_at`)
}

// UpdatePollTarget replaces the mutable fields of t.
func (s *MonitorStore) UpdatePollTarget(ctx context.Context, t *PollTarget) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if t.IsActive {
			taken, err := nameTaken(ctx, tx, "monitor_poll_targets", t.Name, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateName
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE monitor_poll_targets
			SET name = ?, url = ?, expected_text = ?, check_interval = ?, timeout = ?,
				is_active = ?, updated_at = ?
			WHERE id = ?`,
			t.Name, t.URL, t.ExpectedText, t.CheckIntervalSeconds, t.TimeoutSeconds,
			boolToInt(t.IsActive), t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("update poll target: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeletePollTarget removes the target, its results, alert configs and status marker.
func (s *MonitorStore) DeletePollTarget(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteTargetTx(ctx, tx, "monitor_poll_targets", id)
	})
}

// -- Push targets --

const pushColumns = `id, name, token, expected_interval, grace_period, last_heartbeat, is_active, created_at, updated_at`

func scanPushTarget(row rowScanner) (*PushTarget, error) {
	var t PushTarget
	var active int
	var last sql.NullTime
	if err := row.Scan(
		&t.ID, &t.Name, &t.Token, &t.ExpectedIntervalSeconds, &t.GracePeriodSeconds,
		&last, &active, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	if last.Valid {
		ts := last.Time
		t.LastHeartbeat = &ts
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreatePushTarget inserts t. Returns ErrDuplicateName when t is active and
// another active push target has the same name.
func (s *MonitorStore) CreatePushTarget(ctx context.Context, t *PushTarget) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if t.IsActive {
			taken, err := nameTaken(ctx, tx, "monitor_push_targets", t.Name, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateName
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_push_targets (`+pushColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Token, t.ExpectedIntervalSeconds, t.GracePeriodSeconds,
			nullTime(t.LastHeartbeat), boolToInt(t.IsActive), t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert push target: %w", err)
		}
		return nil
	})
}

// GetPushTarget returns the push target with id or ErrNotFound.
func (s *MonitorStore) GetPushTarget(ctx context.Context, id string) (*PushTarget, error) {
	t, err := scanPushTarget(s.db.QueryRowContext(ctx,
		`SELECT `+pushColumns+` FROM monitor_push_targets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get push target: %w", err)
	}
	return t, nil
}

// GetPushTargetByToken returns the push target owning token or ErrNotFound.
func (s *MonitorStore) GetPushTargetByToken(ctx context.Context, token string) (*PushTarget, error) {
	t, err := scanPushTarget(s.db.QueryRowContext(ctx,
		`SELECT `+pushColumns+` FROM monitor_push_targets WHERE token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get push target by token: %w", err)
	}
	return t, nil
}

func (s *MonitorStore) queryPushTargets(ctx context.Context, query string, args ...any) ([]PushTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push targets: %w", err)
	}
	defer rows.Close()

	var targets []PushTarget
	for rows.Next() {
		t, err := scanPushTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push target row: %w", err)
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// ListPushTargets returns every push target ordered by name.
func (s *MonitorStore) ListPushTargets(ctx context.Context) ([]PushTarget, error) {
	return s.queryPushTargets(ctx,
		`SELECT `+pushColumns+` FROM monitor_push_targets ORDER BY name, created_at`)
}

// ListActivePushTargets returns the push targets the sweep evaluates.
func (s *MonitorStore) ListActivePushTargets(ctx context.Context) ([]PushTarget, error) {
	return s.queryPushTargets(ctx,
		`SELECT `+pushColumns+` FROM monitor_push_targets WHERE is_active = 1 ORDER BY created_at`)
}

// UpdatePushTarget replaces the mutable fields of t. The token and
// last_heartbeat are owned by the store and left untouched.
func (s *MonitorStore) UpdatePushTarget(ctx context.Context, t *PushTarget) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if t.IsActive {
			taken, err := nameTaken(ctx, tx, "monitor_push_targets", t.Name, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateName
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE monitor_push_targets
			SET name = ?, expected_interval = ?, grace_period = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
			t.Name, t.ExpectedIntervalSeconds, t.GracePeriodSeconds,
			boolToInt(t.IsActive), t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("update push target: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeletePushTarget removes the target, its alert configs and status marker.
// Heartbeat events are left for retention to prune.
func (s *MonitorStore) DeletePushTarget(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteTargetTx(ctx, tx, "monitor_push_targets", id)
	})
}

// -- Results and status markers --

const resultColumns = `id, target_id, status, error_message, response_time_ms, status_code, checked_at`

func scanResult(row rowScanner) (*CheckResult, error) {
	var r CheckResult
	if err := row.Scan(
		&r.ID, &r.TargetID, &r.Status, &r.ErrorMessage, &r.ResponseTimeMs,
		&r.StatusCode, &r.CheckedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func insertResultTx(ctx context.Context, tx *sql.Tx, r *CheckResult) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO monitor_check_results (
			target_id, status, error_message, response_time_ms, status_code, checked_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.TargetID, r.Status, r.ErrorMessage, r.ResponseTimeMs, r.StatusCode, r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

func statusTx(ctx context.Context, tx *sql.Tx, targetID string) (Status, error) {
	var st Status
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM monitor_status WHERE target_id = ?`, targetID,
	).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return st, nil
}

func upsertStatusTx(ctx context.Context, tx *sql.Tx, rec StatusRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO monitor_status (target_id, target_kind, status, changed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			target_kind = excluded.target_kind,
			status = excluded.status,
			changed_at = excluded.changed_at`,
		rec.TargetID, rec.TargetKind, rec.Status, rec.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

// AppendResult adds r to the history without touching the status marker.
func (s *MonitorStore) AppendResult(ctx context.Context, r *CheckResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertResultTx(ctx, tx, r)
	})
}

// GetLastResult returns the most recently appended result, or ErrNotFound.
func (s *MonitorStore) GetLastResult(ctx context.Context, targetID string) (*CheckResult, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM monitor_check_results
		WHERE target_id = ? ORDER BY id DESC LIMIT 1`, targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last result: %w", err)
	}
	return r, nil
}

// RecordResult appends r and, if the target is still active, swaps the
// status marker to r.Status, all in one transaction. It returns the marker
// as it was before the swap. Inactive targets keep their marker so a later
// reactivation compares against the last accounted status.
func (s *MonitorStore) RecordResult(ctx context.Context, r *CheckResult) (Status, bool, error) {
	var (
		prev   Status
		active bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var activeInt int
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM monitor_poll_targets WHERE id = ?`, r.TargetID,
		).Scan(&activeInt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get poll target state: %w", err)
		}
		active = activeInt != 0

		if err := insertResultTx(ctx, tx, r); err != nil {
			return err
		}

		prev, err = statusTx(ctx, tx, r.TargetID)
		if err != nil {
			return err
		}
		if !active || prev == r.Status {
			return nil
		}
		return upsertStatusTx(ctx, tx, StatusRecord{
			TargetID:   r.TargetID,
			TargetKind: KindPoll,
			Status:     r.Status,
			ChangedAt:  r.CheckedAt,
		})
	})
	if err != nil {
		return "", false, err
	}
	return prev, active, nil
}

// ListResults returns the newest results for targetID. limit <= 0 means 100.
func (s *MonitorStore) ListResults(ctx context.Context, targetID string, limit int) ([]CheckResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM monitor_check_results
		WHERE target_id = ? ORDER BY id DESC LIMIT ?`,
		targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// DeleteResultsBefore prunes results checked before the cutoff.
func (s *MonitorStore) DeleteResultsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitor_check_results WHERE checked_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("delete old results: %w", err)
	}
	return res.RowsAffected()
}

// GetStatus returns the status marker for targetID, StatusUnknown if none.
func (s *MonitorStore) GetStatus(ctx context.Context, targetID string) (Status, error) {
	var st Status
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM monitor_status WHERE target_id = ?`, targetID,
	).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return st, nil
}

// SetStatus writes the status marker for a target.
func (s *MonitorStore) SetStatus(ctx context.Context, rec StatusRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertStatusTx(ctx, tx, rec)
	})
}

// ListStatuses returns every status marker.
func (s *MonitorStore) ListStatuses(ctx context.Context) ([]StatusRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, target_kind, status, changed_at FROM monitor_status ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var recs []StatusRecord
	for rows.Next() {
		var rec StatusRecord
		if err := rows.Scan(&rec.TargetID, &rec.TargetKind, &rec.Status, &rec.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// -- Heartbeats --

// RecordHeartbeat resolves token, and for an active target sets
// last_heartbeat to at and appends a HeartbeatEvent. Unknown tokens return
// ErrNotFound and inactive targets ErrInactive, both without writing.
func (s *MonitorStore) RecordHeartbeat(ctx context.Context, token string, at time.Time) (*PushTarget, error) {
	var target *PushTarget
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := scanPushTarget(tx.QueryRowContext(ctx,
			`SELECT `+pushColumns+` FROM monitor_push_targets WHERE token = ?`, token))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get push target by token: %w", err)
		}
		if !t.IsActive {
			target = t
			return ErrInactive
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE monitor_push_targets SET last_heartbeat = ? WHERE id = ?`, at, t.ID,
		); err != nil {
			return fmt.Errorf("update last heartbeat: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO monitor_heartbeat_events (target_id, received_at) VALUES (?, ?)`, t.ID, at,
		); err != nil {
			return fmt.Errorf("insert heartbeat event: %w", err)
		}
		t.LastHeartbeat = &at
		target = t
		return nil
	})
	return target, err
}

// CountHeartbeats counts events for targetID received at or after since.
// A zero since counts all events.
func (s *MonitorStore) CountHeartbeats(ctx context.Context, targetID string, since time.Time) (int, error) {
	var n int
	var err error
	if since.IsZero() {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM monitor_heartbeat_events WHERE target_id = ?`, targetID,
		).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM monitor_heartbeat_events WHERE target_id = ? AND received_at >= ?`,
			targetID, since,
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count heartbeats: %w", err)
	}
	return n, nil
}

// CountHeartbeatsSince counts events for all targets received at or after since.
func (s *MonitorStore) CountHeartbeatsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM monitor_heartbeat_events WHERE received_at >= ?`, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count heartbeats: %w", err)
	}
	return n, nil
}

// DeleteHeartbeatsBefore prunes heartbeat events received before the cutoff.
func (s *MonitorStore) DeleteHeartbeatsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitor_heartbeat_events WHERE received_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("delete old heartbeat events: %w", err)
	}
	return res.RowsAffected()
}

// -- Alert configs --

const alertColumns = `id, target_id, target_kind, channel_kind, channel_config, is_active, created_at`

func scanAlertConfig(row rowScanner) (*AlertConfig, error) {
	var c AlertConfig
	var active int
	var raw string
	if err := row.Scan(
		&c.ID, &c.TargetID, &c.TargetKind, &c.ChannelKind, &raw, &active, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.ChannelConfig = []byte(raw)
	c.IsActive = active != 0
	return &c, nil
}

func targetTable(kind TargetKind) (string, error) {
	switch kind {
	case KindPoll:
		return "monitor_poll_targets", nil
	case KindPush:
		return "monitor_push_targets", nil
	default:
		return "", fmt.Errorf("unknown target kind %q", kind)
	}
}

// CreateAlertConfig inserts c after confirming its target exists.
func (s *MonitorStore) CreateAlertConfig(ctx context.Context, c *AlertConfig) error {
	table, err := targetTable(c.TargetKind)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, c.TargetID,
		).Scan(&n); err != nil {
			return fmt.Errorf("check target: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_alert_configs (`+alertColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.TargetID, c.TargetKind, c.ChannelKind, string(c.ChannelConfig),
			boolToInt(c.IsActive), c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert alert config: %w", err)
		}
		return nil
	})
}

// GetAlertConfig returns the alert config with id or ErrNotFound.
func (s *MonitorStore) GetAlertConfig(ctx context.Context, id string) (*AlertConfig, error) {
	c, err := scanAlertConfig(s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM monitor_alert_configs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert config: %w", err)
	}
	return c, nil
}

func (s *MonitorStore) queryAlertConfigs(ctx context.Context, query string, args ...any) ([]AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alert configs: %w", err)
	}
	defer rows.Close()

	var configs []AlertConfig
	for rows.Next() {
		c, err := scanAlertConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert config row: %w", err)
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

// ListAlertConfigs returns all alert configs of a target in creation order.
func (s *MonitorStore) ListAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error) {
	return s.queryAlertConfigs(ctx, `
		SELECT `+alertColumns+` FROM monitor_alert_configs
		WHERE target_id = ? ORDER BY created_at, id`, targetID)
}

// ListActiveAlertConfigs returns the alert configs the dispatcher should fire.
func (s *MonitorStore) ListActiveAlertConfigs(ctx context.Context, targetID string) ([]AlertConfig, error) {
	return s.queryAlertConfigs(ctx, `
		SELECT `+alertColumns+` FROM monitor_alert_configs
		WHERE target_id = ? AND is_active = 1 ORDER BY created_at, id`, targetID)
}

// UpdateAlertConfig replaces the channel and activation of c.
func (s *MonitorStore) UpdateAlertConfig(ctx context.Context, c *AlertConfig) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitor_alert_configs SET channel_kind = ?, channel_config = ?, is_active = ?
		WHERE id = ?`,
		c.ChannelKind, string(c.ChannelConfig), boolToInt(c.IsActive), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAlertConfig removes one alert config.
func (s *MonitorStore) DeleteAlertConfig(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitor_alert_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
