package monitor

import (
	"database/sql"

	"github.com/HerbHall/vigil/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create monitor target tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitor_poll_targets (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						url TEXT NOT NULL,
						expected_text TEXT NOT NULL DEFAULT '',
						check_interval INTEGER NOT NULL DEFAULT 300,
						timeout INTEGER NOT NULL DEFAULT 30,
						is_active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_poll_active ON monitor_poll_targets(is_active)`,

					`CREATE TABLE IF NOT EXISTS monitor_push_targets (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						token TEXT NOT NULL UNIQUE,
						expected_interval INTEGER NOT NULL,
						grace_period INTEGER NOT NULL DEFAULT 0,
						last_heartbeat DATETIME,
						is_active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL,
						CHECK (expected_interval > 0),
						CHECK (grace_period >= 0)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_push_active ON monitor_push_targets(is_active)`,
				}
				return execAll(tx, stmts)
			},
		},
		{
			Version:     2,
			Description: "create check results and status markers",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitor_check_results (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						target_id TEXT NOT NULL REFERENCES monitor_poll_targets(id) ON DELETE CASCADE,
						status TEXT NOT NULL,
						error_message TEXT NOT NULL DEFAULT '',
						response_time_ms REAL NOT NULL DEFAULT 0,
						status_code INTEGER NOT NULL DEFAULT 0,
						checked_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_results_target_time ON monitor_check_results(target_id, checked_at)`,

					`CREATE TABLE IF NOT EXISTS monitor_status (
						target_id TEXT PRIMARY KEY,
						target_kind TEXT NOT NULL,
						status TEXT NOT NULL,
						changed_at DATETIME NOT NULL
					)`,
				}
				return execAll(tx, stmts)
			},
		},
		{
			Version:     3,
			Description: "create alert configs and heartbeat events",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitor_alert_configs (
						id TEXT PRIMARY KEY,
						target_id TEXT NOT NULL,
						target_kind TEXT NOT NULL,
						channel_kind TEXT NOT NULL,
						channel_config TEXT NOT NULL,
						is_active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_alert_configs_target ON monitor_alert_configs(target_id)`,

					`CREATE TABLE IF NOT EXISTS monitor_heartbeat_events (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						target_id TEXT NOT NULL,
						received_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_heartbeats_target_time ON monitor_heartbeat_events(target_id, received_at)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_heartbeats_time ON monitor_heartbeat_events(received_at)`,
				}
				return execAll(tx, stmts)
			},
		},
	}
}

func execAll(tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
