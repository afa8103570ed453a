package monitor

import (
	"encoding/json"
	"time"

	"github.com/HerbHall/vigil/internal/notify"
)

// Clock returns the current time. Injected so tests control detection arithmetic.
type Clock func() time.Time

// Status is the health classification of a target.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// TargetKind distinguishes the two monitored target variants.
type TargetKind string

const (
	KindPoll TargetKind = "poll"
	KindPush TargetKind = "push"
)

// PollTarget is an endpoint checked by outbound HTTP GET on a fixed interval.
type PollTarget struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	URL                  string    `json:"url"`
	ExpectedText         string    `json:"expected_text,omitempty"`
	CheckIntervalSeconds int       `json:"check_interval"`
	TimeoutSeconds       int       `json:"timeout"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CheckInterval returns the configured probe period.
func (t PollTarget) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// Timeout returns the per-request deadline.
func (t PollTarget) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// PushTarget is an application that reports liveness by calling the
// heartbeat endpoint with its token.
type PushTarget struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	Token                   string     `json:"token"`
	ExpectedIntervalSeconds int        `json:"expected_interval"`
	GracePeriodSeconds      int        `json:"grace_period"`
	LastHeartbeat           *time.Time `json:"last_heartbeat,omitempty"`
	IsActive                bool       `json:"is_active"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// ExpectedInterval returns how often the application promises to report.
func (t PushTarget) ExpectedInterval() time.Duration {
	return time.Duration(t.ExpectedIntervalSeconds) * time.Second
}

// GracePeriod returns the tolerance added on top of ExpectedInterval.
func (t PushTarget) GracePeriod() time.Duration {
	return time.Duration(t.GracePeriodSeconds) * time.Second
}

// CheckResult is one probe outcome, appended to the result history.
type CheckResult struct {
	ID             int64     `json:"id"`
	TargetID       string    `json:"target_id"`
	Status         Status    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	StatusCode     int       `json:"status_code,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// ResponseTime returns the measured latency as a duration.
func (r CheckResult) ResponseTime() time.Duration {
	return time.Duration(r.ResponseTimeMs * float64(time.Millisecond))
}

// StatusRecord is the last status that was accounted for by the transition
// detector. It is replaced atomically together with the transition decision.
type StatusRecord struct {
	TargetID   string     `json:"target_id"`
	TargetKind TargetKind `json:"target_kind"`
	Status     Status     `json:"status"`
	ChangedAt  time.Time  `json:"changed_at"`
}

// AlertConfig binds a target to one notification channel.
type AlertConfig struct {
	ID            string          `json:"id"`
	TargetID      string          `json:"target_id"`
	TargetKind    TargetKind      `json:"target_kind"`
	ChannelKind   notify.Kind     `json:"channel_kind"`
	ChannelConfig json.RawMessage `json:"channel_config"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HeartbeatEvent is an audit entry for one received heartbeat.
type HeartbeatEvent struct {
	ID         int64     `json:"id"`
	TargetID   string    `json:"target_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// Transition is the outcome of comparing a target's previous and current status.
type Transition string

const (
	TransitionNone            Transition = "none"
	TransitionBecameUnhealthy Transition = "became_unhealthy"
	TransitionBecameOverdue   Transition = "became_overdue"
	TransitionRecovered       Transition = "recovered"
)

// IsFailure reports whether the transition enters a failed state.
func (t Transition) IsFailure() bool {
	return t == TransitionBecameUnhealthy || t == TransitionBecameOverdue
}

// PollTargetParams is the user-supplied part of a poll target.
// Zero intervals take the configured defaults on create and keep the
// stored value on update.
type PollTargetParams struct {
	Name          string `json:"name" yaml:"name"`
	URL           string `json:"url" yaml:"url"`
	ExpectedText  string `json:"expected_text,omitempty" yaml:"expected_text"`
	CheckInterval int    `json:"check_interval,omitempty" yaml:"check_interval"`
	Timeout       int    `json:"timeout,omitempty" yaml:"timeout"`
	IsActive      *bool  `json:"is_active,omitempty" yaml:"is_active"`
}

// PushTargetParams is the user-supplied part of a push target.
type PushTargetParams struct {
	Name             string `json:"name" yaml:"name"`
	ExpectedInterval int    `json:"expected_interval" yaml:"expected_interval"`
	GracePeriod      *int   `json:"grace_period,omitempty" yaml:"grace_period"`
	IsActive         *bool  `json:"is_active,omitempty" yaml:"is_active"`
}

// AlertConfigParams is the user-supplied part of an alert config.
type AlertConfigParams struct {
	ChannelKind   notify.Kind     `json:"channel_kind" yaml:"channel_kind"`
	ChannelConfig json.RawMessage `json:"channel_config" yaml:"-"`
	IsActive      *bool           `json:"is_active,omitempty" yaml:"is_active"`
}

// PushStatus summarizes a push target for operators.
type PushStatus struct {
	Target          PushTarget `json:"target"`
	IsOverdue       bool       `json:"is_overdue"`
	TotalHeartbeats int        `json:"total_heartbeats"`
	Heartbeats24h   int        `json:"recent_heartbeats_24h"`
	NextExpected    *time.Time `json:"next_expected_heartbeat,omitempty"`
	OverdueDeadline time.Time  `json:"overdue_deadline"`
	RecordedStatus  Status     `json:"recorded_status"`
}

// SystemCounts aggregates health across every target.
type SystemCounts struct {
	Total           int      `json:"total"`
	Healthy         int      `json:"healthy"`
	Unhealthy       int      `json:"unhealthy"`
	Unknown         int      `json:"unknown"`
	Inactive        int      `json:"inactive"`
	PollTargets     int      `json:"poll_targets"`
	PushTargets     int      `json:"push_targets"`
	OverdueNames    []string `json:"overdue_names"`
	HeartbeatsToday int      `json:"heartbeats_today"`
}

// Snapshot describes the running state of the monitor.
type Snapshot struct {
	Running       bool     `json:"running"`
	SweepInterval string   `json:"sweep_interval"`
	ScheduledJobs []string `json:"scheduled_jobs"`
	OverdueIDs    []string `json:"overdue_ids"`
}
