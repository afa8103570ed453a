package monitor

import "time"

// Event topics published by the monitor module.
const (
	TopicTargetUnhealthy   = "monitor.target.unhealthy"
	TopicTargetOverdue     = "monitor.target.overdue"
	TopicTargetRecovered   = "monitor.target.recovered"
	TopicCheckCompleted    = "monitor.check.completed"
	TopicHeartbeatReceived = "monitor.heartbeat.received"
)

// TransitionEvent is the payload of the target transition topics.
type TransitionEvent struct {
	TargetID     string     `json:"target_id"`
	TargetKind   TargetKind `json:"target_kind"`
	Name         string     `json:"name"`
	Transition   Transition `json:"transition"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	At           time.Time  `json:"at"`
	Notified     int        `json:"notified"`
	Failed       int        `json:"failed"`
}

// HeartbeatReceivedEvent is the payload of TopicHeartbeatReceived.
type HeartbeatReceivedEvent struct {
	TargetID   string    `json:"target_id"`
	Name       string    `json:"name"`
	ReceivedAt time.Time `json:"received_at"`
}

func topicFor(tr Transition) string {
	switch tr {
	case TransitionBecameUnhealthy:
		return TopicTargetUnhealthy
	case TransitionBecameOverdue:
		return TopicTargetOverdue
	default:
		return TopicTargetRecovered
	}
}
