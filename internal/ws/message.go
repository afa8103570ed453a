package ws

import (
	"time"

	"github.com/HerbHall/vigil/internal/monitor"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageTargetUnhealthy MessageType = "target.unhealthy"
	MessageTargetOverdue   MessageType = "target.overdue"
	MessageTargetRecovered MessageType = "target.recovered"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	TargetID  string      `json:"target_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// topicTypes maps monitor event topics to stream message types.
var topicTypes = map[string]MessageType{
	monitor.TopicTargetUnhealthy: MessageTargetUnhealthy,
	monitor.TopicTargetOverdue:   MessageTargetOverdue,
	monitor.TopicTargetRecovered: MessageTargetRecovered,
}
