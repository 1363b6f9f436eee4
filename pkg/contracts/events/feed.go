// Package events defines the messages pushed to admin dashboards over the
// live log feed at /ws/logs.
package events

import (
	"time"
)

// MessageType defines the type of feed message
type MessageType string

const (
	// MessageTypeConnection is sent once to a client after it registers.
	MessageTypeConnection MessageType = "connection"
	// MessageTypeValidationLog carries a domain.ValidationLog.
	MessageTypeValidationLog MessageType = "validation_log"
	// MessageTypeBotLog carries a domain.BotLog.
	MessageTypeBotLog MessageType = "bot_log"
	// MessageTypeHeartbeat is the only message clients send.
	MessageTypeHeartbeat MessageType = "heartbeat"
)

// Message is the envelope of every feed message.
type Message struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// NewMessage wraps data with its type and an RFC 3339 UTC timestamp.
func NewMessage(t MessageType, data interface{}, now time.Time) Message {
	return Message{Type: t, Data: data, Timestamp: now.UTC().Format(time.RFC3339)}
}

// Connected is the payload of MessageTypeConnection.
type Connected struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
}
