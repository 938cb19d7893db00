// Package sse streams watch monitor updates to HTTP clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/dirwatch/internal/monitor"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventBatch carries the rows added by one batch.
	EventBatch EventType = "watch.batch"
	// EventStatus reports a change of listening state or error label.
	EventStatus EventType = "watch.status"
	// EventCleared reports that rows and counter were reset.
	EventCleared EventType = "watch.cleared"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is sent once when a client connects.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// BatchEventData is the data payload for batch events.
type BatchEventData struct {
	Rows   []monitor.Row  `json:"rows"`
	Status monitor.Status `json:"status"`
}

// StatusEventData is the data payload for status and cleared events.
type StatusEventData struct {
	Status monitor.Status `json:"status"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// ConnectedEventData is the data payload sent when a client connects.
// Status lets a client render the current state before the first update arrives.
type ConnectedEventData struct {
	ClientID string         `json:"client_id"`
	Status   monitor.Status `json:"status"`
}

// NewUpdateEvent converts a monitor update to an event.
func NewUpdateEvent(u monitor.Update) Event {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	switch u.Type {
	case monitor.UpdateBatch:
		return Event{Type: EventBatch, Timestamp: ts, Data: BatchEventData{Rows: u.Rows, Status: u.Status}}
	case monitor.UpdateCleared:
		return Event{Type: EventCleared, Timestamp: ts, Data: StatusEventData{Status: u.Status}}
	default:
		return Event{Type: EventStatus, Timestamp: ts, Data: StatusEventData{Status: u.Status}}
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
