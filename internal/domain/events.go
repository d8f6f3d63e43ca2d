package domain

import "time"

type EventType string

const (
	EventStatusChanged  EventType = "status_changed"
	EventMetricsChanged EventType = "metrics_changed"
	EventStarted        EventType = "started"
	EventStopped        EventType = "stopped"
	EventLog            EventType = "log"
	EventPortDetected   EventType = "port_detected"
	EventStackChanged   EventType = "stack_changed"
)

// Event is what the registry publishes to listeners. Only the fields
// relevant to Type are populated.
type Event struct {
	Type    EventType `json:"type"`
	Server  string    `json:"server,omitempty"`
	Status  string    `json:"status,omitempty"`
	Port    int       `json:"port,omitempty"`
	Line    string    `json:"line,omitempty"`
	IsError bool      `json:"is_error,omitempty"`
	Metrics *Metrics  `json:"metrics,omitempty"`
	Time    time.Time `json:"time"`
}
