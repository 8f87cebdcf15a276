package events

// EventType defines the type of event
type EventType string

const (
	// Run lifecycle events
	EventTypeIngestionCompleted EventType = "ingestion.completed"
	EventTypeIngestionFailed    EventType = "ingestion.failed"
)
