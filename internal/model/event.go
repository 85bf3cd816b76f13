// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventJobCaptured    EventType = "JOB_CAPTURED"
	EventJobImported    EventType = "JOB_IMPORTED"
	EventJobIgnored     EventType = "JOB_IGNORED"
	EventJobDeleted     EventType = "JOB_DELETED"
	EventJobsCleared    EventType = "JOBS_CLEARED"
	EventJobsPruned     EventType = "JOBS_PRUNED"
	EventJobsReparsed   EventType = "JOBS_REPARSED"
	EventCaptureStarted EventType = "CAPTURE_STARTED"
	EventCaptureStopped EventType = "CAPTURE_STOPPED"
)

// JobEvent represents an event in the system
type JobEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Severity  string     `json:"severity"` // INFO, WARNING, ERROR
}

// NewJobEvent builds an INFO event stamped with the current time.
func NewJobEvent(eventType EventType, jobID *uuid.UUID, data JSONObject) JobEvent {
	return JobEvent{
		ID:        uuid.New(),
		EventType: eventType,
		JobID:     jobID,
		Data:      data,
		Timestamp: time.Now(),
		Source:    "escpos-service",
		Severity:  "INFO",
	}
}
