// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceType represents where a job came from
type SourceType string

const (
	SourceTypeTCP    SourceType = "TCP"
	SourceTypeSerial SourceType = "SERIAL"
	SourceTypeImport SourceType = "IMPORT"
)

// JobStatus represents the decode status of a job
type JobStatus string

const (
	JobStatusDecoded JobStatus = "DECODED"
	JobStatusEmpty   JobStatus = "EMPTY"
)

// PrintJob represents one captured or imported ESC/POS job
type PrintJob struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Label        string     `json:"label" db:"label"`
	Source       string     `json:"source" db:"source"`
	SourceType   SourceType `json:"source_type" db:"source_type"`
	Payload      []byte     `json:"-" db:"payload"`
	SizeBytes    int        `json:"size_bytes" db:"size_bytes"`
	CodePage     string     `json:"code_page" db:"code_page"`
	CommandCount int        `json:"command_count" db:"command_count"`
	Status       JobStatus  `json:"status" db:"status"`
	Metadata     JSONObject `json:"metadata,omitempty" db:"metadata"`
	ReceivedAt   time.Time  `json:"received_at" db:"received_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Age returns how long ago the job was received.
func (j *PrintJob) Age(now time.Time) time.Duration {
	return now.Sub(j.ReceivedAt)
}

// JobFilter narrows job listings
type JobFilter struct {
	SourceType *SourceType
	Since      *time.Time
	Limit      int
	Offset     int
}
