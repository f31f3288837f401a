// Package job implements HealthPrep's durable async job queue: batch EMR
// syncs, prep sheet generation, and selective screening-type refreshes all
// run as AsyncJob rows processed by a worker pool.
package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBatchSync        Type = "batch_sync"
	TypePrepSheet         Type = "prep_sheet"
	TypeSelectiveRefresh  Type = "selective_refresh"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is a single unit of asynchronous work.
type Job struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	JobType         Type
	Priority        int
	Status          Status
	InputPayload    json.RawMessage
	ResultPayload   json.RawMessage
	ErrorMessage    string
	ProgressTotal   int
	ProgressDone    int
	CancelRequested bool
	RequestedBy     *uuid.UUID
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Terminal reports whether the job has reached a status the worker pool
// will never transition out of.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// BatchSyncInput is the InputPayload shape for a TypeBatchSync job.
type BatchSyncInput struct {
	ProviderID  uuid.UUID   `json:"provider_id"`
	PatientIDs  []uuid.UUID `json:"patient_ids,omitempty"`
}

// PrepSheetInput is the InputPayload shape for a TypePrepSheet job.
type PrepSheetInput struct {
	AppointmentIDs []uuid.UUID `json:"appointment_ids"`
	DryRun         bool        `json:"dry_run"`
}

// SelectiveRefreshInput is the InputPayload shape for a
// TypeSelectiveRefresh job.
type SelectiveRefreshInput struct {
	ScreeningTypeID uuid.UUID `json:"screening_type_id"`
	Force           bool      `json:"force"`
}
