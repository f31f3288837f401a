// Package appointment models scheduled patient visits and their linkage
// to generated prep sheets.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment is a scheduled visit, either synced from the EHR or entered
// manually.
type Appointment struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	PatientID         uuid.UUID
	ProviderID        *uuid.UUID
	EpicAppointmentID string
	ScheduledAt       time.Time
	Status            Status
	PrepSheetID       *uuid.UUID
	CreatedAt         time.Time
}
