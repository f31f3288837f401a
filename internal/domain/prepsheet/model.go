// Package prepsheet compiles a per-patient summary of outstanding
// screenings and recent clinical activity, renders it, and writes it back
// to the EMR as a DocumentReference.
package prepsheet

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Per-category document recency windows. They are fixed constants applied
// to every tenant; there is no per-organization override.
const (
	WindowLabs     = 12 * 30 * 24 * time.Hour
	WindowImaging  = 24 * 30 * 24 * time.Hour
	WindowConsults = 12 * 30 * 24 * time.Hour
	WindowHospital = 24 * 30 * 24 * time.Hour
)

// WriteBackLOINCCode is the fixed code used for every prep sheet posted
// back to the EMR as a DocumentReference.
const WriteBackLOINCCode = "11506-3"

// ScreeningLine is one screening's row in the compiled prep sheet.
type ScreeningLine struct {
	ScreeningTypeName string
	Status            string
	LastCompletedDate *time.Time
	NextDueDate       *time.Time
}

// DocumentLine is one recent document's row, grouped under a category.
type DocumentLine struct {
	Category string
	Title    string
	Date     *time.Time
}

// AppointmentLine is one upcoming appointment's row.
type AppointmentLine struct {
	ScheduledAt time.Time
	Status      string
}

// PrepSheet is the compiled aggregate for one patient, before and after
// rendering.
type PrepSheet struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PatientID     uuid.UUID
	AppointmentID *uuid.UUID
	GeneratedAt   time.Time

	// Demographics, safe fields only — no free-text EMR data.
	PatientFirstName string
	PatientLastName  string
	PatientSex       string
	PatientBirthDate *time.Time

	Screenings   []ScreeningLine
	Documents    []DocumentLine
	Appointments []AppointmentLine

	HTML                    string
	PDF                     []byte
	DryRun                  bool
	EpicDocumentReferenceID string
}

// SafeTitle returns the write-back title: the generation date plus a
// compact count of due, overdue and complete screenings. It never includes patient
// name or free text — spec §4.6's safe-title discipline.
func (p *PrepSheet) SafeTitle() string {
	due, complete, overdue := 0, 0, 0
	for _, s := range p.Screenings {
		switch s.Status {
		case "due":
			due++
		case "complete":
			complete++
		case "overdue":
			overdue++
		}
	}
	return p.GeneratedAt.UTC().Format("2006-01-02") +
		" prep sheet: " + strconv.Itoa(due) + " due, " + strconv.Itoa(overdue) + " overdue, " + strconv.Itoa(complete) + " complete"
}
