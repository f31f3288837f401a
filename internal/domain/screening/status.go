package screening

import (
	"time"

	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

// dueSoonWindowDays is the fixed pre-due window from spec §4.1.2 that
// splits `complete` from `due_soon`. Unlike overdueThresholdDays (a
// tenant-configurable grace period past next_due), this window is not
// configurable.
const dueSoonWindowDays = 30

// DeriveStatus computes a screening's Status and next-due date from the
// most recent completion date known for it. A nil lastCompleted means no
// qualifying evidence has ever been found, which is always "due" rather
// than "overdue" — HealthPrep has no baseline to measure lateness against
// until it has seen one completion.
func DeriveStatus(st *screeningtype.ScreeningType, lastCompleted *time.Time, overdueThresholdDays int, now time.Time) (Status, *time.Time) {
	if lastCompleted == nil {
		return StatusDue, nil
	}

	nextDue := st.AddInterval(*lastCompleted)
	dueSoonFrom := nextDue.AddDate(0, 0, -dueSoonWindowDays)

	if now.Before(dueSoonFrom) {
		return StatusComplete, &nextDue
	}
	if now.Before(nextDue) {
		return StatusDueSoon, &nextDue
	}

	overdueBy := now.Sub(nextDue)
	if overdueThresholdDays > 0 && overdueBy > time.Duration(overdueThresholdDays)*24*time.Hour {
		return StatusOverdue, &nextDue
	}
	return StatusDue, &nextDue
}

// rank orders Status by "how satisfied is the patient's screening need",
// least to most — used only to express the monotonicity invariant in
// tests; the engine itself never needs to compare statuses this way.
func rank(s Status) int {
	switch s {
	case StatusOverdue:
		return 0
	case StatusDue:
		return 1
	case StatusDueSoon:
		return 2
	case StatusComplete:
		return 3
	default:
		return -1
	}
}
