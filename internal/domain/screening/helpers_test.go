package screening

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/patient"
)

func testPatient() *patient.Patient {
	dob := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return &patient.Patient{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		FirstName: "Jane",
		LastName:  "Doe",
		Sex:       "female",
		BirthDate: &dob,
	}
}
