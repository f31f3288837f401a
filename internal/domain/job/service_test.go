package job

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/fhirclient"
)

func TestEnqueueBatchSync_TooLargeRejectedBeforeEnqueue(t *testing.T) {
	svc := NewService(NewQueue(nil), fhirclient.NewRateLimiter())

	patientIDs := make([]uuid.UUID, MaxBatchSyncPatients+1)
	for i := range patientIDs {
		patientIDs[i] = uuid.New()
	}

	_, err := svc.EnqueueBatchSync(context.Background(), uuid.New(), uuid.New(), patientIDs, 1000, nil)
	if !corerr.Is(err, corerr.KindBatchTooLarge) {
		t.Errorf("expected KindBatchTooLarge, got %v", err)
	}
}

// S4: a batch whose estimated FHIR call volume would exceed the tenant's
// remaining hourly budget is rejected with no job row created.
func TestScenario_S4_RateLimitWouldExceed_NoJobCreated(t *testing.T) {
	limiter := fhirclient.NewRateLimiter()
	tenantID := uuid.New()
	hourlyLimit := 100

	// Consume almost the whole budget so any nontrivial batch would exceed it.
	if err := limiter.Reserve(tenantID, hourlyLimit, 95); err != nil {
		t.Fatalf("unexpected error pre-consuming budget: %v", err)
	}

	svc := NewService(NewQueue(nil), limiter)

	patientIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()} // 5 calls/patient = 15 estimated

	j, err := svc.EnqueueBatchSync(context.Background(), tenantID, uuid.New(), patientIDs, hourlyLimit, nil)
	if !corerr.Is(err, corerr.KindRateLimitWouldExceed) {
		t.Errorf("expected KindRateLimitWouldExceed, got %v", err)
	}
	if j != nil {
		t.Error("expected no job to be returned when the batch would exceed the rate limit")
	}
}
