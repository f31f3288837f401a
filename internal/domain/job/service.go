package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/fhirclient"
)

// MaxBatchSyncPatients is the largest patient set a single batch_sync job
// may enqueue in one request (spec §4.5's batch size cap).
const MaxBatchSyncPatients = 5000

// Service composes the Queue with the back-pressure checks the API layer
// needs before admitting a new job: a batch too large to process, or a
// batch that would exceed the tenant's hourly FHIR call budget.
type Service struct {
	queue   *Queue
	limiter *fhirclient.RateLimiter
}

func NewService(queue *Queue, limiter *fhirclient.RateLimiter) *Service {
	return &Service{queue: queue, limiter: limiter}
}

// EnqueueBatchSync admits a batch_sync job after checking its size and
// projected FHIR call volume against the tenant's hourly limit. No job row
// is created if either check fails — the caller sees the rejection
// immediately rather than a job that fails later.
func (s *Service) EnqueueBatchSync(ctx context.Context, tenantID, providerID uuid.UUID, patientIDs []uuid.UUID, hourlyLimit int, requestedBy *uuid.UUID) (*Job, error) {
	if len(patientIDs) > MaxBatchSyncPatients {
		return nil, corerr.New(corerr.KindBatchTooLarge, fmt.Sprintf("batch of %d patients exceeds the %d limit", len(patientIDs), MaxBatchSyncPatients))
	}

	estimated := fhirclient.EstimatedCallCount(len(patientIDs))
	if s.limiter.WouldExceed(tenantID, hourlyLimit, estimated) {
		return nil, corerr.New(corerr.KindRateLimitWouldExceed, fmt.Sprintf("estimated %d FHIR calls would exceed the hourly limit of %d", estimated, hourlyLimit))
	}

	input, _ := json.Marshal(BatchSyncInput{ProviderID: providerID, PatientIDs: patientIDs})
	j := &Job{
		TenantID:      tenantID,
		JobType:       TypeBatchSync,
		Priority:      0,
		InputPayload:  input,
		ProgressTotal: len(patientIDs),
		RequestedBy:   requestedBy,
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// EnqueuePrepSheets admits a prep_sheet job for a set of appointments.
func (s *Service) EnqueuePrepSheets(ctx context.Context, tenantID uuid.UUID, appointmentIDs []uuid.UUID, dryRun bool, requestedBy *uuid.UUID) (*Job, error) {
	input, _ := json.Marshal(PrepSheetInput{AppointmentIDs: appointmentIDs, DryRun: dryRun})
	j := &Job{
		TenantID:      tenantID,
		JobType:       TypePrepSheet,
		Priority:      10, // prep sheets are time-sensitive relative to batch syncs
		InputPayload:  input,
		ProgressTotal: len(appointmentIDs),
		RequestedBy:   requestedBy,
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// EnqueueSelectiveRefresh admits a selective_refresh job for a screening
// type edit.
func (s *Service) EnqueueSelectiveRefresh(ctx context.Context, tenantID, screeningTypeID uuid.UUID, force bool, requestedBy *uuid.UUID) (*Job, error) {
	input, _ := json.Marshal(SelectiveRefreshInput{ScreeningTypeID: screeningTypeID, Force: force})
	j := &Job{
		TenantID:     tenantID,
		JobType:      TypeSelectiveRefresh,
		Priority:     5,
		InputPayload: input,
		RequestedBy:  requestedBy,
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) GetJob(ctx context.Context, tenantID, id uuid.UUID) (*Job, error) {
	return s.queue.GetByID(ctx, tenantID, id)
}

func (s *Service) CancelJob(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.queue.RequestCancel(ctx, tenantID, id)
}
