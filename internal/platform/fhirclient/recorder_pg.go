package fhirclient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthprep/healthprep/internal/platform/db"
)

// PGRecorder persists FHIRApiCall rows to Postgres, giving the rate-limit
// correctness invariant (spec §8 item 8) a durable, queryable record
// independent of the in-memory RateLimiter counters.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) RecordCall(ctx context.Context, tenantID, providerID uuid.UUID, resourceType string, status int, durationMS int) error {
	const query = `
		INSERT INTO fhir_api_call (tenant_id, provider_id, resource_type, http_status, duration_ms)
		VALUES ($1,$2,$3,$4,$5)`
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, query, tenantID, providerID, resourceType, status, durationMS)
	return err
}
