package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/healthprep/healthprep/internal/platform/db"
	"github.com/healthprep/healthprep/internal/platform/phi"
)

// SystemTenantID is the sentinel tenant every audit entry is re-parented to
// when its owning tenant is deleted. Audit entries are never deleted along
// with a tenant — only reassigned.
var SystemTenantID = uuid.Nil

// Entry is a single append-only audit record. The audit trail is the one
// table in HealthPrep with no Update and no Delete repository method at all.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	UserID       *uuid.UUID     `json:"user_id"`
	EventType    string         `json:"event_type"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *uuid.UUID     `json:"resource_id"`
	Data         map[string]any `json:"data"`
	PatientHash  string         `json:"patient_hash,omitempty"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	SessionID    string         `json:"session_id"`
	Recorded     time.Time      `json:"recorded"`
}

// Event type constants named after what happened, not an HTTP verb — the
// screening engine, EMR sync pipeline, and job runtime each log their own
// kinds in addition to these common ones.
const (
	EventRead            = "read"
	EventCreate          = "create"
	EventUpdate          = "update"
	EventDelete          = "delete"
	EventScreeningRefresh = "screening_refresh"
	EventEMRSync         = "emr_sync"
	EventPrepSheetWrite  = "prepsheet_writeback"
	EventEpicDocumentWrite = "epic_document_write"
	EventSecurityAlert   = "security_alert"
	EventTenantDeleted   = "tenant_deleted"
)

// Writer appends Entry rows to the database and tees every entry to a
// local append-only log file, so an operator can recover the trail even if
// the database is unreachable.
type Writer struct {
	pool *pgxpool.Pool
	salt string

	mu      sync.Mutex
	logFile *os.File
}

// NewWriter creates a Writer. salt is mixed into every PHI hash so hashes
// cannot be reversed from a guessed patient name/DOB; logPath is opened in
// append mode and may be empty to disable file teeing (tests only).
func NewWriter(pool *pgxpool.Pool, salt, logPath string) (*Writer, error) {
	w := &Writer{pool: pool, salt: salt}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("audit: open log file %s: %w", logPath, err)
		}
		w.logFile = f
	}
	return w, nil
}

// HashIdentifier returns a salted SHA-256 hex digest of an identifying
// value (e.g. "lastname|dob"). The same input always hashes to the same
// value for a given salt, so two entries about the same patient can be
// correlated without storing the identifier itself.
func (w *Writer) HashIdentifier(value string) string {
	return phi.HashIdentifier(w.salt, value)
}

// Log writes one audit entry. It never returns an error that would let a
// caller silently skip auditing — if the database write fails, the caller
// is expected to fail the operation it was about to audit.
func (w *Writer) Log(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Recorded.IsZero() {
		e.Recorded = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("audit: marshal data: %w", err)
	}

	const query = `
		INSERT INTO audit_entry (
			id, tenant_id, user_id, event_type, resource_type, resource_id,
			data, patient_hash, ip_address, user_agent, session_id, recorded
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	args := []any{
		e.ID, e.TenantID, e.UserID, e.EventType, e.ResourceType, e.ResourceID,
		dataJSON, e.PatientHash, e.IPAddress, e.UserAgent, e.SessionID, e.Recorded,
	}

	q := db.Resolve(ctx, w.pool)
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}

	w.tee(ctx, e)
	return nil
}

// tee writes a best-effort JSON line to the local audit log file. Failures
// here are logged but never propagated — the database row is authoritative.
func (w *Writer) tee(ctx context.Context, e *Entry) {
	if w.logFile == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.logFile.Write(append(line, '\n')); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("audit: failed to tee entry to log file")
	}
}

// Close releases the underlying log file handle, if any.
func (w *Writer) Close() error {
	if w.logFile == nil {
		return nil
	}
	return w.logFile.Close()
}

// ReparentTenant reassigns every audit entry owned by tenantID to the system
// tenant instead of deleting them, preserving the trail across tenant
// offboarding.
func ReparentTenant(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) error {
	q := db.Resolve(ctx, pool)
	_, err := q.Exec(ctx, `UPDATE audit_entry SET tenant_id = $1 WHERE tenant_id = $2`, SystemTenantID, tenantID)
	if err != nil {
		return fmt.Errorf("audit: reparent tenant %s: %w", tenantID, err)
	}
	return nil
}
