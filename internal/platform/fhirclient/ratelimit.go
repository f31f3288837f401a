package fhirclient

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// hourWindow returns the start of the current hour boundary in UTC, the
// point the counter resets to (spec §5: "reset on an hour boundary").
func hourWindow(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}

type tenantCounter struct {
	windowStart time.Time
	count       int
}

// RateLimiter tracks the per-tenant hourly FHIR call count. Distinct from
// internal/platform/middleware.RateLimit, which token-buckets *inbound*
// HTTP requests — this counter governs *outbound* calls to the EMR and
// resets on the hour rather than leaking tokens continuously, matching
// spec §4.2's "checks the hourly count against the tenant's limit."
type RateLimiter struct {
	mu       sync.Mutex
	counters map[uuid.UUID]*tenantCounter
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{counters: make(map[uuid.UUID]*tenantCounter)}
}

// current returns the counter for tenantID, resetting it if the hour
// boundary has rolled over since it was last touched. Caller must hold mu.
func (r *RateLimiter) current(tenantID uuid.UUID, now time.Time) *tenantCounter {
	c, ok := r.counters[tenantID]
	window := hourWindow(now)
	if !ok || c.windowStart.Before(window) {
		c = &tenantCounter{windowStart: window}
		r.counters[tenantID] = c
	}
	return c
}

// Remaining returns how many calls the tenant may still make this hour.
func (r *RateLimiter) Remaining(tenantID uuid.UUID, hourlyLimit int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.current(tenantID, time.Now())
	remaining := hourlyLimit - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reserve increments the tenant's hourly count by n and returns
// rate_limit_exceeded if doing so would exceed hourlyLimit. The call is
// rejected atomically: an over-quota Reserve does not consume budget.
func (r *RateLimiter) Reserve(tenantID uuid.UUID, hourlyLimit, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.current(tenantID, time.Now())
	if c.count+n > hourlyLimit {
		return corerr.New(corerr.KindRateLimitExceeded, "tenant hourly FHIR call limit reached")
	}
	c.count += n
	return nil
}

// WouldExceed reports whether reserving n additional calls would exceed
// hourlyLimit, without reserving anything — used at job-submission time
// (spec §4.5 "estimated FHIR call count ... would exceed the remaining
// hourly allowance").
func (r *RateLimiter) WouldExceed(tenantID uuid.UUID, hourlyLimit, n int) bool {
	return r.Remaining(tenantID, hourlyLimit) < n
}

// NextResetAt returns the next hour boundary, used to compute how long a
// rate_limit_exceeded backoff should sleep.
func NextResetAt(now time.Time) time.Time {
	return hourWindow(now).Add(time.Hour)
}
