// Package alert delivers security notifications (account_lockout,
// brute_force_detected, phi_filter_failed) to tenant admins. The shipped
// Notifier logs the event; webhook/email delivery is the excluded
// external collaborator (spec §1) and is left as an interface seam.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType names a security alert condition.
type EventType string

const (
	EventAccountLockout    EventType = "account_lockout"
	EventBruteForceDetected EventType = "brute_force_detected"
	EventPHIFilterFailed   EventType = "phi_filter_failed"
)

// Event is a single security alert occurrence.
type Event struct {
	Type      EventType
	TenantID  uuid.UUID
	Detail    string
	Occurred  time.Time
}

// Notifier delivers security alerts out-of-band to tenant admins.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// dedupeWindow bounds how often the same (tenant, event type) pair is
// delivered; repeated triggers within the window are suppressed.
const dedupeWindow = 15 * time.Minute

// LogNotifier is a Notifier that writes alerts to a zerolog logger, with
// rate-limited deduplication per (tenant, event type) as required by
// spec §7.
type LogNotifier struct {
	logger zerolog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewLogNotifier creates a LogNotifier writing through logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger, lastSent: make(map[string]time.Time)}
}

// Notify logs e unless an alert of the same (tenant, type) was already
// delivered within dedupeWindow.
func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	key := e.TenantID.String() + "|" + string(e.Type)

	n.mu.Lock()
	last, seen := n.lastSent[key]
	suppressed := seen && time.Since(last) < dedupeWindow
	if !suppressed {
		n.lastSent[key] = time.Now()
	}
	n.mu.Unlock()

	if suppressed {
		return nil
	}

	n.logger.Warn().
		Str("event_type", string(e.Type)).
		Str("tenant_id", e.TenantID.String()).
		Str("detail", e.Detail).
		Msg("security alert")
	return nil
}

// BruteForceThreshold is the failed-login count from a single IP within
// BruteForceWindow that triggers EventBruteForceDetected.
const (
	BruteForceThreshold = 10
	BruteForceWindow    = 5 * time.Minute
)
