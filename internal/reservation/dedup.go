package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

// DedupGuard records which trigger deliveries have already been handled.
// Entries live at events/{eventId} and expire after ttl (0 keeps them
// forever); redeliveries are only expected within a short window.
type DedupGuard struct {
	store store.Store
	ttl   time.Duration
}

// NewDedupGuard returns a guard writing to st.
func NewDedupGuard(st store.Store, ttl time.Duration) *DedupGuard {
	return &DedupGuard{store: st, ttl: ttl}
}

// MarkSeen atomically records eventID and reports whether this is the first
// time it has been seen.  Callers must do nothing else when it returns false.
func (g *DedupGuard) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	isNew, err := g.store.Create(ctx, EventPath(trigger.SanitizeID(eventID)), true, g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return isNew, nil
}
