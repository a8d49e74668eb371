package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleEntry is an auction that still needs a close task
type ScheduleEntry struct {
	AuctionID uuid.UUID
	EndTime   time.Time
}

// ScheduleStore is the durable index of pending close tasks, keyed by
// auction end time. It exists only for crash recovery; the decision of
// whether an auction still needs closing is derived from lifecycle
// state, not from this store.
type ScheduleStore interface {
	// Add records a pending close task for the auction
	Add(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error

	// Remove drops the task once the close completed (or was cancelled)
	Remove(ctx context.Context, auctionID uuid.UUID) error

	// Due returns auction IDs whose end time is at or before now
	Due(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}
