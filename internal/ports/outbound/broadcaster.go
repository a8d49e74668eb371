package outbound

import (
	"context"

	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeBidAccepted   EventType = "bid.accepted"
	EventTypeAuctionClosed EventType = "auction.closed"
)

// Event is the value fanned out to every watcher of an auction topic.
// For a single auction, events are published in commit order; delivery
// is best-effort and late joiners fetch the snapshot instead.
type Event struct {
	Type      EventType       `json:"type"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Snapshot  shared.Snapshot `json:"snapshot"`
	Winner    *shared.Bidder  `json:"winner,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Broadcaster defines the interface for per-auction event fan-out.
// Implementations must not leak events across auction topics.
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific auction.
	// When a client subscribes to multiple auctions, all events are
	// delivered to the same channel.
	Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific auction
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error

	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error

	// IsSubscribed checks if a client is subscribed to an auction
	IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool
}
