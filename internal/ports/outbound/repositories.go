package outbound

import (
	"context"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction record
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// ListByStatus retrieves all auctions in the given lifecycle state.
	// Used by the closing scheduler's recovery scan.
	ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error)

	// UpdateWithRevision persists the auction only if the stored revision
	// still equals expectedRevision, bumping it by one. Returns
	// shared.ErrBidConflict when another writer got there first.
	UpdateWithRevision(ctx context.Context, auction *auction.Auction, expectedRevision int64) error

	// IsApproved reports whether the admin approval gate allows the
	// auction to go active.
	IsApproved(ctx context.Context, id uuid.UUID) (bool, error)
}

// BidRepository defines the interface for bid ledger persistence
type BidRepository interface {
	// GetByAuctionID retrieves all bids for an auction, highest first
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// GetActiveBid retrieves the single active (current high) bid for an
	// auction, or shared.ErrNoBidsFound.
	GetActiveBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// CommitBid atomically records the accepted bid, demotes the previous
	// active bid to outbid, and advances the auction's current price, bid
	// count and revision. The revision guard makes the commit fail with
	// shared.ErrBidConflict if the auction row moved since expectedRevision.
	CommitBid(ctx context.Context, newBid *bid.Bid, auctionRow *auction.Auction, expectedRevision int64) error

	// MarkOutcome rewrites bid statuses exactly once at close: the winning
	// bid (if winnerBidID is non-nil) becomes won, every other bid lost.
	MarkOutcome(ctx context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error
}

// BidderDirectory resolves bidder identities to human-readable info.
// Backed by the collaborator user store; the engine only reads it.
type BidderDirectory interface {
	GetBidder(ctx context.Context, id uuid.UUID) (*shared.Bidder, error)
}

// NotificationRepository persists outcome notifications before delivery
type NotificationRepository interface {
	Create(ctx context.Context, n *shared.Notification) error
}
