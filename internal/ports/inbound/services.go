package inbound

import (
	"context"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionService defines the auction lifecycle use cases
type AuctionService interface {
	// CreateAuction records a new auction in pending state
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// ActivateAuction moves an approved pending auction to active and
	// registers its close schedule. Queued via the scheduler when the
	// start time is still in the future.
	ActivateAuction(ctx context.Context, auctionID uuid.UUID) error

	// CancelAuction moves a pending or active auction to cancelled
	CancelAuction(ctx context.Context, auctionID uuid.UUID) error

	// CloseAuction resolves the auction outcome at or after its deadline.
	// Idempotent: closing an already-ended auction returns the previous
	// outcome without re-picking a winner.
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Outcome, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// GetSnapshot derives the current broadcastable view of an auction
	GetSnapshot(ctx context.Context, auctionID uuid.UUID) (*shared.Snapshot, error)
}

// BidService defines the bid submission use cases
type BidService interface {
	// SubmitBid validates and commits a bid against the ledger. The
	// returned result carries the authoritative post-commit high bid and
	// bid count.
	SubmitBid(ctx context.Context, req SubmitBidRequest) (*SubmitBidResult, error)

	// GetBids retrieves the bid history for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// CreateAuctionRequest carries the fields needed to open an auction
type CreateAuctionRequest struct {
	SellerID      uuid.UUID `json:"seller_id"`
	Title         string    `json:"title"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	StartingPrice float64   `json:"starting_price"`
	ReservePrice  *float64  `json:"reserve_price,omitempty"`
	BidIncrement  float64   `json:"bid_increment"`
	TotalQuantity int       `json:"total_quantity"`
}

// SubmitBidRequest carries a candidate bid
type SubmitBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
}

// SubmitBidResult is the synchronous answer to a bid submission
type SubmitBidResult struct {
	Bid            *bid.Bid `json:"bid"`
	CurrentHighBid float64  `json:"current_high_bid"`
	TotalBids      int      `json:"total_bids"`
}
