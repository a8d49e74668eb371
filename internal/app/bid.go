package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/inbound"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService is the bid ledger orchestration: it owns the
// read-validate-commit sequence for bid submissions. The per-auction
// lock makes that sequence a critical section, and the repository's
// revision-guarded commit re-validates against just-committed state, so
// two racing submissions can never both become the high bid.
type BidService struct {
	bidRepo     outbound.BidRepository
	auctionRepo outbound.AuctionRepository
	bidders     outbound.BidderDirectory
	broadcaster outbound.Broadcaster
	notifier    outbound.Notifier
	locks       *AuctionLocks
	logger      zerolog.Logger
}

// BidServiceParams bundles the bid service dependencies
type BidServiceParams struct {
	BidRepo     outbound.BidRepository
	AuctionRepo outbound.AuctionRepository
	Bidders     outbound.BidderDirectory
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Locks       *AuctionLocks
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		bidRepo:     params.BidRepo,
		auctionRepo: params.AuctionRepo,
		bidders:     params.Bidders,
		broadcaster: params.Broadcaster,
		notifier:    params.Notifier,
		locks:       params.Locks,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// SubmitBid validates and commits a bid against the ledger
func (s *BidService) SubmitBid(ctx context.Context, req inbound.SubmitBidRequest) (*inbound.SubmitBidResult, error) {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	bidder, err := s.bidders.GetBidder(ctx, req.BidderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("bidder_id", req.BidderID.String()).Msg("Bidder not found")
		return nil, err
	}

	// Everything from the state read to the commit happens inside the
	// per-auction critical section. Other auctions are untouched.
	lock := s.locks.For(req.AuctionID)
	lock.Lock()
	defer lock.Unlock()

	a, err := s.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	highBid, err := s.bidRepo.GetActiveBid(ctx, req.AuctionID)
	if err != nil && !errors.Is(err, shared.ErrNoBidsFound) {
		return nil, fmt.Errorf("failed to read current high bid: %w", err)
	}

	now := time.Now()
	newBid := &bid.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		BidderID:    bidder.ID,
		BidderName:  bidder.Name,
		BidderEmail: bidder.Email,
		Amount:      req.Amount,
		Status:      bid.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := bid.Validate(a, highBid, newBid, now); err != nil {
		s.logger.Warn().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Float64("amount", req.Amount).
			Float64("minimum", a.MinimumBid()).
			Msg("Bid rejected")
		return nil, err
	}

	if err := s.bidRepo.CommitBid(ctx, newBid, a, a.Revision); err != nil {
		s.logger.Warn().Err(err).Str("bid_id", newBid.ID.String()).Msg("Bid commit failed")
		return nil, err
	}

	// Broadcast from the committed state, never the caller's stale view
	event := outbound.Event{
		Type:      outbound.EventTypeBidAccepted,
		AuctionID: a.ID,
		Snapshot:  snapshotOf(a),
		Timestamp: now.Unix(),
	}
	if err := s.broadcaster.Publish(ctx, a.ID, event); err != nil {
		s.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to broadcast bid event")
	}

	s.notifyOutbid(ctx, a.Title, highBid, newBid)

	s.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", a.ID.String()).
		Float64("amount", newBid.Amount).
		Int("total_bids", a.BidCount).
		Msg("Bid placed successfully")

	return &inbound.SubmitBidResult{
		Bid:            newBid,
		CurrentHighBid: a.CurrentPrice,
		TotalBids:      a.BidCount,
	}, nil
}

// GetBids retrieves the bid history for an auction
func (s *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return s.bidRepo.GetByAuctionID(ctx, auctionID)
}

// notifyOutbid tells the demoted high bidder they lost the lead. A
// bidder raising their own bid gets no notification.
func (s *BidService) notifyOutbid(ctx context.Context, title string, previous *bid.Bid, current *bid.Bid) {
	if s.notifier == nil || previous == nil || previous.BidderID == current.BidderID {
		return
	}

	n := shared.Notification{
		ID:          uuid.New(),
		RecipientID: previous.BidderID,
		AuctionID:   current.AuctionID,
		Type:        shared.NotificationTypeOutbid,
		Title:       "You've been outbid",
		Body:        fmt.Sprintf("%s outbid you with $%.2f on auction %s", current.BidderName, current.Amount, title),
		CreatedAt:   time.Now(),
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("auction_id", current.AuctionID.String()).Msg("Failed to dispatch outbid notification")
	}
}
