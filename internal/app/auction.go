package app

import (
	"context"
	"fmt"
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/inbound"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CloseScheduler is the slice of the closing scheduler the lifecycle
// manager drives. Wired after construction because the scheduler needs
// this service as its close target.
type CloseScheduler interface {
	Schedule(auctionID uuid.UUID, endTime time.Time) error
	ScheduleStart(auctionID uuid.UUID, startTime time.Time)
	Cancel(auctionID uuid.UUID)
}

// AuctionService owns the auction lifecycle state machine and the
// outcome resolution at close. All state transitions for one auction go
// through the same critical section as its bids.
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	broadcaster outbound.Broadcaster
	notifier    outbound.Notifier
	scheduler   CloseScheduler
	locks       *AuctionLocks
	logger      zerolog.Logger
}

// AuctionServiceParams bundles the auction service dependencies
type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Locks       *AuctionLocks
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		broadcaster: params.Broadcaster,
		notifier:    params.Notifier,
		locks:       params.Locks,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// SetScheduler wires the closing scheduler after construction
func (s *AuctionService) SetScheduler(sched CloseScheduler) {
	s.scheduler = sched
}

// CreateAuction records a new auction in pending state, awaiting the
// admin approval gate.
func (s *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, shared.ErrInvalidTimeFormat
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return nil, shared.ErrInvalidTimeFormat
	}

	now := time.Now()
	if endTime.Before(startTime) {
		return nil, shared.ErrInvalidEndTime
	}
	if endTime.Before(now) {
		return nil, shared.ErrInvalidEndTime
	}
	if req.StartingPrice <= 0 {
		return nil, shared.ErrInvalidStartingPrice
	}
	if req.BidIncrement <= 0 {
		return nil, shared.ErrInvalidBidIncrement
	}

	quantity := req.TotalQuantity
	if quantity <= 0 {
		quantity = 1
	}

	a := &auction.Auction{
		ID:                uuid.New(),
		SellerID:          req.SellerID,
		Title:             req.Title,
		StartTime:         startTime,
		EndTime:           endTime,
		StartingPrice:     req.StartingPrice,
		ReservePrice:      req.ReservePrice,
		BidIncrement:      req.BidIncrement,
		CurrentPrice:      req.StartingPrice,
		Status:            auction.StatusPending,
		TotalQuantity:     quantity,
		RemainingQuantity: quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.auctionRepo.Create(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	s.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("seller_id", a.SellerID.String()).
		Time("end_time", a.EndTime).
		Float64("starting_price", a.StartingPrice).
		Msg("Auction created")

	return a, nil
}

// ActivateAuction moves an approved pending auction to active and
// registers its close schedule. When the start time is still ahead the
// activation itself is queued on the scheduler instead.
func (s *AuctionService) ActivateAuction(ctx context.Context, auctionID uuid.UUID) error {
	approved, err := s.auctionRepo.IsApproved(ctx, auctionID)
	if err != nil {
		return err
	}
	if !approved {
		return shared.ErrAuctionNotApproved
	}

	lock := s.locks.For(auctionID)
	lock.Lock()
	defer lock.Unlock()

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}

	if a.Status == auction.StatusPending && !a.HasStarted() {
		if s.scheduler != nil {
			s.scheduler.ScheduleStart(auctionID, a.StartTime)
		}
		return nil
	}

	expectedRevision := a.Revision
	if !a.Transition(auction.StatusActive) {
		if a.IsTerminal() {
			return nil
		}
		return shared.ErrIllegalTransition
	}

	if err := s.auctionRepo.UpdateWithRevision(ctx, a, expectedRevision); err != nil {
		return err
	}

	if s.scheduler != nil {
		if err := s.scheduler.Schedule(a.ID, a.EndTime); err != nil {
			// The recovery scan picks the auction up on next start
			s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to schedule auction close")
		}
	}

	s.logger.Info().Str("auction_id", a.ID.String()).Time("end_time", a.EndTime).Msg("Auction activated")
	return nil
}

// CancelAuction moves a pending or active auction to cancelled. The
// validator observes the new state on the very next bid attempt; the
// pending close timer becomes a no-op and is proactively deregistered.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID uuid.UUID) error {
	lock := s.locks.For(auctionID)
	lock.Lock()
	defer lock.Unlock()

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}

	expectedRevision := a.Revision
	if !a.Transition(auction.StatusCancelled) {
		if a.Status == auction.StatusCancelled {
			return nil
		}
		return shared.ErrIllegalTransition
	}

	if err := s.auctionRepo.UpdateWithRevision(ctx, a, expectedRevision); err != nil {
		return err
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(auctionID)
	}

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction cancelled")
	return nil
}

/*
CloseAuction resolves the auction outcome. Exactly-once effective:

  - An already-ended auction whose bids carry terminal statuses
    short-circuits to the previously resolved outcome, rebuilt from
    those statuses; the winner is never re-picked.
  - An ended auction whose bids are NOT yet terminal is a close that
    failed between persisting the ended state and marking the ledger;
    the retry resumes the resolution from the same final state.
  - A cancelled auction absorbs the close as a no-op.
  - Otherwise the auction transitions to ended, the ledger's final high
    bid decides the winner (subject to the reserve), every bid receives
    its terminal status in one transaction, and the final snapshot plus
    winner goes to the broadcaster and the notification dispatcher.

Any failure between the steps is retriable from the top without
double-counting.
*/
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Outcome, error) {
	lock := s.locks.For(auctionID)
	lock.Lock()
	defer lock.Unlock()

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if a.Status == auction.StatusCancelled {
		s.logger.Info().Str("auction_id", auctionID.String()).Msg("Close fired for cancelled auction, ignoring")
		return nil, nil
	}

	bids, err := s.bidRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if a.Status == auction.StatusEnded {
		if bidsMarked(bids) {
			s.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction already ended, returning previous outcome")
			return s.rebuildOutcome(a, bids), nil
		}

		// Ended but unmarked ledger: an earlier close stopped partway.
		// The final price and reserve are frozen, so re-resolving picks
		// the same winner.
		s.logger.Warn().Str("auction_id", auctionID.String()).Msg("Resuming interrupted auction close")
		outcome := s.resolveOutcome(a, bids)
		if err := s.finalizeClose(ctx, a, bids, outcome); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	outcome := s.resolveOutcome(a, bids)

	expectedRevision := a.Revision
	if !a.Transition(auction.StatusEnded) {
		return nil, shared.ErrIllegalTransition
	}
	if outcome.Sold() {
		a.RemainingQuantity = 0
	}

	if err := s.auctionRepo.UpdateWithRevision(ctx, a, expectedRevision); err != nil {
		return nil, fmt.Errorf("failed to persist auction close: %w", err)
	}

	if err := s.finalizeClose(ctx, a, bids, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// finalizeClose marks the ledger and fans the resolution out. Split from
// the state transition so an interrupted close can resume here.
func (s *AuctionService) finalizeClose(ctx context.Context, a *auction.Auction, bids []*bid.Bid, outcome *shared.Outcome) error {
	var winnerBidID *uuid.UUID
	if outcome.Sold() {
		id := highestBid(bids).ID
		winnerBidID = &id
	}
	if len(bids) > 0 {
		if err := s.bidRepo.MarkOutcome(ctx, a.ID, winnerBidID); err != nil {
			return fmt.Errorf("failed to mark bid outcomes: %w", err)
		}
	}

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: a.ID,
		Snapshot:  snapshotOf(a),
		Winner:    outcome.Winner,
		Timestamp: outcome.ClosedAt.Unix(),
	}
	if err := s.broadcaster.Publish(ctx, a.ID, event); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to broadcast close event")
	}

	s.notifyOutcome(ctx, a, bids, outcome)

	logEvent := s.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("result", string(outcome.Result))
	if outcome.Winner != nil {
		logEvent = logEvent.
			Str("winner_id", outcome.Winner.ID.String()).
			Float64("final_price", outcome.FinalPrice)
	}
	logEvent.Msg("Auction closed")

	return nil
}

// bidsMarked reports whether every bid already carries its terminal
// close status. False means a prior close never finished marking.
func bidsMarked(bids []*bid.Bid) bool {
	for _, b := range bids {
		if !b.IsTerminal() {
			return false
		}
	}
	return true
}

// GetAuction retrieves an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// GetSnapshot derives the current broadcastable view of an auction.
// Late joiners and reconnecting clients use this instead of replay.
func (s *AuctionService) GetSnapshot(ctx context.Context, auctionID uuid.UUID) (*shared.Snapshot, error) {
	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	snapshot := snapshotOf(a)
	return &snapshot, nil
}

// ListActiveSchedules feeds the scheduler's recovery scan from
// lifecycle state.
func (s *AuctionService) ListActiveSchedules(ctx context.Context) ([]outbound.ScheduleEntry, error) {
	auctions, err := s.auctionRepo.ListByStatus(ctx, auction.StatusActive)
	if err != nil {
		return nil, err
	}

	entries := make([]outbound.ScheduleEntry, 0, len(auctions))
	for _, a := range auctions {
		entries = append(entries, outbound.ScheduleEntry{AuctionID: a.ID, EndTime: a.EndTime})
	}
	return entries, nil
}

// resolveOutcome picks the winner from the final ledger state
func (s *AuctionService) resolveOutcome(a *auction.Auction, bids []*bid.Bid) *shared.Outcome {
	outcome := &shared.Outcome{
		AuctionID:  a.ID,
		FinalPrice: a.CurrentPrice,
		ClosedAt:   time.Now(),
	}

	if len(bids) == 0 {
		outcome.Result = shared.OutcomeNoSale
		return outcome
	}
	if !a.ReserveMet() {
		outcome.Result = shared.OutcomeReserveNotMet
		return outcome
	}

	high := highestBid(bids)
	outcome.Result = shared.OutcomeSold
	outcome.Winner = &shared.Bidder{
		ID:    high.BidderID,
		Name:  high.BidderName,
		Email: high.BidderEmail,
	}
	return outcome
}

// rebuildOutcome reconstructs a prior resolution from terminal bid
// statuses, for duplicate close deliveries.
func (s *AuctionService) rebuildOutcome(a *auction.Auction, bids []*bid.Bid) *shared.Outcome {
	outcome := &shared.Outcome{
		AuctionID:  a.ID,
		FinalPrice: a.CurrentPrice,
		ClosedAt:   a.UpdatedAt,
	}

	if len(bids) == 0 {
		outcome.Result = shared.OutcomeNoSale
		return outcome
	}

	for _, b := range bids {
		if b.Status == bid.StatusWon {
			outcome.Result = shared.OutcomeSold
			outcome.Winner = &shared.Bidder{
				ID:    b.BidderID,
				Name:  b.BidderName,
				Email: b.BidderEmail,
			}
			return outcome
		}
	}

	outcome.Result = shared.OutcomeReserveNotMet
	return outcome
}

// notifyOutcome fans the resolution out to the seller and every bidder
func (s *AuctionService) notifyOutcome(ctx context.Context, a *auction.Auction, bids []*bid.Bid, outcome *shared.Outcome) {
	if s.notifier == nil {
		return
	}

	dispatch := func(n shared.Notification) {
		if err := s.notifier.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).
				Str("auction_id", a.ID.String()).
				Str("recipient_id", n.RecipientID.String()).
				Msg("Failed to dispatch close notification")
		}
	}

	now := time.Now()

	switch outcome.Result {
	case shared.OutcomeNoSale:
		dispatch(shared.Notification{
			ID:          uuid.New(),
			RecipientID: a.SellerID,
			AuctionID:   a.ID,
			Type:        shared.NotificationTypeNoSale,
			Title:       "Auction ended",
			Body:        fmt.Sprintf("The auction for %s has ended with no bids.", a.Title),
			CreatedAt:   now,
		})
		return

	case shared.OutcomeReserveNotMet:
		dispatch(shared.Notification{
			ID:          uuid.New(),
			RecipientID: a.SellerID,
			AuctionID:   a.ID,
			Type:        shared.NotificationTypeReserve,
			Title:       "Auction ended",
			Body:        fmt.Sprintf("The auction for %s has ended with no winner, the reserve price was not met. The highest bid was $%.2f.", a.Title, a.CurrentPrice),
			CreatedAt:   now,
		})
		for _, b := range bids {
			dispatch(shared.Notification{
				ID:          uuid.New(),
				RecipientID: b.BidderID,
				AuctionID:   a.ID,
				Type:        shared.NotificationTypeLost,
				Title:       "Auction ended",
				Body:        fmt.Sprintf("The auction for %s has ended; the reserve price was not met.", a.Title),
				CreatedAt:   now,
			})
		}
		return
	}

	// Sold: winner plus every losing bidder
	notified := make(map[uuid.UUID]bool)
	for _, b := range bids {
		if notified[b.BidderID] {
			continue
		}
		notified[b.BidderID] = true

		if outcome.Winner != nil && b.BidderID == outcome.Winner.ID {
			dispatch(shared.Notification{
				ID:          uuid.New(),
				RecipientID: b.BidderID,
				AuctionID:   a.ID,
				Type:        shared.NotificationTypeWon,
				Title:       "You won the auction",
				Body:        fmt.Sprintf("You won the auction for %s with a bid of $%.2f.", a.Title, outcome.FinalPrice),
				CreatedAt:   now,
			})
			continue
		}
		dispatch(shared.Notification{
			ID:          uuid.New(),
			RecipientID: b.BidderID,
			AuctionID:   a.ID,
			Type:        shared.NotificationTypeLost,
			Title:       "Auction ended",
			Body:        fmt.Sprintf("The auction for %s has ended. The winning bid was $%.2f.", a.Title, outcome.FinalPrice),
			CreatedAt:   now,
		})
	}

	dispatch(shared.Notification{
		ID:          uuid.New(),
		RecipientID: a.SellerID,
		AuctionID:   a.ID,
		Type:        shared.NotificationTypeEnded,
		Title:       "Auction ended",
		Body:        fmt.Sprintf("The auction for %s has ended. The winner is %s with a bid of $%.2f.", a.Title, outcome.Winner.Name, outcome.FinalPrice),
		CreatedAt:   now,
	})
}

// highestBid returns the top bid; callers guarantee the slice is sorted
// highest first by the repository.
func highestBid(bids []*bid.Bid) *bid.Bid {
	high := bids[0]
	for _, b := range bids[1:] {
		if b.Amount > high.Amount {
			high = b
		}
	}
	return high
}
