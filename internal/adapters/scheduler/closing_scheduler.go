package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CloseService resolves an auction's outcome. The implementation must be
// idempotent: duplicate fires on an already-terminal auction are no-ops.
type CloseService interface {
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Outcome, error)
}

// ActivationService moves a queued auction to active at its start time
type ActivationService interface {
	ActivateAuction(ctx context.Context, auctionID uuid.UUID) error
}

// ActiveAuctionLister feeds the recovery scan. Lifecycle state, not
// scheduler bookkeeping, decides what still needs closing.
type ActiveAuctionLister interface {
	ListActiveSchedules(ctx context.Context) ([]outbound.ScheduleEntry, error)
}

// ClosingScheduler arms one timer per auction and fires its close task
// at or after the deadline. The durable store exists solely so a restart
// can tell which schedules were in flight; duplicate or late fires are
// absorbed by the idempotent close path.
type ClosingScheduler struct {
	store        outbound.ScheduleStore
	closeService CloseService
	activator    ActivationService
	closeRetries int
	retryBackoff time.Duration
	logger       zerolog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	mu          sync.Mutex
	stopped     bool
	closeTimers map[uuid.UUID]*time.Timer
	startTimers map[uuid.UUID]*time.Timer
}

// ClosingSchedulerParams bundles the scheduler dependencies
type ClosingSchedulerParams struct {
	Store        outbound.ScheduleStore
	CloseService CloseService
	Activator    ActivationService
	CloseRetries int
	RetryBackoff time.Duration
	Logger       zerolog.Logger
}

// NewClosingScheduler creates a new closing scheduler
func NewClosingScheduler(params ClosingSchedulerParams) *ClosingScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	retries := params.CloseRetries
	if retries <= 0 {
		retries = 5
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &ClosingScheduler{
		store:        params.Store,
		closeService: params.CloseService,
		activator:    params.Activator,
		closeRetries: retries,
		retryBackoff: backoff,
		logger:       params.Logger.With().Str("component", "closing_scheduler").Logger(),
		ctx:          ctx,
		cancel:       cancel,
		closeTimers:  make(map[uuid.UUID]*time.Timer),
		startTimers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule durably records and arms the close task for an auction.
// Re-scheduling an already-armed auction replaces its timer.
func (s *ClosingScheduler) Schedule(auctionID uuid.UUID, endTime time.Time) error {
	if err := s.store.Add(s.ctx, auctionID, endTime); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to record close schedule")
		return err
	}

	s.armCloseTimer(auctionID, endTime)

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Time("end_time", endTime).
		Msg("Auction scheduled for closing")
	return nil
}

// ScheduleStart arms an activation timer for an approved auction whose
// start time is still in the future.
func (s *ClosingScheduler) ScheduleStart(auctionID uuid.UUID, startTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if timer, ok := s.startTimers[auctionID]; ok {
		timer.Stop()
	}
	s.startTimers[auctionID] = time.AfterFunc(time.Until(startTime), func() {
		s.fireStart(auctionID)
	})

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Time("start_time", startTime).
		Msg("Auction activation queued")
}

// Cancel deregisters an auction's pending timers and durable entry.
// Best effort: a fire that already slipped through is a no-op on the
// close path anyway.
func (s *ClosingScheduler) Cancel(auctionID uuid.UUID) {
	s.mu.Lock()
	if timer, ok := s.closeTimers[auctionID]; ok {
		timer.Stop()
		delete(s.closeTimers, auctionID)
	}
	if timer, ok := s.startTimers[auctionID]; ok {
		timer.Stop()
		delete(s.startTimers, auctionID)
	}
	s.mu.Unlock()

	if err := s.store.Remove(s.ctx, auctionID); err != nil {
		s.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to remove close schedule on cancel")
	}

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction schedule cancelled")
}

// RecoverActive re-arms close timers for every auction still active
// according to the lifecycle state. Past-due auctions fire immediately;
// a crash between deadline and close is healed here (exactly-once
// effective, since the close path short-circuits on terminal state).
func (s *ClosingScheduler) RecoverActive(ctx context.Context, lister ActiveAuctionLister) error {
	entries, err := lister.ListActiveSchedules(ctx)
	if err != nil {
		return err
	}

	active := make(map[uuid.UUID]bool, len(entries))
	for _, entry := range entries {
		active[entry.AuctionID] = true
		if err := s.Schedule(entry.AuctionID, entry.EndTime); err != nil {
			s.logger.Error().Err(err).Str("auction_id", entry.AuctionID.String()).Msg("Failed to recover close schedule")
		}
	}

	// Cross-check the durable index: a past-due entry whose auction is no
	// longer active was resolved already, drop it.
	due, err := s.store.Due(ctx, time.Now())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read due schedules during recovery")
	}
	for _, auctionID := range due {
		if active[auctionID] {
			continue
		}
		if err := s.store.Remove(ctx, auctionID); err != nil {
			s.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to drop stale close schedule")
		}
	}

	s.logger.Info().Int("count", len(entries)).Msg("Recovery scan re-armed active auctions")
	return nil
}

// Stop stops all timers and waits for in-flight close tasks. Once the
// stopped flag is set under the mutex no fired timer can begin a task,
// so the wait below races nothing.
func (s *ClosingScheduler) Stop() {
	s.logger.Info().Msg("Stopping closing scheduler")

	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.closeTimers {
		timer.Stop()
		delete(s.closeTimers, id)
	}
	for id, timer := range s.startTimers {
		timer.Stop()
		delete(s.startTimers, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// beginTask registers a fired timer with the in-flight group, unless the
// scheduler already stopped.
func (s *ClosingScheduler) beginTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *ClosingScheduler) armCloseTimer(auctionID uuid.UUID, endTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if timer, ok := s.closeTimers[auctionID]; ok {
		timer.Stop()
	}
	s.closeTimers[auctionID] = time.AfterFunc(time.Until(endTime), func() {
		s.fireClose(auctionID, endTime)
	})
}

// fireClose runs the close task with retries. Firing early is a defect,
// so a timer that went off ahead of the deadline re-arms itself for the
// remainder instead of closing.
func (s *ClosingScheduler) fireClose(auctionID uuid.UUID, endTime time.Time) {
	if remaining := time.Until(endTime); remaining > 0 {
		s.armCloseTimer(auctionID, endTime)
		return
	}
	if !s.beginTask() {
		return
	}
	defer s.wg.Done()

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Close deadline reached")

	err := s.closeWithRetry(auctionID)
	if err != nil {
		// Never silently dropped: the durable entry stays for the next
		// recovery scan, and the exhaustion is escalated here.
		s.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Int("attempts", s.closeRetries).
			Msg("Auction close retries exhausted, schedule kept for recovery")
		return
	}

	s.mu.Lock()
	delete(s.closeTimers, auctionID)
	s.mu.Unlock()

	if err := s.store.Remove(s.ctx, auctionID); err != nil {
		s.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to remove completed close schedule")
	}
}

func (s *ClosingScheduler) closeWithRetry(auctionID uuid.UUID) error {
	backoff := s.retryBackoff

	for attempt := 1; attempt <= s.closeRetries; attempt++ {
		_, err := s.closeService.CloseAuction(s.ctx, auctionID)
		if err == nil {
			return nil
		}
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return err
		}

		s.logger.Warn().Err(err).
			Str("auction_id", auctionID.String()).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Auction close attempt failed")

		select {
		case <-time.After(backoff):
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
		backoff *= 2
	}

	return shared.ErrCloseRetriesExhausted
}

func (s *ClosingScheduler) fireStart(auctionID uuid.UUID) {
	if s.activator == nil || !s.beginTask() {
		return
	}
	defer s.wg.Done()

	s.mu.Lock()
	delete(s.startTimers, auctionID)
	s.mu.Unlock()

	if err := s.activator.ActivateAuction(s.ctx, auctionID); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Queued auction activation failed")
	}
}
