package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
)

// memAuctionRepo mirrors the revision-guarded Postgres repository in
// memory. GetByID hands out copies, like rows scanned off the wire, so
// a stale caller cannot mutate stored state behind the guard's back.
type memAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*auction.Auction
	approved map[uuid.UUID]bool
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{
		auctions: make(map[uuid.UUID]*auction.Auction),
		approved: make(map[uuid.UUID]bool),
	}
}

func (r *memAuctionRepo) Create(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *a
	r.auctions[a.ID] = &stored
	r.approved[a.ID] = true
	return nil
}

func (r *memAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memAuctionRepo) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auction.Auction
	for _, stored := range r.auctions {
		if stored.Status == status {
			copied := *stored
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAuctionRepo) UpdateWithRevision(ctx context.Context, a *auction.Auction, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.auctions[a.ID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if stored.Revision != expectedRevision {
		return shared.ErrBidConflict
	}
	updated := *a
	updated.Revision = expectedRevision + 1
	r.auctions[a.ID] = &updated
	a.Revision = updated.Revision
	return nil
}

func (r *memAuctionRepo) IsApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.auctions[id]; !ok {
		return false, shared.ErrAuctionNotFound
	}
	return r.approved[id], nil
}

// memBidRepo mirrors the transactional bid ledger. CommitBid holds the
// same guarantees as the SQL version: revision guard, monotonic price,
// previous active bid demoted, auction row advanced atomically.
type memBidRepo struct {
	mu             sync.Mutex
	auctions       *memAuctionRepo
	bids           map[uuid.UUID][]*bid.Bid
	markOutcomeErr error
}

func newMemBidRepo(auctions *memAuctionRepo) *memBidRepo {
	return &memBidRepo{
		auctions: auctions,
		bids:     make(map[uuid.UUID][]*bid.Bid),
	}
}

func (r *memBidRepo) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.bids[auctionID]
	out := make([]*bid.Bid, 0, len(stored))
	for _, b := range stored {
		copied := *b
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out, nil
}

func (r *memBidRepo) GetActiveBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids[auctionID] {
		if b.Status == bid.StatusActive {
			copied := *b
			return &copied, nil
		}
	}
	return nil, shared.ErrNoBidsFound
}

func (r *memBidRepo) CommitBid(ctx context.Context, newBid *bid.Bid, auctionRow *auction.Auction, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.auctions.mu.Lock()
	stored, ok := r.auctions.auctions[auctionRow.ID]
	if !ok {
		r.auctions.mu.Unlock()
		return shared.ErrAuctionNotFound
	}
	if stored.Revision != expectedRevision || newBid.Amount <= stored.CurrentPrice {
		r.auctions.mu.Unlock()
		return shared.ErrBidConflict
	}

	for _, b := range r.bids[auctionRow.ID] {
		if b.Status == bid.StatusActive {
			b.Status = bid.StatusOutbid
		}
	}
	recorded := *newBid
	r.bids[auctionRow.ID] = append(r.bids[auctionRow.ID], &recorded)

	stored.RecordBid(newBid.Amount)
	stored.Revision++
	r.auctions.mu.Unlock()

	auctionRow.CurrentPrice = stored.CurrentPrice
	auctionRow.BidCount = stored.BidCount
	auctionRow.Revision = stored.Revision
	return nil
}

func (r *memBidRepo) MarkOutcome(ctx context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markOutcomeErr != nil {
		err := r.markOutcomeErr
		r.markOutcomeErr = nil
		return err
	}
	for _, b := range r.bids[auctionID] {
		if winnerBidID != nil && b.ID == *winnerBidID {
			b.Status = bid.StatusWon
		} else {
			b.Status = bid.StatusLost
		}
	}
	return nil
}

type memBidderDirectory struct {
	mu      sync.Mutex
	bidders map[uuid.UUID]*shared.Bidder
}

func newMemBidderDirectory() *memBidderDirectory {
	return &memBidderDirectory{bidders: make(map[uuid.UUID]*shared.Bidder)}
}

func (d *memBidderDirectory) add(name, email string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.bidders[id] = &shared.Bidder{ID: id, Name: name, Email: email}
	return id
}

func (d *memBidderDirectory) GetBidder(ctx context.Context, id uuid.UUID) (*shared.Bidder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bidders[id]
	if !ok {
		return nil, shared.ErrBidderNotFound
	}
	copied := *b
	return &copied, nil
}

// recordingBroadcaster captures published events in order
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *recordingBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func (b *recordingBroadcaster) Close() error { return nil }

func (b *recordingBroadcaster) published() []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]outbound.Event, len(b.events))
	copy(out, b.events)
	return out
}

// recordingNotifier captures dispatched notifications
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []shared.Notification
}

func (n *recordingNotifier) Dispatch(ctx context.Context, notification shared.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *recordingNotifier) byType(notificationType string) []shared.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []shared.Notification
	for _, notification := range n.notifications {
		if notification.Type == notificationType {
			out = append(out, notification)
		}
	}
	return out
}

// recordingScheduler captures lifecycle scheduling calls
type recordingScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	queued    map[uuid.UUID]time.Time
	cancelled map[uuid.UUID]bool
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{
		scheduled: make(map[uuid.UUID]time.Time),
		queued:    make(map[uuid.UUID]time.Time),
		cancelled: make(map[uuid.UUID]bool),
	}
}

func (s *recordingScheduler) Schedule(auctionID uuid.UUID, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[auctionID] = endTime
	return nil
}

func (s *recordingScheduler) ScheduleStart(auctionID uuid.UUID, startTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[auctionID] = startTime
}

func (s *recordingScheduler) Cancel(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[auctionID] = true
}
