package broadcaster

import (
	"context"
	"sync"
	"time"

	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MemoryBroadcaster is the in-process fan-out implementation. Events for
// one auction reach only that auction's subscribers, in the order
// Publish was called; the ledger publishes under the per-auction
// critical section, so that order is commit order. Delivery is
// best-effort: a subscriber whose channel is full loses the event and is
// expected to re-sync via the snapshot API.
type MemoryBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan outbound.Event // clientID -> delivery channel
	topics      map[uuid.UUID]map[string]bool  // auctionID -> clientID set
	logger      zerolog.Logger
}

// MemoryBroadcasterParams bundles the broadcaster dependencies
type MemoryBroadcasterParams struct {
	Logger zerolog.Logger
}

// NewMemoryBroadcaster creates a new in-process broadcaster
func NewMemoryBroadcaster(params MemoryBroadcasterParams) *MemoryBroadcaster {
	return &MemoryBroadcaster{
		subscribers: make(map[string]chan outbound.Event),
		topics:      make(map[uuid.UUID]map[string]bool),
		logger:      params.Logger.With().Str("component", "memory_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific auction. All of
// a client's subscriptions deliver to the same channel.
func (m *MemoryBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribers[clientID] == nil {
		m.subscribers[clientID] = eventChan
	}
	if m.topics[auctionID] == nil {
		m.topics[auctionID] = make(map[string]bool)
	}
	m.topics[auctionID][clientID] = true

	m.logger.Debug().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client subscribed to auction")
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific auction
func (m *MemoryBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if clients, ok := m.topics[auctionID]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(m.topics, auctionID)
		}
	}

	// Drop the delivery channel once the client watches nothing
	for _, clients := range m.topics {
		if clients[clientID] {
			return nil
		}
	}
	delete(m.subscribers, clientID)
	return nil
}

// Publish fans an event out to every subscriber of the auction's topic
func (m *MemoryBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	delivered := 0
	for clientID := range m.topics[auctionID] {
		eventChan, ok := m.subscribers[clientID]
		if !ok {
			continue
		}
		select {
		case eventChan <- event:
			delivered++
		default:
			m.logger.Warn().
				Str("client_id", clientID).
				Str("auction_id", auctionID.String()).
				Msg("Subscriber channel full, dropping event")
		}
	}

	m.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int("delivered", delivered).
		Msg("Published event to auction")
	return nil
}

// IsSubscribed checks if a client is subscribed to an auction
func (m *MemoryBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.topics[auctionID][clientID]
}

// Close drops all subscriptions and closes delivery channels
func (m *MemoryBroadcaster) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for clientID, eventChan := range m.subscribers {
		close(eventChan)
		delete(m.subscribers, clientID)
	}
	m.topics = make(map[uuid.UUID]map[string]bool)
	return nil
}
