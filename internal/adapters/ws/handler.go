package ws

import (
	"net/http"
	"sync"

	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/inbound"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	bidService     inbound.BidService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

// WsHandlerParams bundles the handler dependencies
type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		bidService:     params.BidService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: h,
		Logger:  h.logger,
	})

	h.registerClient(client)
	h.createEventChannel(client.id)

	client.Start()
	go h.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		h.unregisterClient(client)
	}()

	h.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Msg("WebSocket client connected")
}

// HandleClientMessage routes a validated client message
func (h *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return h.handleSubscribe(client, *msg.AuctionID)
	case MessageTypeUnsubscribe:
		if !h.broadcaster.IsSubscribed(client.ctx, *msg.AuctionID, client.id) {
			return shared.ErrUserNotSubscribed
		}
		return h.broadcaster.Unsubscribe(client.ctx, *msg.AuctionID, client.id)
	case MessageTypePlaceBid:
		return h.handlePlaceBid(client, msg)
	case MessageTypeGetSnapshot:
		return h.handleGetSnapshot(client, *msg.AuctionID)
	}
	return nil
}

func (h *WsHandler) handleSubscribe(client *WsClient, auctionID uuid.UUID) error {
	eventChan := h.getEventChannel(client.id)
	if err := h.broadcaster.Subscribe(client.ctx, auctionID, client.id, eventChan); err != nil {
		return err
	}

	// Bring the late joiner up to date; they get no event replay
	return h.handleGetSnapshot(client, auctionID)
}

func (h *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount := msg.Data["amount"].(float64)

	result, err := h.bidService.SubmitBid(client.ctx, inbound.SubmitBidRequest{
		AuctionID: *msg.AuctionID,
		BidderID:  client.userID,
		Amount:    amount,
	})
	if err != nil {
		reply := NewServerMessage(MessageTypeBidRejected)
		reply.AuctionID = msg.AuctionID
		reason := err.Error()
		reply.Error = &reason
		return client.Send(reply)
	}

	reply := NewServerMessage(MessageTypeBidAccepted)
	reply.AuctionID = msg.AuctionID
	reply.Data["bid_id"] = result.Bid.ID
	reply.Data["current_high_bid"] = result.CurrentHighBid
	reply.Data["total_bids"] = result.TotalBids
	return client.Send(reply)
}

func (h *WsHandler) handleGetSnapshot(client *WsClient, auctionID uuid.UUID) error {
	snapshot, err := h.auctionService.GetSnapshot(client.ctx, auctionID)
	if err != nil {
		return err
	}
	return client.Send(NewSnapshotMessage(snapshot))
}

// listenForClientEvents forwards broadcast events to the client socket
func (h *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := h.getEventChannel(client.id)
	if eventChan == nil {
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(eventToMessage(event)); err != nil {
				h.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to forward event to client")
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func eventToMessage(event outbound.Event) *ServerMessage {
	var msg *ServerMessage
	switch event.Type {
	case outbound.EventTypeAuctionClosed:
		msg = NewServerMessage(MessageTypeAuctionClosed)
		if event.Winner != nil {
			msg.Data["winner_id"] = event.Winner.ID
			msg.Data["winner_name"] = event.Winner.Name
		}
	default:
		msg = NewServerMessage(MessageTypeBidAccepted)
	}

	msg.AuctionID = &event.AuctionID
	msg.Data["current_price"] = event.Snapshot.CurrentPrice
	msg.Data["bid_count"] = event.Snapshot.BidCount
	msg.Data["time_remaining_seconds"] = event.Snapshot.TimeRemaining
	msg.Data["status"] = event.Snapshot.Status
	msg.Timestamp = event.Timestamp
	return msg
}

func (h *WsHandler) registerClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[client.id] = client
}

func (h *WsHandler) unregisterClient(client *WsClient) {
	h.clientsMu.Lock()
	delete(h.clients, client.id)
	h.clientsMu.Unlock()

	h.channelsMu.Lock()
	delete(h.eventChannels, client.id)
	h.channelsMu.Unlock()

	client.Stop()
	h.logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")
}

func (h *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	h.channelsMu.Lock()
	defer h.channelsMu.Unlock()

	if eventChan, exists := h.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	h.eventChannels[clientID] = eventChan
	return eventChan
}

func (h *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	h.channelsMu.RLock()
	defer h.channelsMu.RUnlock()
	return h.eventChannels[clientID]
}
