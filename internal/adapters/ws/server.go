package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"openbid-auction-engine/internal/config"
	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/inbound"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server exposes the real-time WebSocket channel plus the plain HTTP
// bid and snapshot endpoints on one listener.
type Server struct {
	handler        *WsHandler
	httpServer     *http.Server
	auctionService inbound.AuctionService
	bidService     inbound.BidService
	config         *config.Config
	logger         zerolog.Logger
}

// ServerParams bundles the server dependencies
type ServerParams struct {
	Config         *config.Config
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewServer creates the transport server
func NewServer(params ServerParams) *Server {
	handler := NewHandler(WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
		},
		AuctionService: params.AuctionService,
		BidService:     params.BidService,
		Broadcaster:    params.Broadcaster,
		Logger:         params.Logger,
	})

	server := &Server{
		handler:        handler,
		auctionService: params.AuctionService,
		bidService:     params.BidService,
		config:         params.Config,
		logger:         params.Logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("POST /auctions/{id}/bids", server.handleSubmitBid)
	mux.HandleFunc("GET /auctions/{id}/snapshot", server.handleGetSnapshot)
	mux.HandleFunc("/health", handleHealth)

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", params.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}

	return server
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Server.Port).Msg("Starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

type submitBidPayload struct {
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   float64   `json:"amount"`
}

type submitBidResponse struct {
	Accepted       bool    `json:"accepted"`
	CurrentHighBid float64 `json:"current_high_bid"`
	TotalBids      int     `json:"total_bids"`
	Reason         string  `json:"reason,omitempty"`
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitBidResponse{Reason: "invalid auction id"})
		return
	}

	var payload submitBidPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, submitBidResponse{Reason: "invalid request body"})
		return
	}

	result, err := s.bidService.SubmitBid(r.Context(), inbound.SubmitBidRequest{
		AuctionID: auctionID,
		BidderID:  payload.BidderID,
		Amount:    payload.Amount,
	})
	if err != nil {
		writeJSON(w, bidErrorStatus(err), submitBidResponse{Reason: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, submitBidResponse{
		Accepted:       true,
		CurrentHighBid: result.CurrentHighBid,
		TotalBids:      result.TotalBids,
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	snapshot, err := s.auctionService.GetSnapshot(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// bidErrorStatus maps the error taxonomy onto HTTP statuses: validation
// failures are final, a lost race is retryable.
func bidErrorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrBidConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrAuctionNotFound), errors.Is(err, shared.ErrBidderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok", "service": "auction-engine"}`))
}
