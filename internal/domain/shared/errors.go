package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound       = errors.New("auction not found")
	ErrAuctionNotActive      = errors.New("auction is not active")
	ErrAuctionNotStarted     = errors.New("auction has not started yet")
	ErrAuctionDeadlinePassed = errors.New("auction deadline has passed")
	ErrAuctionNotApproved    = errors.New("auction is not approved")
	ErrIllegalTransition     = errors.New("illegal auction state transition")
	ErrInvalidEndTime        = errors.New("end time must be after start time")
	ErrInvalidStartingPrice  = errors.New("starting price must be greater than 0")
	ErrInvalidBidIncrement   = errors.New("bid increment must be greater than 0")

	// Bid validation errors; reported synchronously, never retried by the system
	ErrBidAmountInvalid      = errors.New("bid amount must be greater than 0")
	ErrBidBelowMinimum       = errors.New("bid amount below current high bid plus increment")
	ErrBidBelowStartingPrice = errors.New("bid amount below starting price plus increment")
	ErrNoBidsFound           = errors.New("no bids found")

	// ErrBidConflict means the submission lost the race against a concurrent
	// bid; the client is expected to resubmit with a fresh amount.
	ErrBidConflict = errors.New("bid lost concurrent update, resubmit with updated amount")

	// Bidder errors
	ErrBidderNotFound = errors.New("bidder not found")

	// Scheduling errors; retried with backoff, never silently dropped
	ErrCloseRetriesExhausted = errors.New("auction close retries exhausted")

	// Validation errors
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// Broadcasting errors
	ErrUserNotSubscribed = errors.New("user not subscribed to auction")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)
