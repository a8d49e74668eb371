package auction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current lifecycle state of an auction
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// transitions lists the legal lifecycle moves. Terminal states have no
// outgoing edges; a same-state transition on a terminal auction is absorbed
// as an idempotent no-op by Transition.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusEnded, StatusCancelled},
}

// Auction represents a live auction over a seller's listing
type Auction struct {
	ID                uuid.UUID `json:"id"`
	SellerID          uuid.UUID `json:"seller_id"`
	Title             string    `json:"title"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	StartingPrice     float64   `json:"starting_price"`
	ReservePrice      *float64  `json:"reserve_price,omitempty"`
	BidIncrement      float64   `json:"bid_increment"`
	CurrentPrice      float64   `json:"current_price"`
	BidCount          int       `json:"bid_count"`
	Status            Status    `json:"status"`
	TotalQuantity     int       `json:"total_quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
	Revision          int64     `json:"revision"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsActive returns true if the auction is currently active
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsTerminal returns true if the auction reached a final state
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusEnded || a.Status == StatusCancelled
}

// HasStarted returns true once the scheduled start time has passed
func (a *Auction) HasStarted() bool {
	return !a.StartTime.After(time.Now())
}

// DeadlinePassed reports whether the scheduled end time is behind now.
// The deadline is authoritative for bid acceptance even when the status
// has not been transitioned yet.
func (a *Auction) DeadlinePassed(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// MinimumBid returns the lowest acceptable next bid amount
func (a *Auction) MinimumBid() float64 {
	if a.BidCount == 0 {
		return a.StartingPrice + a.BidIncrement
	}
	return a.CurrentPrice + a.BidIncrement
}

// ReserveMet reports whether the current price satisfies the reserve.
// An unset reserve is always met.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentPrice >= *a.ReservePrice
}

// CanTransition reports whether moving to target is legal from the
// current state. A terminal auction re-targeted at its own state is
// legal (idempotent no-op); this absorbs duplicate scheduler fires.
func (a *Auction) CanTransition(target Status) bool {
	if a.Status == target && a.IsTerminal() {
		return true
	}
	for _, next := range transitions[a.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition moves the auction to target if the lifecycle table allows
// it. Returns false when the move is illegal; the caller maps that to a
// domain error. A no-op transition on a terminal auction returns true
// without touching UpdatedAt.
func (a *Auction) Transition(target Status) bool {
	if !a.CanTransition(target) {
		return false
	}
	if a.Status == target {
		return true
	}
	a.Status = target
	a.UpdatedAt = time.Now()
	return true
}

// RecordBid applies an accepted bid amount to the auction's rolling state
func (a *Auction) RecordBid(amount float64) {
	a.CurrentPrice = amount
	a.BidCount++
	a.UpdatedAt = time.Now()
}
