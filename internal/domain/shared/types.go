package shared

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the value broadcast to clients on every committed state
// change. Always derived from the auction record plus the bid ledger,
// never persisted independently.
type Snapshot struct {
	AuctionID     uuid.UUID `json:"auction_id"`
	CurrentPrice  float64   `json:"current_price"`
	BidCount      int       `json:"bid_count"`
	TimeRemaining float64   `json:"time_remaining_seconds"`
	Status        string    `json:"status"`
}

// OutcomeResult classifies how an auction resolved at close
type OutcomeResult string

const (
	OutcomeSold          OutcomeResult = "sold"
	OutcomeNoSale        OutcomeResult = "no_sale"
	OutcomeReserveNotMet OutcomeResult = "reserve_not_met"
)

// Outcome represents the final resolution of a closed auction
type Outcome struct {
	AuctionID  uuid.UUID     `json:"auction_id"`
	Result     OutcomeResult `json:"result"`
	Winner     *Bidder       `json:"winner,omitempty"`
	FinalPrice float64       `json:"final_price"`
	ClosedAt   time.Time     `json:"closed_at"`
}

// Sold reports whether the auction resolved with a winner
func (o *Outcome) Sold() bool {
	return o.Result == OutcomeSold
}
