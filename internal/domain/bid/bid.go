package bid

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the status of a bid. A bid enters the ledger as
// active, is demoted to outbid when a higher bid lands, and receives its
// terminal won/lost status exactly once, at auction close.
type Status string

const (
	StatusActive Status = "active"
	StatusOutbid Status = "outbid"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

// Bid represents a recorded bid on an auction. Bids are immutable once
// recorded except for the status field.
type Bid struct {
	ID          uuid.UUID `json:"id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	BidderID    uuid.UUID `json:"bidder_id"`
	BidderName  string    `json:"bidder_name"`
	BidderEmail string    `json:"bidder_email"`
	Amount      float64   `json:"amount"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal returns true once the bid carries its final close status
func (b *Bid) IsTerminal() bool {
	return b.Status == StatusWon || b.Status == StatusLost
}
