package shared

import (
	"time"

	"github.com/google/uuid"
)

// Bidder represents an authenticated user allowed to bid. Resolved
// through the collaborator directory; the engine never manages accounts.
type Bidder struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Notification is a durable message handed to the dispatcher when
// auction state changes concern a user.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	NotificationTypeBid     = "bid"
	NotificationTypeOutbid  = "outbid"
	NotificationTypeWon     = "won"
	NotificationTypeLost    = "lost"
	NotificationTypeEnded   = "auction_ended"
	NotificationTypeNoSale  = "no_sale"
	NotificationTypeReserve = "reserve_not_met"
)
