package app

import (
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/shared"
)

// snapshotOf derives the broadcastable view from an auction record
func snapshotOf(a *auction.Auction) shared.Snapshot {
	remaining := time.Until(a.EndTime).Seconds()
	if remaining < 0 || a.IsTerminal() {
		remaining = 0
	}

	return shared.Snapshot{
		AuctionID:     a.ID,
		CurrentPrice:  a.CurrentPrice,
		BidCount:      a.BidCount,
		TimeRemaining: remaining,
		Status:        string(a.Status),
	}
}
