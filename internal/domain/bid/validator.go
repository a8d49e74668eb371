package bid

import (
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/shared"
)

/*
Validate decides whether a candidate bid may enter the ledger. It is a
pure function over the auction state and the current high bid; the ledger
calls it inside the per-auction critical section so the inputs cannot go
stale between validation and commit.

Rules:
 1. The auction must be active and its deadline not yet passed. The
    deadline check stands on its own: a bid racing the close instant is
    rejected even if the status field still says active.
 2. The amount must reach the current high bid plus the increment, or
    the starting price plus the increment when no bid exists yet.

A bidder raising their own standing bid passes the same rules; the
previous bid is demoted like any other.
*/
func Validate(a *auction.Auction, highBid *Bid, candidate *Bid, now time.Time) error {
	if !a.IsActive() {
		return shared.ErrAuctionNotActive
	}
	if !a.HasStarted() {
		return shared.ErrAuctionNotStarted
	}
	if a.DeadlinePassed(now) {
		return shared.ErrAuctionDeadlinePassed
	}
	if candidate.Amount <= 0 {
		return shared.ErrBidAmountInvalid
	}

	if highBid == nil {
		if candidate.Amount < a.StartingPrice+a.BidIncrement {
			return shared.ErrBidBelowStartingPrice
		}
		return nil
	}
	if candidate.Amount < highBid.Amount+a.BidIncrement {
		return shared.ErrBidBelowMinimum
	}
	return nil
}
