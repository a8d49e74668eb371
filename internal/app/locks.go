package app

import (
	"sync"

	"github.com/google/uuid"
)

const lockShards = 64

// AuctionLocks provides the per-auction critical section shared by the
// bid ledger and the lifecycle manager. Striped so that submissions to
// different auctions almost never contend, while everything touching one
// auction's high bid or status serializes on the same mutex.
type AuctionLocks struct {
	shards [lockShards]sync.Mutex
}

// NewAuctionLocks creates the shared lock table
func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{}
}

// For returns the mutex guarding the given auction
func (l *AuctionLocks) For(auctionID uuid.UUID) *sync.Mutex {
	var idx uint32
	for _, b := range auctionID {
		idx = idx*31 + uint32(b)
	}
	return &l.shards[idx%lockShards]
}
