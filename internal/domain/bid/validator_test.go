package bid

import (
	"testing"
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeAuction() *auction.Auction {
	now := time.Now()
	return &auction.Auction{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         "Vintage Camera",
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		StartingPrice: 100,
		BidIncrement:  10,
		CurrentPrice:  100,
		Status:        auction.StatusActive,
	}
}

func candidateBid(a *auction.Auction, amount float64) *Bid {
	return &Bid{
		ID:        uuid.New(),
		AuctionID: a.ID,
		BidderID:  uuid.New(),
		Amount:    amount,
		Status:    StatusActive,
	}
}

func TestValidateFirstBid(t *testing.T) {
	a := activeAuction()

	tests := []struct {
		name    string
		amount  float64
		wantErr error
	}{
		{"exactly starting plus increment", 110, nil},
		{"above starting plus increment", 150, nil},
		{"equal to starting price", 100, shared.ErrBidBelowStartingPrice},
		{"just under the minimum", 109.99, shared.ErrBidBelowStartingPrice},
		{"zero amount", 0, shared.ErrBidAmountInvalid},
		{"negative amount", -5, shared.ErrBidAmountInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(a, nil, candidateBid(a, tt.amount), time.Now())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAgainstHighBid(t *testing.T) {
	a := activeAuction()
	a.CurrentPrice = 200
	a.BidCount = 3
	high := candidateBid(a, 200)

	tests := []struct {
		name    string
		amount  float64
		wantErr error
	}{
		{"exactly high plus increment", 210, nil},
		{"well above minimum", 500, nil},
		{"equal to high bid", 200, shared.ErrBidBelowMinimum},
		{"above high but under increment", 205, shared.ErrBidBelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(a, high, candidateBid(a, tt.amount), time.Now())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSelfRebid(t *testing.T) {
	a := activeAuction()
	a.CurrentPrice = 200
	a.BidCount = 1

	high := candidateBid(a, 200)
	raise := candidateBid(a, 215)
	raise.BidderID = high.BidderID

	// Raising one's own standing bid follows the same increment rule
	require.NoError(t, Validate(a, high, raise, time.Now()))

	tooLow := candidateBid(a, 205)
	tooLow.BidderID = high.BidderID
	assert.ErrorIs(t, Validate(a, high, tooLow, time.Now()), shared.ErrBidBelowMinimum)
}

func TestValidateAuctionState(t *testing.T) {
	t.Run("pending auction rejects bids", func(t *testing.T) {
		a := activeAuction()
		a.Status = auction.StatusPending
		err := Validate(a, nil, candidateBid(a, 110), time.Now())
		assert.ErrorIs(t, err, shared.ErrAuctionNotActive)
	})

	t.Run("ended auction rejects bids", func(t *testing.T) {
		a := activeAuction()
		a.Status = auction.StatusEnded
		err := Validate(a, nil, candidateBid(a, 110), time.Now())
		assert.ErrorIs(t, err, shared.ErrAuctionNotActive)
	})

	t.Run("cancelled auction rejects bids", func(t *testing.T) {
		a := activeAuction()
		a.Status = auction.StatusCancelled
		err := Validate(a, nil, candidateBid(a, 110), time.Now())
		assert.ErrorIs(t, err, shared.ErrAuctionNotActive)
	})

	t.Run("not yet started auction rejects bids", func(t *testing.T) {
		a := activeAuction()
		a.StartTime = time.Now().Add(time.Hour)
		err := Validate(a, nil, candidateBid(a, 110), time.Now())
		assert.ErrorIs(t, err, shared.ErrAuctionNotStarted)
	})
}

func TestValidateDeadlineIsAuthoritative(t *testing.T) {
	// The status may still say active while the deadline has passed; the
	// deadline wins.
	a := activeAuction()
	a.EndTime = time.Now().Add(-time.Second)

	err := Validate(a, nil, candidateBid(a, 110), time.Now())
	assert.ErrorIs(t, err, shared.ErrAuctionDeadlinePassed)
}

func TestValidateAtExactDeadline(t *testing.T) {
	a := activeAuction()
	now := a.EndTime

	err := Validate(a, nil, candidateBid(a, 110), now)
	assert.ErrorIs(t, err, shared.ErrAuctionDeadlinePassed)
}
