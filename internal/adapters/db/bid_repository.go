package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/bid"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

const bidColumns = `id, auction_id, bidder_id, bidder_name, bidder_email, amount, status, created_at, updated_at`

// BidRepository implements the bid ledger persistence interface
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

func scanBid(row interface{ Scan(...interface{}) error }) (*bid.Bid, error) {
	var b bid.Bid
	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderID,
		&b.BidderName,
		&b.BidderEmail,
		&b.Amount,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByAuctionID retrieves all bids for an auction, highest first
func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// GetActiveBid retrieves the single active bid for an auction. The
// ledger invariant keeps at most one row in active status per auction.
func (r *BidRepository) GetActiveBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1 AND status = 'active'
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get active bid: %w", err)
	}

	return b, nil
}

/*
CommitBid atomically records an accepted bid:
 1. Re-reads the auction row and re-validates it against the state the
    caller validated under: still active, revision unchanged, amount
    still above the committed price. A submission that raced a winner
    past validation fails here with shared.ErrBidConflict.
 2. Demotes the previous active bid to outbid.
 3. Inserts the new bid as the sole active row.
 4. Advances current_price, bid_count and the revision counter, guarded
    by the expected revision in the WHERE clause.
*/
func (r *BidRepository) CommitBid(ctx context.Context, newBid *bid.Bid, auctionRow *auction.Auction, expectedRevision int64) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var status string
		var currentPrice float64
		var revision int64
		err := tx.QueryRowContext(ctx,
			`SELECT status, current_price, revision FROM auctions WHERE id = $1 FOR UPDATE`,
			newBid.AuctionID,
		).Scan(&status, &currentPrice, &revision)
		if err != nil {
			if err == sql.ErrNoRows {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to read auction for bid commit: %w", err)
		}

		if status != string(auction.StatusActive) {
			return shared.ErrAuctionNotActive
		}
		if revision != expectedRevision || newBid.Amount <= currentPrice {
			return shared.ErrBidConflict
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE bids SET status = 'outbid', updated_at = $2 WHERE auction_id = $1 AND status = 'active'`,
			newBid.AuctionID, newBid.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to demote previous active bid: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			newBid.ID,
			newBid.AuctionID,
			newBid.BidderID,
			newBid.BidderName,
			newBid.BidderEmail,
			newBid.Amount,
			newBid.Status,
			newBid.CreatedAt,
			newBid.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE auctions
			 SET current_price = $2, bid_count = bid_count + 1, revision = revision + 1, updated_at = $3
			 WHERE id = $1 AND revision = $4`,
			newBid.AuctionID,
			newBid.Amount,
			newBid.CreatedAt,
			expectedRevision,
		)
		if err != nil {
			return fmt.Errorf("failed to advance auction price: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrBidConflict
		}

		auctionRow.RecordBid(newBid.Amount)
		auctionRow.Revision = expectedRevision + 1
		return nil
	})
}

// MarkOutcome rewrites bid statuses exactly once at close. With a winner
// the winning bid becomes won and the rest lost; without one (no sale or
// reserve not met) every bid becomes lost.
func (r *BidRepository) MarkOutcome(ctx context.Context, auctionID uuid.UUID, winnerBidID *uuid.UUID) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		now := time.Now()

		if winnerBidID != nil {
			_, err := tx.ExecContext(ctx,
				`UPDATE bids SET status = 'won', updated_at = $2 WHERE id = $1`,
				*winnerBidID, now,
			)
			if err != nil {
				return fmt.Errorf("failed to mark winning bid: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE bids SET status = 'lost', updated_at = $3 WHERE auction_id = $1 AND id <> $2`,
				auctionID, *winnerBidID, now,
			)
			if err != nil {
				return fmt.Errorf("failed to mark losing bids: %w", err)
			}
			return nil
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE bids SET status = 'lost', updated_at = $2 WHERE auction_id = $1`,
			auctionID, now,
		)
		if err != nil {
			return fmt.Errorf("failed to mark bids lost: %w", err)
		}
		return nil
	})
}
