package db

import (
	"context"
	"database/sql"
	"fmt"

	"openbid-auction-engine/internal/domain/auction"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, seller_id, title, start_time, end_time, starting_price,
		reserve_price, bid_increment, current_price, bid_count, status,
		total_quantity, remaining_quantity, revision, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create creates a new auction record
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.SellerID,
		a.Title,
		a.StartTime,
		a.EndTime,
		a.StartingPrice,
		a.ReservePrice,
		a.BidIncrement,
		a.CurrentPrice,
		a.BidCount,
		a.Status,
		a.TotalQuantity,
		a.RemainingQuantity,
		a.Revision,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

func scanAuction(row interface{ Scan(...interface{}) error }) (*auction.Auction, error) {
	var a auction.Auction
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.StartTime,
		&a.EndTime,
		&a.StartingPrice,
		&a.ReservePrice,
		&a.BidIncrement,
		&a.CurrentPrice,
		&a.BidCount,
		&a.Status,
		&a.TotalQuantity,
		&a.RemainingQuantity,
		&a.Revision,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// ListByStatus retrieves all auctions in the given lifecycle state.
// The recovery scan uses this at startup to find still-active auctions.
func (r *AuctionRepository) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY end_time ASC`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// UpdateWithRevision persists the auction guarded by its revision counter.
// A zero rows-affected result means another writer advanced the row first.
func (r *AuctionRepository) UpdateWithRevision(ctx context.Context, a *auction.Auction, expectedRevision int64) error {
	query := `
		UPDATE auctions
		SET current_price = $2, bid_count = $3, status = $4,
		    remaining_quantity = $5, revision = revision + 1, updated_at = $6
		WHERE id = $1 AND revision = $7
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.CurrentPrice,
		a.BidCount,
		a.Status,
		a.RemainingQuantity,
		a.UpdatedAt,
		expectedRevision,
	)

	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrBidConflict
	}

	a.Revision = expectedRevision + 1
	return nil
}

// IsApproved reports whether the admin approval gate cleared the auction
func (r *AuctionRepository) IsApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT admin_approval = 'approved' FROM auctions WHERE id = $1`

	var approved bool
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(&approved)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, shared.ErrAuctionNotFound
		}
		return false, fmt.Errorf("failed to check auction approval: %w", err)
	}

	return approved, nil
}
