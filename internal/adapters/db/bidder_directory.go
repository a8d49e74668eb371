package db

import (
	"context"
	"database/sql"
	"fmt"

	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// BidderDirectory resolves bidder identities against the collaborator
// user store. Read-only; account management lives outside the engine.
type BidderDirectory struct {
	conn *Connection
}

// NewBidderDirectory creates a new bidder directory
func NewBidderDirectory(conn *Connection) *BidderDirectory {
	return &BidderDirectory{conn: conn}
}

// GetBidder retrieves a bidder's human-readable info by ID
func (r *BidderDirectory) GetBidder(ctx context.Context, id uuid.UUID) (*shared.Bidder, error) {
	query := `SELECT id, name, email FROM users WHERE id = $1`

	var b shared.Bidder
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrBidderNotFound
		}
		return nil, fmt.Errorf("failed to get bidder: %w", err)
	}

	return &b, nil
}
