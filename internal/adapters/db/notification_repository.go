package db

import (
	"context"
	"fmt"

	"openbid-auction-engine/internal/domain/shared"
)

// NotificationRepository persists notifications before delivery so a
// failed send can be retried without losing the message.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Create records a notification row
func (r *NotificationRepository) Create(ctx context.Context, n *shared.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, auction_id, type, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.AuctionID,
		n.Type,
		n.Title,
		n.Body,
		n.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
