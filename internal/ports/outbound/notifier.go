package outbound

import (
	"context"

	"openbid-auction-engine/internal/domain/shared"
)

// Notifier turns resolved auction state into durable notifications.
// Delivery failures never roll back the state change that produced the
// notification; the dispatcher retries on its own.
type Notifier interface {
	Dispatch(ctx context.Context, n shared.Notification) error
}
