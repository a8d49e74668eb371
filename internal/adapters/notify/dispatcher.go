package notify

import (
	"context"
	"sync"
	"time"

	"openbid-auction-engine/internal/domain/shared"
	"openbid-auction-engine/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Sender delivers a notification to its recipient (e-mail, SMS, push).
// The engine treats delivery as a collaborator concern behind this
// interface.
type Sender interface {
	Send(ctx context.Context, n shared.Notification) error
}

// Dispatcher persists each notification and hands it to the sender.
// Send failures are retried with backoff in the background; they never
// propagate back into the auction state change that produced them.
type Dispatcher struct {
	repo        outbound.NotificationRepository
	sender      Sender
	maxAttempts int
	backoff     time.Duration
	logger      zerolog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// DispatcherParams bundles the dispatcher dependencies
type DispatcherParams struct {
	Repo        outbound.NotificationRepository
	Sender      Sender
	MaxAttempts int
	Backoff     time.Duration
	Logger      zerolog.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(params DispatcherParams) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Dispatcher{
		repo:        params.Repo,
		sender:      params.Sender,
		maxAttempts: attempts,
		backoff:     backoff,
		logger:      params.Logger.With().Str("component", "notification_dispatcher").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Dispatch records the notification and delivers it asynchronously
func (d *Dispatcher) Dispatch(ctx context.Context, n shared.Notification) error {
	if err := d.repo.Create(ctx, &n); err != nil {
		d.logger.Error().Err(err).
			Str("recipient_id", n.RecipientID.String()).
			Str("type", n.Type).
			Msg("Failed to persist notification")
		return err
	}

	d.wg.Add(1)
	go d.deliver(n)
	return nil
}

// Stop waits for in-flight deliveries
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(n shared.Notification) {
	defer d.wg.Done()

	backoff := d.backoff
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := d.sender.Send(d.ctx, n)
		if err == nil {
			d.logger.Debug().
				Str("recipient_id", n.RecipientID.String()).
				Str("type", n.Type).
				Msg("Notification delivered")
			return
		}

		d.logger.Warn().Err(err).
			Str("recipient_id", n.RecipientID.String()).
			Str("type", n.Type).
			Int("attempt", attempt).
			Msg("Notification delivery failed")

		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff *= 2
	}

	// The persisted row is the durable record; delivery gave up
	d.logger.Error().
		Str("recipient_id", n.RecipientID.String()).
		Str("type", n.Type).
		Int("attempts", d.maxAttempts).
		Msg("Notification delivery abandoned")
}

// LogSender is the default sender: it only logs deliveries. Real e-mail
// or SMS transports plug in behind the Sender interface.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a log-backed sender
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

// Send logs the notification instead of delivering it
func (s *LogSender) Send(ctx context.Context, n shared.Notification) error {
	s.logger.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("auction_id", n.AuctionID.String()).
		Str("type", n.Type).
		Str("title", n.Title).
		Msg(n.Body)
	return nil
}
