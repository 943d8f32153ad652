package consumerWorker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/wb-go/wbf/zlog"

	"workshopportal/internal/dto"
	"workshopportal/internal/rabbit"
)

type Consumer interface {
	Consume(handler func([]byte) error) error
	StopConsuming() error
}

type Sender interface {
	Notify(ctx context.Context, name, email, workshop string) error
}

// Reader drains queued confirmation emails and hands them to the mailer.
type Reader struct {
	RMQ       Consumer
	mailer    Sender
	consuming atomic.Bool
	done      chan struct{}
	cancel    context.CancelFunc
}

func NewReader(rmq Consumer, mailer Sender) *Reader {
	return &Reader{
		RMQ:    rmq,
		mailer: mailer,
		done:   make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("🐇 RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(func(body []byte) error {
			return r.Handle(cctx, body)
		}); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}
		r.consuming.Store(true)

		<-cctx.Done()
		zlog.Logger.Info().Msg("🛑 RabbitMQ Reader stopped by context")
	}()
}

// Handle sends one queued notification. Mail failures are logged and the
// message is acknowledged anyway; nothing is retried. A message that arrives
// while the reader is stopping is handed back with rabbit.ErrRequeue.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", rabbit.ErrRequeue, err)
	}

	var msg dto.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Dropping malformed notification: %s", string(body))
		return nil
	}

	zlog.Logger.Info().
		Str("email", msg.Email).
		Str("workshop", msg.Workshop).
		Msg("📩 Received notification from RabbitMQ")

	if err := r.mailer.Notify(ctx, msg.Name, msg.Email, msg.Workshop); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", rabbit.ErrRequeue, err)
		}
		zlog.Logger.Warn().
			Err(err).
			Str("email", msg.Email).
			Msg("Failed to send notification on e-mail")
	}
	return nil
}

// Stop cancels the broker subscription first, so nothing new arrives, then
// waits for the reader to exit.
func (r *Reader) Stop() {
	if r.cancel == nil {
		return
	}
	if r.consuming.Load() {
		if err := r.RMQ.StopConsuming(); err != nil {
			zlog.Logger.Warn().Err(err).Msg("Failed to cancel RabbitMQ consumer")
		}
	}
	r.cancel()
	<-r.done
}
