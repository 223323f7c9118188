package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/monitoring"
	"github.com/gatepass/ticket-gate/internal/repository"
)

// Restorer writes a replayed ticket.  It must be idempotent on the mint
// transaction hash because a message can be delivered more than once.
type Restorer interface {
	Restore(ctx context.Context, t *model.Ticket) error
}

var (
	// errPoison marks a message that can never succeed and must be dropped.
	errPoison = errors.New("poison message")
	// errParked marks a well-formed message whose token id is already
	// recorded under another mint; it is moved to ParkedQueue.
	errParked = errors.New("conflicting ticket")
)

// StartReconcileConsumer connects to RabbitMQ, declares the durable
// reconcile queue and replays each message through store.  It reconnects
// with backoff until ctx is cancelled, which is the only way it returns.
func StartReconcileConsumer(ctx context.Context, url string, store Restorer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconcile-consumer")

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, store, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, store Restorer, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logger.Warn("set QoS failed", "err", err)
	}
	for _, name := range []string{ReconcileQueue, ParkedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}
	msgs, err := ch.Consume(ReconcileQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			err := HandleMessage(ctx, store, d.Body, logger)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, errParked):
				logger.Error("parking reconcile message", "err", err, "body", string(d.Body))
				if perr := park(ctx, ch, d.Body); perr != nil {
					logger.Error("park failed; requeueing", "err", perr)
					_ = d.Nack(false, true)
					if !sleep(ctx, 5*time.Second) {
						return ctx.Err()
					}
					continue
				}
				_ = d.Ack(false)
			case errors.Is(err, errPoison):
				logger.Error("dropping reconcile message", "err", err, "body", string(d.Body))
				_ = d.Nack(false, false)
			default:
				// the store is down; put it back and slow down
				logger.Error("reconcile replay failed", "err", err)
				_ = d.Nack(false, true)
				if !sleep(ctx, 5*time.Second) {
					return ctx.Err()
				}
			}
		}
	}
}

// HandleMessage replays one reconcile message.  Undecodable or incomplete
// messages are reported as poison.
func HandleMessage(ctx context.Context, store Restorer, body []byte, logger *slog.Logger) error {
	var ev ReconcileEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		monitoring.TrackReconcile("replay", "poison")
		return fmt.Errorf("%w: unmarshal: %v", errPoison, err)
	}
	t, err := ev.Ticket()
	if err != nil {
		monitoring.TrackReconcile("replay", "poison")
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if err := store.Restore(ctx, &t); err != nil {
		if errors.Is(err, repository.ErrTokenTaken) {
			monitoring.TrackReconcile("replay", "conflict")
			return fmt.Errorf("%w: token %d from %s: %v", errParked, ev.TokenID, ev.MintTxHash, err)
		}
		monitoring.TrackReconcile("replay", "error")
		return fmt.Errorf("restore ticket for %s: %w", ev.MintTxHash, err)
	}
	monitoring.TrackReconcile("replay", "ok")
	logger.Info("ticket reconciled", "ticket_id", t.ID, "token_id", ev.TokenID, "tx", ev.MintTxHash)
	return nil
}

func park(ctx context.Context, ch *amqp.Channel, body []byte) error {
	return ch.PublishWithContext(ctx, "", ParkedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
