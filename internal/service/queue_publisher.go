// Package service holds adapters between the ticketing core and outside
// infrastructure.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gatepass/ticket-gate/internal/model"
	"github.com/gatepass/ticket-gate/internal/monitoring"
	"github.com/gatepass/ticket-gate/internal/queue"
)

// ReconcilePublisher sends minted-but-unrecorded tickets to the durable
// reconcile queue.  It dials per publish: the path only runs when the
// database is already failing, so a pooled connection would mostly sit
// idle.
type ReconcilePublisher struct {
	URL    string
	Logger *slog.Logger
}

func NewReconcilePublisher(url string, logger *slog.Logger) *ReconcilePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcilePublisher{URL: url, Logger: logger}
}

// Reconcile publishes t as a persistent message.  Errors are logged and
// returned so the issuer can report whether the ticket was queued.
func (p *ReconcilePublisher) Reconcile(ctx context.Context, t model.Ticket) error {
	ev, err := queue.NewReconcileEvent(t)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	if err := p.publish(ctx, body); err != nil {
		monitoring.TrackReconcile("publish", "error")
		p.Logger.Error("rabbitmq: publish failed", "tx", ev.MintTxHash, "err", err)
		return err
	}
	monitoring.TrackReconcile("publish", "ok")
	return nil
}

func (p *ReconcilePublisher) publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.ReconcileQueue, // name
		true,                 // durable
		false,                // autoDelete
		false,                // exclusive
		false,                // noWait
		nil,                  // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.ReconcileQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}
