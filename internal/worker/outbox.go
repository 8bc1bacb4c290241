package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/service"
	"github.com/Arijit65/marriage-app-sub001/internal/store"
)

const outboxBatchSize = 100

// Dispatcher delivers recorded outbox events at-least-once: entitlement
// activations go to the EntitlementSink, everything else to the
// Notifier. A failed delivery bumps the attempt counter and is retried
// on the next tick; one bad event never aborts the batch.
type Dispatcher struct {
	outbox   store.OutboxStore
	payments store.PaymentStore
	sink     service.EntitlementSink
	notifier service.Notifier
	interval time.Duration

	// staleWindow controls the pending-order report logged each tick.
	staleWindow time.Duration
}

func NewDispatcher(outbox store.OutboxStore, payments store.PaymentStore,
	sink service.EntitlementSink, notifier service.Notifier,
	interval, staleWindow time.Duration) *Dispatcher {

	return &Dispatcher{
		outbox:      outbox,
		payments:    payments,
		sink:        sink,
		notifier:    notifier,
		interval:    interval,
		staleWindow: staleWindow,
	}
}

// Run blocks until ctx is cancelled.
func (w *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Println("Outbox dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := w.Tick(context.Background()); err != nil {
				log.Printf("Outbox tick failed: %v", err)
			}
			w.reportStaleOrders(context.Background())
		}
	}
}

// Tick delivers one batch. Exported so tests and callers can drive the
// dispatcher without the ticker.
func (w *Dispatcher) Tick(ctx context.Context) error {
	events, err := w.outbox.PickPending(ctx, outboxBatchSize)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if err := w.deliver(ctx, evt); err != nil {
			log.Printf("Delivery failed for event %s (%s), attempt %d: %v",
				evt.ID, evt.Topic, evt.Attempts+1, err)
			if markErr := w.outbox.MarkFailed(ctx, evt.ID); markErr != nil {
				log.Printf("Failed to record delivery failure for %s: %v", evt.ID, markErr)
			}
			continue
		}
		if err := w.outbox.MarkDispatched(ctx, evt.ID, time.Now()); err != nil {
			// The sink saw the event but the mark failed; the retry on
			// the next tick is what at-least-once means, and the sink
			// is idempotent.
			log.Printf("Failed to mark event %s dispatched: %v", evt.ID, err)
		}
	}
	return nil
}

func (w *Dispatcher) deliver(ctx context.Context, evt models.OutboxEvent) error {
	switch evt.Topic {
	case models.TopicEntitlementActivate:
		var p service.EntitlementPayload
		if err := json.Unmarshal([]byte(evt.Payload), &p); err != nil {
			return err
		}
		subject := models.SubjectRef{RegistrationID: p.RegistrationID, UserID: p.UserID}
		return w.sink.Activate(ctx, subject, p.PlanID)
	default:
		return w.notifier.Notify(ctx, evt.Topic, evt.Payload)
	}
}

func (w *Dispatcher) reportStaleOrders(ctx context.Context) {
	if w.staleWindow <= 0 {
		return
	}
	stale, err := w.payments.ListStalePending(ctx, time.Now().Add(-w.staleWindow), 50)
	if err != nil {
		log.Printf("Stale order scan failed: %v", err)
		return
	}
	for _, o := range stale {
		log.Printf("Order %s pending beyond abandonment window (%s, %s)",
			o.ID, o.FormatAmount(), o.Subject)
	}
}
