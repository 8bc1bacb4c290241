package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/service"
	"github.com/Arijit65/marriage-app-sub001/internal/store/memory"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	calls    []models.SubjectRef
}

func (s *recordingSink) Activate(ctx context.Context, subject models.SubjectRef, planID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.calls = append(s.calls, subject)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *recordingNotifier) Notify(ctx context.Context, topic, payload string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	return nil
}

func sendProposal(t *testing.T, st *memory.Store) {
	t.Helper()
	svc := service.NewProposalService(st, 30*24*time.Hour)
	_, err := svc.Send(context.Background(), "member-a", "member-b", "hi")
	require.NoError(t, err)
}

// seedEntitlementEvent drives an order through the completed transition
// so its activation event lands in the outbox.
func seedEntitlementEvent(t *testing.T, st *memory.Store, subject models.SubjectRef, planID *string) {
	t.Helper()
	ctx := context.Background()

	o := &models.PaymentOrder{
		ID:             uuid.New(),
		Subject:        subject,
		PlanID:         planID,
		Amount:         50000,
		Currency:       models.CurrencyINR,
		GatewayOrderID: "order_" + uuid.NewString(),
		Status:         models.OrderPending,
		Receipt:        "rcpt",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, st.CreateOrder(ctx, o))

	payload, err := json.Marshal(service.EntitlementPayload{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		RegistrationID: subject.RegistrationID,
		UserID:         subject.UserID,
		PlanID:         planID,
	})
	require.NoError(t, err)

	_, err = st.CompleteOrder(ctx, o.GatewayOrderID, "pay_1", "sig", &models.OutboxEvent{
		ID:      uuid.New(),
		Topic:   models.TopicEntitlementActivate,
		Payload: string(payload),
	})
	require.NoError(t, err)
}

func TestDispatcherDeliversAndMarks(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sink := &recordingSink{}
	notifier := &recordingNotifier{}

	// One notification event and one entitlement event.
	sendProposal(t, st)
	userID := "user-1"
	plan := "plan-premium"
	seedEntitlementEvent(t, st, models.SubjectRef{UserID: &userID}, &plan)

	d := NewDispatcher(st, st, sink, notifier, time.Second, 0)
	require.NoError(t, d.Tick(ctx))

	assert.Equal(t, []string{models.TopicProposalCreated}, notifier.topics)
	require.Len(t, sink.calls, 1)
	require.NotNil(t, sink.calls[0].UserID)
	assert.Equal(t, "user-1", *sink.calls[0].UserID)

	// Everything dispatched; a second tick delivers nothing new.
	require.NoError(t, d.Tick(ctx))
	assert.Len(t, sink.calls, 1)
	assert.Len(t, notifier.topics, 1)
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sink := &recordingSink{failures: 1}
	notifier := &recordingNotifier{}

	userID := "user-2"
	seedEntitlementEvent(t, st, models.SubjectRef{UserID: &userID}, nil)

	d := NewDispatcher(st, st, sink, notifier, time.Second, 0)

	// First tick fails, the event stays pending with a bumped attempt
	// counter.
	require.NoError(t, d.Tick(ctx))
	assert.Empty(t, sink.calls)

	pending, err := st.PickPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	// Second tick succeeds.
	require.NoError(t, d.Tick(ctx))
	require.Len(t, sink.calls, 1)

	pending, err = st.PickPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatcherOneBadEventDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sink := &recordingSink{failures: 100}
	notifier := &recordingNotifier{}

	userID := "user-3"
	seedEntitlementEvent(t, st, models.SubjectRef{UserID: &userID}, nil)
	sendProposal(t, st)

	d := NewDispatcher(st, st, sink, notifier, time.Second, 0)
	require.NoError(t, d.Tick(ctx))

	// The sink kept failing but the notification still went out.
	assert.Empty(t, sink.calls)
	assert.Equal(t, []string{models.TopicProposalCreated}, notifier.topics)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	st := memory.New()
	d := NewDispatcher(st, st, &recordingSink{}, &recordingNotifier{}, 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancellation")
	}
}
