package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
	"github.com/Arijit65/marriage-app-sub001/internal/gateway"
	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/store"
)

// EntitlementSink grants the purchased plan. It is an external
// collaborator and must be idempotent: activating the same order's terms
// twice is safe, which is what lets the outbox deliver at-least-once.
type EntitlementSink interface {
	Activate(ctx context.Context, subject models.SubjectRef, planID *string) error
}

// Notifier delivers lifecycle notifications. Content is external; the
// core only emits the triggering event.
type Notifier interface {
	Notify(ctx context.Context, topic, payload string) error
}

// EntitlementPayload is the outbox payload for plan activation.
type EntitlementPayload struct {
	OrderID        uuid.UUID `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	RegistrationID *string   `json:"registration_id,omitempty"`
	UserID         *string   `json:"user_id,omitempty"`
	PlanID         *string   `json:"plan_id,omitempty"`
}

// PaymentService manages payment orders: creation against the gateway,
// signed-callback verification, and caller-driven cancellation.
type PaymentService struct {
	store   store.PaymentStore
	gateway gateway.Client
}

func NewPaymentService(st store.PaymentStore, gw gateway.Client) *PaymentService {
	return &PaymentService{store: st, gateway: gw}
}

// CreateOrder validates the request, asks the gateway for an order id,
// and only then persists the pending order. The gateway call happens
// outside any database transaction; if it fails, nothing is persisted.
func (s *PaymentService) CreateOrder(ctx context.Context, subject models.SubjectRef,
	planID *string, amount int64, currency models.Currency, receipt string) (*models.PaymentOrder, error) {

	if !subject.Valid() {
		return nil, apperr.E(apperr.Validation, "exactly one of registration_id or user_id is required")
	}
	if amount <= 0 {
		return nil, apperr.E(apperr.Validation, "amount must be a positive integer in minor units")
	}
	if !currency.Valid() {
		return nil, apperr.E(apperr.Validation, "currency must be INR or USD")
	}
	if receipt == "" {
		return nil, apperr.E(apperr.Validation, "receipt is required")
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amount, string(currency), receipt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	o := &models.PaymentOrder{
		ID:             uuid.New(),
		Subject:        subject,
		PlanID:         planID,
		Amount:         amount,
		Currency:       currency,
		GatewayOrderID: gatewayOrderID,
		Status:         models.OrderPending,
		Receipt:        receipt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// VerifyCallback settles an order from the gateway's signed callback.
//
// Replays and late callbacks return the recorded terminal outcome with
// no side effects and no re-verification. For a still-pending order the
// signature decides the transition; the completed flip and the
// entitlement outbox event commit atomically, and concurrent callbacks
// race on the store's status condition so at most one wins.
func (s *PaymentService) VerifyCallback(ctx context.Context, gatewayOrderID, gatewayPaymentID, gatewaySignature string) (*models.PaymentOrder, error) {
	if gatewayOrderID == "" || gatewayPaymentID == "" || gatewaySignature == "" {
		return nil, apperr.E(apperr.Validation, "order id, payment id and signature are required")
	}

	o, err := s.store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	if o.Status.Terminal() {
		return s.recordedOutcome(o)
	}

	if !s.gateway.VerifySignature(gatewayOrderID, gatewayPaymentID, gatewaySignature) {
		failed, err := s.store.FailOrder(ctx, gatewayOrderID, gatewayPaymentID)
		if apperr.IsKind(err, apperr.InvalidState) {
			return s.rereadOutcome(ctx, gatewayOrderID)
		}
		if err != nil {
			return nil, err
		}
		return failed, apperr.E(apperr.SignatureInvalid, "payment verification failed")
	}

	payload, _ := json.Marshal(EntitlementPayload{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		RegistrationID: o.Subject.RegistrationID,
		UserID:         o.Subject.UserID,
		PlanID:         o.PlanID,
	})
	evt := &models.OutboxEvent{
		ID:      uuid.New(),
		Topic:   models.TopicEntitlementActivate,
		Payload: string(payload),
	}

	completed, err := s.store.CompleteOrder(ctx, gatewayOrderID, gatewayPaymentID, gatewaySignature, evt)
	if apperr.IsKind(err, apperr.InvalidState) {
		// A concurrent callback or cancellation settled the order first.
		return s.rereadOutcome(ctx, gatewayOrderID)
	}
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// recordedOutcome reproduces the result of the transition that already
// happened: completed and cancelled replay as no-ops, failed replays the
// signature rejection.
func (s *PaymentService) recordedOutcome(o *models.PaymentOrder) (*models.PaymentOrder, error) {
	if o.Status == models.OrderFailed {
		return o, apperr.E(apperr.SignatureInvalid, "payment verification failed")
	}
	return o, nil
}

func (s *PaymentService) rereadOutcome(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	o, err := s.store.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	return s.recordedOutcome(o)
}

// Cancel lets the owning subject abandon a still-pending order. A late
// gateway callback for a cancelled order replays as a no-op.
func (s *PaymentService) Cancel(ctx context.Context, orderID uuid.UUID, requester models.SubjectRef) (*models.PaymentOrder, error) {
	if !requester.Valid() {
		return nil, apperr.E(apperr.Validation, "exactly one of registration_id or user_id is required")
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	if !o.Subject.Equal(requester) {
		return nil, apperr.E(apperr.Forbidden, "order belongs to a different subject")
	}

	return s.store.CancelOrder(ctx, orderID)
}

// GetOrder returns an order by internal id.
func (s *PaymentService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	return o, nil
}
