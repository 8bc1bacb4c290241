// Package store defines the persistence boundary of the core. The stores
// are the sole lock/transaction boundary: uniqueness and conditional
// transitions are enforced here, never by read-then-write in a service.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
)

// ProposalStore persists proposals and enforces their invariants.
//
// Lookups return (nil, nil) when the record is absent. Conditional
// transitions fail with apperr.InvalidState when the record is no longer
// in the expected status, so a losing writer observes a typed error
// instead of corrupting state.
type ProposalStore interface {
	// CreateProposal inserts a pending proposal and, atomically, its
	// outbox event. Fails with apperr.Conflict if an active
	// (pending/accepted) proposal already exists for the same ordered
	// pair.
	CreateProposal(ctx context.Context, p *models.Proposal, evt *models.OutboxEvent) error

	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)

	// ListProposalsByMember returns proposals the member sent or
	// received, newest first.
	ListProposalsByMember(ctx context.Context, member models.IdentityRef) ([]models.Proposal, error)

	// TransitionProposal flips status from `from` to `to` in one
	// conditional update, setting response fields and (when evt != nil)
	// appending the outbox event in the same transaction. Returns the
	// updated proposal, or apperr.InvalidState if the status was no
	// longer `from` at write time.
	TransitionProposal(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus,
		responseMessage *string, respondedAt *time.Time, contactRevealed bool,
		evt *models.OutboxEvent) (*models.Proposal, error)

	// SweepExpired flips every pending proposal whose expiresAt is
	// before now to expired and returns how many it flipped. Conditional
	// on status still being pending at write time, so a concurrent
	// response always wins.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// PaymentStore persists payment orders and their terminal outcomes.
type PaymentStore interface {
	CreateOrder(ctx context.Context, o *models.PaymentOrder) error

	GetOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)

	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)

	// CompleteOrder flips a pending order to completed, records the
	// payment id and signature, and appends the entitlement outbox
	// event, all in one transaction. Returns apperr.InvalidState if the
	// order is no longer pending, which callers treat as "somebody else
	// already settled it".
	CompleteOrder(ctx context.Context, gatewayOrderID, paymentID, signature string,
		evt *models.OutboxEvent) (*models.PaymentOrder, error)

	// FailOrder flips a pending order to failed and records the payment
	// id. The invalid signature itself is never persisted.
	FailOrder(ctx context.Context, gatewayOrderID, paymentID string) (*models.PaymentOrder, error)

	// CancelOrder flips a pending order to cancelled.
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)

	// ListStalePending returns pending orders created before the cutoff,
	// oldest first, capped at limit.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.PaymentOrder, error)
}

// OutboxStore hands recorded side effects to the dispatcher worker.
type OutboxStore interface {
	// PickPending returns undispatched events, oldest first.
	PickPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)

	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed bumps the attempt counter; the event stays eligible for
	// the next tick.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
