package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxMessageLen bounds proposal messages and response messages.
const MaxMessageLen = 1000

// IdentityRef identifies a member of the platform. The core never
// dereferences it; profiles live elsewhere.
type IdentityRef string

// ProposalStatus represents valid proposal states
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalAccepted  ProposalStatus = "accepted"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalMaybe     ProposalStatus = "maybe"
	ProposalWithdrawn ProposalStatus = "withdrawn"
	ProposalExpired   ProposalStatus = "expired"
)

// Active reports whether the status blocks a new proposal for the same
// ordered pair. Only pending and accepted proposals hold the slot.
func (s ProposalStatus) Active() bool {
	return s == ProposalPending || s == ProposalAccepted
}

// ResponseDecision reports whether s is a status the proposed party may
// choose when responding.
func ResponseDecision(s ProposalStatus) bool {
	return s == ProposalAccepted || s == ProposalRejected || s == ProposalMaybe
}

// Proposal represents a mutual-interest request between two members.
// Contact details of either party are revealed only on acceptance.
type Proposal struct {
	ID              uuid.UUID      `json:"id"`
	ProposerID      IdentityRef    `json:"proposer_id"`
	ProposedID      IdentityRef    `json:"proposed_id"`
	Message         string         `json:"message,omitempty"`
	Status          ProposalStatus `json:"status"`
	ResponseMessage *string        `json:"response_message,omitempty"`
	ContactRevealed bool           `json:"contact_revealed"`
	ExpiresAt       time.Time      `json:"expires_at"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ExpiredBy reports whether the proposal's TTL has passed at the given
// instant, regardless of whether a sweep has flipped the status yet.
func (p *Proposal) ExpiredBy(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Currency codes accepted by the payment core.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether the currency is one the gateway account supports.
func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// OrderStatus represents valid payment order states
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the order can no longer transition.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// SubjectRef ties a payment order to exactly one payer subject: either a
// pre-account registration or an existing user, never both.
type SubjectRef struct {
	RegistrationID *string `json:"registration_id,omitempty"`
	UserID         *string `json:"user_id,omitempty"`
}

// Valid reports whether exactly one of the two references is set.
func (s SubjectRef) Valid() bool {
	return (s.RegistrationID != nil) != (s.UserID != nil)
}

// Equal compares two subject refs by value.
func (s SubjectRef) Equal(o SubjectRef) bool {
	if (s.RegistrationID == nil) != (o.RegistrationID == nil) {
		return false
	}
	if (s.UserID == nil) != (o.UserID == nil) {
		return false
	}
	if s.RegistrationID != nil && *s.RegistrationID != *o.RegistrationID {
		return false
	}
	if s.UserID != nil && *s.UserID != *o.UserID {
		return false
	}
	return true
}

func (s SubjectRef) String() string {
	if s.RegistrationID != nil {
		return "registration:" + *s.RegistrationID
	}
	if s.UserID != nil {
		return "user:" + *s.UserID
	}
	return "none"
}

// PaymentOrder represents a gateway-backed purchase of a plan.
// Amount is always an integer in the smallest currency unit.
type PaymentOrder struct {
	ID               uuid.UUID   `json:"id"`
	Subject          SubjectRef  `json:"subject"`
	PlanID           *string     `json:"plan_id,omitempty"`
	Amount           int64       `json:"amount"`
	Currency         Currency    `json:"currency"`
	GatewayOrderID   string      `json:"gateway_order_id"`
	GatewayPaymentID *string     `json:"gateway_payment_id,omitempty"`
	GatewaySignature *string     `json:"-"`
	Status           OrderStatus `json:"status"`
	Receipt          string      `json:"receipt"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// FormatAmount renders the amount in major units for display
// ("500.00 INR" for amount=50000). Read-side only; state keeps minor units.
func (o *PaymentOrder) FormatAmount() string {
	return fmt.Sprintf("%d.%02d %s", o.Amount/100, o.Amount%100, o.Currency)
}

// Outbox topics consumed by the dispatcher worker.
const (
	TopicProposalCreated     = "proposal.created"
	TopicContactRevealed     = "proposal.contact_revealed"
	TopicEntitlementActivate = "payment.entitlement_activate"
)

// OutboxEvent is a side effect recorded atomically with a state
// transition and delivered at-least-once by a background worker.
type OutboxEvent struct {
	ID           uuid.UUID  `json:"id"`
	Topic        string     `json:"topic"`
	Payload      string     `json:"payload"`
	Attempts     int        `json:"attempts"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// API Request/Response types

type SendProposalRequest struct {
	ProposerID IdentityRef `json:"proposer_id"`
	ProposedID IdentityRef `json:"proposed_id"`
	Message    string      `json:"message"`
}

type RespondProposalRequest struct {
	ResponderID     IdentityRef    `json:"responder_id"`
	Decision        ProposalStatus `json:"decision"`
	ResponseMessage string         `json:"response_message"`
}

type WithdrawProposalRequest struct {
	RequesterID IdentityRef `json:"requester_id"`
}

type CreateOrderRequest struct {
	RegistrationID *string  `json:"registration_id,omitempty"`
	UserID         *string  `json:"user_id,omitempty"`
	PlanID         *string  `json:"plan_id,omitempty"`
	Amount         int64    `json:"amount"`
	Currency       Currency `json:"currency"`
	Receipt        string   `json:"receipt"`
}

type VerifyCallbackRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	GatewaySignature string `json:"razorpay_signature"`
}

type CancelOrderRequest struct {
	RegistrationID *string `json:"registration_id,omitempty"`
	UserID         *string `json:"user_id,omitempty"`
}
