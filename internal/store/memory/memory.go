// Package memory is an in-process implementation of the store
// interfaces. It backs the unit tests and local runs without Postgres;
// the mutex makes it the same kind of atomicity boundary the SQL stores
// are.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/store"
)

var (
	_ store.ProposalStore = (*Store)(nil)
	_ store.PaymentStore  = (*Store)(nil)
	_ store.OutboxStore   = (*Store)(nil)
)

// Store implements store.ProposalStore, store.PaymentStore and
// store.OutboxStore over plain maps.
type Store struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*models.Proposal
	orders    map[uuid.UUID]*models.PaymentOrder
	byGateway map[string]uuid.UUID
	outbox    []*models.OutboxEvent
}

func New() *Store {
	return &Store{
		proposals: make(map[uuid.UUID]*models.Proposal),
		orders:    make(map[uuid.UUID]*models.PaymentOrder),
		byGateway: make(map[string]uuid.UUID),
	}
}

func cloneProposal(p *models.Proposal) *models.Proposal {
	cp := *p
	if p.ResponseMessage != nil {
		v := *p.ResponseMessage
		cp.ResponseMessage = &v
	}
	if p.RespondedAt != nil {
		v := *p.RespondedAt
		cp.RespondedAt = &v
	}
	return &cp
}

func cloneOrder(o *models.PaymentOrder) *models.PaymentOrder {
	co := *o
	if o.PlanID != nil {
		v := *o.PlanID
		co.PlanID = &v
	}
	if o.GatewayPaymentID != nil {
		v := *o.GatewayPaymentID
		co.GatewayPaymentID = &v
	}
	if o.GatewaySignature != nil {
		v := *o.GatewaySignature
		co.GatewaySignature = &v
	}
	return &co
}

func (s *Store) appendEvent(evt *models.OutboxEvent) {
	if evt == nil {
		return
	}
	e := *evt
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.outbox = append(s.outbox, &e)
}

// --- ProposalStore ---

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal, evt *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.proposals {
		if existing.ProposerID == p.ProposerID && existing.ProposedID == p.ProposedID &&
			existing.Status.Active() {
			return apperr.E(apperr.Conflict, "a proposal to this member is already active")
		}
	}

	s.proposals[p.ID] = cloneProposal(p)
	s.appendEvent(evt)
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, nil
	}
	return cloneProposal(p), nil
}

func (s *Store) ListProposalsByMember(ctx context.Context, member models.IdentityRef) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Proposal
	for _, p := range s.proposals {
		if p.ProposerID == member || p.ProposedID == member {
			out = append(out, *cloneProposal(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TransitionProposal(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus,
	responseMessage *string, respondedAt *time.Time, contactRevealed bool,
	evt *models.OutboxEvent) (*models.Proposal, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "proposal not found")
	}
	if p.Status != from {
		return nil, apperr.E(apperr.InvalidState, "proposal is no longer %s", from)
	}

	p.Status = to
	p.ContactRevealed = contactRevealed
	if responseMessage != nil {
		v := *responseMessage
		p.ResponseMessage = &v
	}
	if respondedAt != nil {
		v := *respondedAt
		p.RespondedAt = &v
	}
	p.UpdatedAt = time.Now()

	s.appendEvent(evt)
	return cloneProposal(p), nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, p := range s.proposals {
		if p.Status == models.ProposalPending && p.ExpiresAt.Before(now) {
			p.Status = models.ProposalExpired
			p.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

// --- PaymentStore ---

func (s *Store) CreateOrder(ctx context.Context, o *models.PaymentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byGateway[o.GatewayOrderID]; exists {
		return apperr.E(apperr.Conflict, "gateway order id already recorded")
	}
	s.orders[o.ID] = cloneOrder(o)
	s.byGateway[o.GatewayOrderID] = o.ID
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (s *Store) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, nil
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *Store) CompleteOrder(ctx context.Context, gatewayOrderID, paymentID, signature string,
	evt *models.OutboxEvent) (*models.PaymentOrder, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	o := s.orders[id]
	if o.Status != models.OrderPending {
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}

	o.Status = models.OrderCompleted
	o.GatewayPaymentID = &paymentID
	o.GatewaySignature = &signature
	o.UpdatedAt = time.Now()

	s.appendEvent(evt)
	return cloneOrder(o), nil
}

func (s *Store) FailOrder(ctx context.Context, gatewayOrderID, paymentID string) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	o := s.orders[id]
	if o.Status != models.OrderPending {
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}

	o.Status = models.OrderFailed
	o.GatewayPaymentID = &paymentID
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (s *Store) CancelOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "payment order not found")
	}
	if o.Status != models.OrderPending {
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}

	o.Status = models.OrderCancelled
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (s *Store) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PaymentOrder
	for _, o := range s.orders {
		if o.Status == models.OrderPending && o.CreatedAt.Before(before) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- OutboxStore ---

func (s *Store) PickPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.OutboxEvent
	for _, e := range s.outbox {
		if e.DispatchedAt == nil {
			out = append(out, *e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.outbox {
		if e.ID == id {
			v := at
			e.DispatchedAt = &v
			return nil
		}
	}
	return apperr.E(apperr.NotFound, "outbox event not found")
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.outbox {
		if e.ID == id {
			e.Attempts++
			return nil
		}
	}
	return apperr.E(apperr.NotFound, "outbox event not found")
}
