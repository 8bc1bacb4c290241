// Package service implements the two lifecycle machines: proposals and
// payment orders. Services validate and decide transitions; the stores
// make the transitions atomic.
package service

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/store"
)

// ProposalService manages the proposal lifecycle: send, respond,
// withdraw, and the passive expiry sweep.
type ProposalService struct {
	store store.ProposalStore
	ttl   time.Duration
}

func NewProposalService(st store.ProposalStore, ttl time.Duration) *ProposalService {
	return &ProposalService{store: st, ttl: ttl}
}

type proposalEventPayload struct {
	ProposalID uuid.UUID          `json:"proposal_id"`
	ProposerID models.IdentityRef `json:"proposer_id"`
	ProposedID models.IdentityRef `json:"proposed_id"`
}

func proposalEvent(topic string, p *models.Proposal) *models.OutboxEvent {
	payload, _ := json.Marshal(proposalEventPayload{
		ProposalID: p.ID,
		ProposerID: p.ProposerID,
		ProposedID: p.ProposedID,
	})
	return &models.OutboxEvent{
		ID:      uuid.New(),
		Topic:   topic,
		Payload: string(payload),
	}
}

// Send creates a pending proposal from proposer to proposed. At most one
// active proposal may exist per ordered pair; the store enforces that
// atomically and a duplicate attempt surfaces as Conflict.
func (s *ProposalService) Send(ctx context.Context, proposerID, proposedID models.IdentityRef, message string) (*models.Proposal, error) {
	if proposerID == "" || proposedID == "" {
		return nil, apperr.E(apperr.Validation, "proposer and proposed member ids are required")
	}
	if proposerID == proposedID {
		return nil, apperr.E(apperr.Validation, "cannot send a proposal to yourself")
	}
	// Characters, not bytes, to match the schema's char_length check.
	if utf8.RuneCountInString(message) > models.MaxMessageLen {
		return nil, apperr.E(apperr.Validation, "message exceeds %d characters", models.MaxMessageLen)
	}

	now := time.Now()
	p := &models.Proposal{
		ID:         uuid.New(),
		ProposerID: proposerID,
		ProposedID: proposedID,
		Message:    message,
		Status:     models.ProposalPending,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateProposal(ctx, p, proposalEvent(models.TopicProposalCreated, p)); err != nil {
		return nil, err
	}
	return p, nil
}

// Respond records the proposed party's decision. A proposal past its TTL
// is rejected here even if the sweep has not flipped it yet, so a stale
// client can never answer an expired proposal.
func (s *ProposalService) Respond(ctx context.Context, proposalID uuid.UUID, responderID models.IdentityRef,
	decision models.ProposalStatus, responseMessage string) (*models.Proposal, error) {

	if !models.ResponseDecision(decision) {
		return nil, apperr.E(apperr.Validation, "decision must be accepted, rejected or maybe")
	}
	if utf8.RuneCountInString(responseMessage) > models.MaxMessageLen {
		return nil, apperr.E(apperr.Validation, "response message exceeds %d characters", models.MaxMessageLen)
	}

	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.E(apperr.NotFound, "proposal not found")
	}
	if p.ProposedID != responderID {
		return nil, apperr.E(apperr.Forbidden, "only the proposed member may respond")
	}
	if p.Status != models.ProposalPending {
		return nil, apperr.E(apperr.InvalidState, "proposal is no longer pending")
	}

	now := time.Now()
	if p.ExpiredBy(now) {
		return nil, apperr.E(apperr.InvalidState, "proposal has expired")
	}

	var msg *string
	if responseMessage != "" {
		msg = &responseMessage
	}

	accepted := decision == models.ProposalAccepted
	var evt *models.OutboxEvent
	if accepted {
		evt = proposalEvent(models.TopicContactRevealed, p)
	}

	// Conditional on still-pending at write time; a concurrent sweep or
	// second responder loses with InvalidState.
	return s.store.TransitionProposal(ctx, proposalID, models.ProposalPending, decision,
		msg, &now, accepted, evt)
}

// Withdraw lets the proposer retract a still-pending proposal.
func (s *ProposalService) Withdraw(ctx context.Context, proposalID uuid.UUID, requesterID models.IdentityRef) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.E(apperr.NotFound, "proposal not found")
	}
	if p.ProposerID != requesterID {
		return nil, apperr.E(apperr.Forbidden, "only the proposer may withdraw")
	}
	if p.Status != models.ProposalPending {
		return nil, apperr.E(apperr.InvalidState, "proposal is no longer pending")
	}

	return s.store.TransitionProposal(ctx, proposalID, models.ProposalPending,
		models.ProposalWithdrawn, nil, nil, false, nil)
}

// Get returns a proposal by id.
func (s *ProposalService) Get(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.E(apperr.NotFound, "proposal not found")
	}
	return p, nil
}

// ListForMember returns proposals the member sent or received.
func (s *ProposalService) ListForMember(ctx context.Context, member models.IdentityRef) ([]models.Proposal, error) {
	if member == "" {
		return nil, apperr.E(apperr.Validation, "member id is required")
	}
	return s.store.ListProposalsByMember(ctx, member)
}

// SweepExpired flips timed-out pending proposals to expired and returns
// the count. Idempotent; safe to run concurrently with responses, which
// always win the race.
func (s *ProposalService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	return s.store.SweepExpired(ctx, now)
}
