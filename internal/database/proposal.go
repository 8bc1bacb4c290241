package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
	"github.com/Arijit65/marriage-app-sub001/internal/models"
)

const proposalColumns = `id, proposer_id, proposed_id, message, status, response_message,
	 contact_revealed, expires_at, responded_at, created_at, updated_at`

func scanProposal(row interface {
	Scan(dest ...interface{}) error
}) (*models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(&p.ID, &p.ProposerID, &p.ProposedID, &p.Message, &p.Status,
		&p.ResponseMessage, &p.ContactRevealed, &p.ExpiresAt, &p.RespondedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProposal inserts a pending proposal and its outbox event in one
// transaction. The partial unique index on (proposer_id, proposed_id)
// makes the duplicate-active check atomic; a violation surfaces as
// Conflict.
func (db *DB) CreateProposal(ctx context.Context, p *models.Proposal, evt *models.OutboxEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposals (id, proposer_id, proposed_id, message, status, contact_revealed,
		 expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ProposerID, p.ProposedID, p.Message, p.Status, p.ContactRevealed,
		p.ExpiresAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperr.E(apperr.Conflict, "a proposal to this member is already active")
		}
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by id, (nil, nil) when absent.
func (db *DB) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := scanProposal(db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// ListProposalsByMember returns proposals sent or received by a member.
func (db *DB) ListProposalsByMember(ctx context.Context, member models.IdentityRef) ([]models.Proposal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals
		 WHERE proposer_id = $1 OR proposed_id = $1
		 ORDER BY created_at DESC`, member)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// TransitionProposal performs a status-conditional update. The WHERE
// clause on the current status is what resolves Respond/Withdraw/Sweep
// races: the losing writer sees no row and gets InvalidState.
func (db *DB) TransitionProposal(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus,
	responseMessage *string, respondedAt *time.Time, contactRevealed bool,
	evt *models.OutboxEvent) (*models.Proposal, error) {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanProposal(tx.QueryRowContext(ctx,
		`UPDATE proposals
		 SET status = $1,
		     response_message = COALESCE($2, response_message),
		     responded_at = COALESCE($3, responded_at),
		     contact_revealed = $4,
		     updated_at = NOW()
		 WHERE id = $5 AND status = $6
		 RETURNING `+proposalColumns,
		to, responseMessage, respondedAt, contactRevealed, id, from))
	if err == sql.ErrNoRows {
		current, getErr := db.GetProposal(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperr.E(apperr.NotFound, "proposal not found")
		}
		return nil, apperr.E(apperr.InvalidState, "proposal is no longer %s", from)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition proposal: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return p, nil
}

// SweepExpired flips timed-out pending proposals to expired. The status
// condition means a response that committed first is never overwritten.
func (db *DB) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE proposals
		 SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND expires_at < $3`,
		models.ProposalExpired, models.ProposalPending, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep proposals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept proposals: %w", err)
	}
	return int(n), nil
}
