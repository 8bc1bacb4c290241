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

const orderColumns = `id, registration_id, user_id, plan_id, amount, currency, gateway_order_id,
	 gateway_payment_id, gateway_signature, status, receipt, created_at, updated_at`

func scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := row.Scan(&o.ID, &o.Subject.RegistrationID, &o.Subject.UserID, &o.PlanID,
		&o.Amount, &o.Currency, &o.GatewayOrderID, &o.GatewayPaymentID,
		&o.GatewaySignature, &o.Status, &o.Receipt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder persists a pending order. The gateway order id is already
// known at this point; an order row never exists without one.
func (db *DB) CreateOrder(ctx context.Context, o *models.PaymentOrder) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO payment_orders (id, registration_id, user_id, plan_id, amount, currency,
		 gateway_order_id, status, receipt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.Subject.RegistrationID, o.Subject.UserID, o.PlanID, o.Amount, o.Currency,
		o.GatewayOrderID, o.Status, o.Receipt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperr.E(apperr.Conflict, "gateway order id already recorded")
		}
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by internal id, (nil, nil) when absent.
func (db *DB) GetOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	o, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM payment_orders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return o, nil
}

// GetOrderByGatewayID retrieves an order by the gateway's order id.
func (db *DB) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	o, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM payment_orders WHERE gateway_order_id = $1`, gatewayOrderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return o, nil
}

// CompleteOrder flips pending -> completed and appends the entitlement
// outbox event in the same transaction, so activation can never be lost
// between the status flip and the external call. Concurrent callbacks
// race on the status condition; exactly one wins.
func (db *DB) CompleteOrder(ctx context.Context, gatewayOrderID, paymentID, signature string,
	evt *models.OutboxEvent) (*models.PaymentOrder, error) {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx,
		`UPDATE payment_orders
		 SET status = $1, gateway_payment_id = $2, gateway_signature = $3, updated_at = NOW()
		 WHERE gateway_order_id = $4 AND status = $5
		 RETURNING `+orderColumns,
		models.OrderCompleted, paymentID, signature, gatewayOrderID, models.OrderPending))
	if err == sql.ErrNoRows {
		current, getErr := db.GetOrderByGatewayID(ctx, gatewayOrderID)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperr.E(apperr.NotFound, "payment order not found")
		}
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment order: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}
	return o, nil
}

// FailOrder flips pending -> failed. The rejected signature is not
// stored.
func (db *DB) FailOrder(ctx context.Context, gatewayOrderID, paymentID string) (*models.PaymentOrder, error) {
	o, err := scanOrder(db.QueryRowContext(ctx,
		`UPDATE payment_orders
		 SET status = $1, gateway_payment_id = $2, updated_at = NOW()
		 WHERE gateway_order_id = $3 AND status = $4
		 RETURNING `+orderColumns,
		models.OrderFailed, paymentID, gatewayOrderID, models.OrderPending))
	if err == sql.ErrNoRows {
		current, getErr := db.GetOrderByGatewayID(ctx, gatewayOrderID)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperr.E(apperr.NotFound, "payment order not found")
		}
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fail payment order: %w", err)
	}
	return o, nil
}

// CancelOrder flips pending -> cancelled.
func (db *DB) CancelOrder(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	o, err := scanOrder(db.QueryRowContext(ctx,
		`UPDATE payment_orders
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING `+orderColumns,
		models.OrderCancelled, id, models.OrderPending))
	if err == sql.ErrNoRows {
		current, getErr := db.GetOrder(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperr.E(apperr.NotFound, "payment order not found")
		}
		return nil, apperr.E(apperr.InvalidState, "order is no longer pending")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel payment order: %w", err)
	}
	return o, nil
}

// ListStalePending returns pending orders older than the cutoff.
func (db *DB) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.PaymentOrder, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM payment_orders
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at ASC
		 LIMIT $3`,
		models.OrderPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var orders []models.PaymentOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
