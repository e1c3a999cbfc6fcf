package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_number, amount, method, reference, status, verified_at, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.OrderNumber,
		&p.Amount,
		&p.Method,
		&p.Reference,
		&p.Status,
		&p.VerifiedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

type CreatePaymentParams struct {
	OrderNumber string
	Amount      pgtype.Numeric
	Method      string
	Reference   pgtype.Text
	Status      string
	VerifiedAt  pgtype.Timestamptz
}

const createPayment = `
INSERT INTO payments (order_number, amount, method, reference, status, verified_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + paymentColumns

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderNumber,
		arg.Amount,
		arg.Method,
		arg.Reference,
		arg.Status,
		arg.VerifiedAt,
	)
	return scanPayment(row)
}

const getPayment = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const getPaymentByOrderNumber = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_number = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetPaymentByOrderNumber(ctx context.Context, orderNumber string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByOrderNumber, orderNumber))
}

const listPaymentsByOrderNumber = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_number = $1
ORDER BY created_at`

func (q *Queries) ListPaymentsByOrderNumber(ctx context.Context, orderNumber string) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrderNumber, orderNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type UpdatePaymentStatusParams struct {
	ID         uuid.UUID
	Status     string
	VerifiedAt pgtype.Timestamptz
}

const updatePaymentStatus = `
UPDATE payments
SET status = $2, verified_at = $3, updated_at = now()
WHERE id = $1
RETURNING ` + paymentColumns

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, updatePaymentStatus, arg.ID, arg.Status, arg.VerifiedAt))
}
