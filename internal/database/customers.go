package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, name, phone, email, address, birthday, notes, membership_level, points, total_spent, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Address,
		&c.Birthday,
		&c.Notes,
		&c.MembershipLevel,
		&c.Points,
		&c.TotalSpent,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

type CreateCustomerParams struct {
	Name     string
	Phone    string
	Email    pgtype.Text
	Address  pgtype.Text
	Birthday pgtype.Date
	Notes    pgtype.Text
}

const createCustomer = `
INSERT INTO customers (name, phone, email, address, birthday, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + customerColumns

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer,
		arg.Name,
		arg.Phone,
		arg.Email,
		arg.Address,
		arg.Birthday,
		arg.Notes,
	)
	return scanCustomer(row)
}

const getCustomer = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

type ListCustomersParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

const listCustomers = `
SELECT ` + customerColumns + `
FROM customers
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3`

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

const countCustomers = `
SELECT count(*)
FROM customers
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')`

func (q *Queries) CountCustomers(ctx context.Context, search pgtype.Text) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countCustomers, search).Scan(&total)
	return total, err
}

type UpdateCustomerParams struct {
	ID              uuid.UUID
	Name            string
	Phone           string
	Email           pgtype.Text
	Address         pgtype.Text
	Birthday        pgtype.Date
	Notes           pgtype.Text
	MembershipLevel string
}

const updateCustomer = `
UPDATE customers
SET name = $2, phone = $3, email = $4, address = $5, birthday = $6, notes = $7,
    membership_level = $8, updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer,
		arg.ID,
		arg.Name,
		arg.Phone,
		arg.Email,
		arg.Address,
		arg.Birthday,
		arg.Notes,
		arg.MembershipLevel,
	)
	return scanCustomer(row)
}

const softDeleteCustomer = `
UPDATE customers
SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id`

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCustomer, id).Scan(&deleted)
	return deleted, err
}

// AdjustCustomerPointsParams applies signed deltas to the loyalty balance and
// lifetime spend in one atomic update. Balances are not floor-guarded: a
// reversal can drive points negative (known limitation, surfaced not hidden).
type AdjustCustomerPointsParams struct {
	ID         uuid.UUID
	PointsDiff int32
	SpentDiff  pgtype.Numeric
}

const adjustCustomerPoints = `
UPDATE customers
SET points = points + $2, total_spent = total_spent + $3, updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

func (q *Queries) AdjustCustomerPoints(ctx context.Context, arg AdjustCustomerPointsParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, adjustCustomerPoints, arg.ID, arg.PointsDiff, arg.SpentDiff))
}

type CreatePointsEntryParams struct {
	CustomerID uuid.UUID
	Points     int32
	Reason     pgtype.Text
}

const createPointsEntry = `
INSERT INTO points_entries (customer_id, points, reason)
VALUES ($1, $2, $3)
RETURNING id, customer_id, points, reason, created_at`

func (q *Queries) CreatePointsEntry(ctx context.Context, arg CreatePointsEntryParams) (PointsEntry, error) {
	row := q.db.QueryRow(ctx, createPointsEntry, arg.CustomerID, arg.Points, arg.Reason)
	var e PointsEntry
	err := row.Scan(&e.ID, &e.CustomerID, &e.Points, &e.Reason, &e.CreatedAt)
	return e, err
}

const listPointsHistory = `
SELECT id, customer_id, points, reason, created_at
FROM points_entries
WHERE customer_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListPointsHistory(ctx context.Context, customerID uuid.UUID) ([]PointsEntry, error) {
	rows, err := q.db.Query(ctx, listPointsHistory, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []PointsEntry
	for rows.Next() {
		var e PointsEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Points, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
