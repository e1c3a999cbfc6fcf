package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, payment_method, status, subtotal, tax, total, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.PaymentMethod,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.Total,
		&o.Notes,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	OrderNumber   string
	CustomerID    pgtype.UUID
	PaymentMethod string
	Status        string
	Subtotal      pgtype.Numeric
	Tax           pgtype.Numeric
	Total         pgtype.Numeric
	Notes         pgtype.Text
	CreatedBy     pgtype.UUID
}

const createOrder = `
INSERT INTO orders (order_number, customer_id, payment_method, status, subtotal, tax, total, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.PaymentMethod,
		arg.Status,
		arg.Subtotal,
		arg.Tax,
		arg.Total,
		arg.Notes,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Quantity  int32
	Discount  pgtype.Numeric
	Subtotal  pgtype.Numeric
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, name, price, quantity, discount, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, product_id, name, price, quantity, discount, subtotal`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Name,
		arg.Price,
		arg.Quantity,
		arg.Discount,
		arg.Subtotal,
	)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Name, &i.Price, &i.Quantity, &i.Discount, &i.Subtotal)
	return i, err
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, name, price, quantity, discount, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Name, &i.Price, &i.Quantity, &i.Discount, &i.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteOrderItemsByOrder = `DELETE FROM order_items WHERE order_id = $1`

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItemsByOrder, orderID)
	return err
}

// ListOrdersParams carries optional filters; invalid (zero) pgtype values
// disable the corresponding predicate.
type ListOrdersParams struct {
	Status     pgtype.Text
	CustomerID pgtype.UUID
	StartDate  pgtype.Timestamptz
	EndDate    pgtype.Timestamptz
	Limit      int32
	Offset     int32
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR customer_id = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at <= $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.CustomerID,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CountOrdersParams struct {
	Status     pgtype.Text
	CustomerID pgtype.UUID
	StartDate  pgtype.Timestamptz
	EndDate    pgtype.Timestamptz
}

const countOrders = `
SELECT count(*)
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR customer_id = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at <= $4)`

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countOrders, arg.Status, arg.CustomerID, arg.StartDate, arg.EndDate).Scan(&total)
	return total, err
}

// UpdateOrderStatusParams is a compare-and-set: the row is only updated when
// its current status equals ExpectedStatus. A pgx.ErrNoRows result means the
// status changed between the caller's read and this write.
type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	Status         string
	ExpectedStatus string
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.ExpectedStatus))
}

type UpdateOrderDetailsParams struct {
	ID            uuid.UUID
	PaymentMethod string
	Notes         pgtype.Text
	Subtotal      pgtype.Numeric
	Tax           pgtype.Numeric
	Total         pgtype.Numeric
}

const updateOrderDetails = `
UPDATE orders
SET payment_method = $2, notes = $3, subtotal = $4, tax = $5, total = $6, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderDetails,
		arg.ID,
		arg.PaymentMethod,
		arg.Notes,
		arg.Subtotal,
		arg.Tax,
		arg.Total,
	))
}
