package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/enum"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// pointsPerAmount is the spend required to earn one loyalty point.
const pointsPerAmount = 10000

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidPrice         = errors.New("price must be >= 0")
	ErrInvalidDiscount      = errors.New("discount must be between 0 and price*quantity")
	ErrMissingItemName      = errors.New("item name is required")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidCustomerID    = errors.New("invalid customer_id")
	ErrInvalidUserID        = errors.New("invalid created_by")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrStatusConflict       = errors.New("order status changed, please retry")
	ErrOrderNotPending      = errors.New("only pending orders can be edited")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
}

// InventoryStore adjusts product stock levels. Satisfied by *database.Queries.
type InventoryStore interface {
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
}

// LoyaltyStore maintains customer point balances and the append-only ledger.
// Satisfied by *database.Queries.
type LoyaltyStore interface {
	AdjustCustomerPoints(ctx context.Context, arg database.AdjustCustomerPointsParams) (database.Customer, error)
	CreatePointsEntry(ctx context.Context, arg database.CreatePointsEntryParams) (database.PointsEntry, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CustomerID    string
	PaymentMethod string
	Notes         string
	CreatedBy     string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order. Name and Price are a
// denormalized snapshot of the product at sale time.
type CreateOrderItemRequest struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int32
	Discount  decimal.Decimal
}

// UpdateOrderRequest replaces the item list of a pending order.
type UpdateOrderRequest struct {
	PaymentMethod string
	Notes         string
	Items         []CreateOrderItemRequest
}

// OrderWithItems is a full order with its line items.
type OrderWithItems struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderListFilter carries the optional listing predicates. Zero values
// disable the corresponding filter; both dates are inclusive.
type OrderListFilter struct {
	Status     string
	CustomerID string
	StartDate  time.Time
	EndDate    time.Time
}

// OrderListResult is one page of orders with pagination metadata.
type OrderListResult struct {
	Orders []database.Order
	Total  int64
	Page   int
	Pages  int
}

// OrderService owns the order lifecycle: creation, status transitions, and
// their inventory/loyalty side effects. Collaborators are injected; there is
// no ambient state.
type OrderService struct {
	store     OrderStore
	inventory InventoryStore
	loyalty   LoyaltyStore
	pool      TxBeginner
	newStore  NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(store OrderStore, inventory InventoryStore, loyalty LoyaltyStore, pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{
		store:     store,
		inventory: inventory,
		loyalty:   loyalty,
		pool:      pool,
		newStore:  newStore,
	}
}

// preparedItem holds a validated item ready for insertion.
type preparedItem struct {
	productID uuid.UUID
	name      string
	price     decimal.Decimal
	quantity  int32
	discount  decimal.Decimal
	subtotal  decimal.Decimal
}

// Create validates the request, computes totals, and persists the order with
// status pending. No inventory or loyalty side effects happen here; those are
// tied to the pending->completed transition. Retries up to
// maxOrderNumberRetries times on order_number unique constraint violations
// (two orders created within the same second can draw the same number).
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderWithItems, error) {
	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = enum.PaymentMethodCash
	}
	if !isValidPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	items, subtotal, err := prepareItems(req.Items)
	if err != nil {
		return nil, err
	}

	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	createdBy := pgtype.UUID{}
	if req.CreatedBy != "" {
		uid, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			return nil, ErrInvalidUserID
		}
		createdBy = pgtype.UUID{Bytes: uid, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// tax is reserved for future use and always zero.
	tax := decimal.Zero
	total := subtotal.Add(tax)

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, database.CreateOrderParams{
			OrderNumber:   generateOrderNumber(),
			CustomerID:    customerID,
			PaymentMethod: paymentMethod,
			Status:        enum.OrderStatusPending,
			Subtotal:      decimalToNumeric(subtotal),
			Tax:           decimalToNumeric(tax),
			Total:         decimalToNumeric(total),
			Notes:         notes,
			CreatedBy:     createdBy,
		}, items)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// createOrderTx inserts the order and its items in a single transaction.
// Order and items form one aggregate; partial inserts would be unreadable.
func (s *OrderService) createOrderTx(ctx context.Context, params database.CreateOrderParams, items []preparedItem) (*OrderWithItems, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	inserted := make([]database.OrderItem, 0, len(items))
	for _, it := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: it.productID,
			Name:      it.name,
			Price:     decimalToNumeric(it.price),
			Quantity:  it.quantity,
			Discount:  decimalToNumeric(it.discount),
			Subtotal:  decimalToNumeric(it.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		inserted = append(inserted, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderWithItems{Order: order, Items: inserted}, nil
}

// Transition moves an order to newStatus per the lifecycle state machine and
// applies the inventory/loyalty side effects of the transition.
//
// The status write is a compare-and-set on the previously read status, so two
// concurrent completions cannot both apply side effects; the loser gets
// ErrStatusConflict. The side-effect writes that follow are independent
// single-document updates, NOT a transaction with the status write: if one
// fails the order keeps its new status, the failure is logged, and the error
// is surfaced for reconciliation.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, newStatus string) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	return s.transition(ctx, order, newStatus)
}

// TransitionByNumber is Transition keyed by the human-facing order number.
func (s *OrderService) TransitionByNumber(ctx context.Context, orderNumber, newStatus string) (database.Order, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order by number: %w", err)
	}
	return s.transition(ctx, order, newStatus)
}

// Void cancels an order: inventory is restored and loyalty points reversed if
// the order had been completed. Unlike the transition endpoints it is its own
// operation because cancellation is the one transition allowed from two
// states.
func (s *OrderService) Void(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	return s.Transition(ctx, orderID, enum.OrderStatusCancelled)
}

// VoidByNumber is Void keyed by the order number.
func (s *OrderService) VoidByNumber(ctx context.Context, orderNumber string) (database.Order, error) {
	return s.TransitionByNumber(ctx, orderNumber, enum.OrderStatusCancelled)
}

func (s *OrderService) transition(ctx context.Context, order database.Order, newStatus string) (database.Order, error) {
	if !isValidOrderStatus(newStatus) {
		return database.Order{}, ErrInvalidStatus
	}
	if err := validateTransition(order.Status, newStatus); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         newStatus,
		ExpectedStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row exists but the status moved between our read and write.
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if err := s.applySideEffects(ctx, updated, order.Status, newStatus); err != nil {
		return updated, err
	}
	return updated, nil
}

// applySideEffects performs the inventory and loyalty writes tied to a
// transition that already happened.
func (s *OrderService) applySideEffects(ctx context.Context, order database.Order, from, to string) error {
	switch {
	case from == enum.OrderStatusPending && to == enum.OrderStatusCompleted:
		if err := s.adjustStockForItems(ctx, order, -1); err != nil {
			return err
		}
		if order.CustomerID.Valid {
			return s.adjustLoyalty(ctx, order, false)
		}
	case from == enum.OrderStatusCompleted && to == enum.OrderStatusCancelled:
		if err := s.adjustStockForItems(ctx, order, 1); err != nil {
			return err
		}
		if order.CustomerID.Valid {
			return s.adjustLoyalty(ctx, order, true)
		}
	}
	return nil
}

// adjustStockForItems applies sign*quantity to each item's product stock.
// Stock has no lower bound; concurrent completions beyond available stock
// drive it negative rather than failing.
func (s *OrderService) adjustStockForItems(ctx context.Context, order database.Order, sign int32) error {
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	for _, item := range items {
		_, err := s.inventory.AdjustProductStock(ctx, database.AdjustProductStockParams{
			ID:    item.ProductID,
			Delta: sign * item.Quantity,
		})
		if err != nil {
			log.Printf("ERROR: stock adjustment failed for order %s product %s, reconcile manually: %v",
				order.OrderNumber, item.ProductID, err)
			return fmt.Errorf("adjust stock for product %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// adjustLoyalty accrues (or, when reverse is set, reverses) the points and
// lifetime spend earned by an order: floor(total/pointsPerAmount) points,
// recorded in the customer ledger. Reversal does not floor-guard the balance.
func (s *OrderService) adjustLoyalty(ctx context.Context, order database.Order, reverse bool) error {
	total := numericToDecimal(order.Total)
	points := int32(total.Div(decimal.NewFromInt(pointsPerAmount)).IntPart())
	spent := total
	reason := "order " + order.OrderNumber + " completed"
	if reverse {
		points = -points
		spent = total.Neg()
		reason = "order " + order.OrderNumber + " voided"
	}

	customerID := uuid.UUID(order.CustomerID.Bytes)
	_, err := s.loyalty.AdjustCustomerPoints(ctx, database.AdjustCustomerPointsParams{
		ID:         customerID,
		PointsDiff: points,
		SpentDiff:  decimalToNumeric(spent),
	})
	if err != nil {
		log.Printf("ERROR: loyalty adjustment failed for order %s customer %s, reconcile manually: %v",
			order.OrderNumber, customerID, err)
		return fmt.Errorf("adjust customer points: %w", err)
	}

	_, err = s.loyalty.CreatePointsEntry(ctx, database.CreatePointsEntryParams{
		CustomerID: customerID,
		Points:     points,
		Reason:     pgtype.Text{String: reason, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("create points entry: %w", err)
	}
	return nil
}

// UpdateByNumber replaces the item list (and optionally payment method and
// notes) of a pending order and recomputes its totals. Completed and
// cancelled orders are immutable through this path: their items already drove
// inventory and loyalty writes.
func (s *OrderService) UpdateByNumber(ctx context.Context, orderNumber string, req UpdateOrderRequest) (*OrderWithItems, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	if order.Status != enum.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = order.PaymentMethod
	}
	if !isValidPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	items, subtotal, err := prepareItems(req.Items)
	if err != nil {
		return nil, err
	}

	notes := order.Notes
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	tax := decimal.Zero
	total := subtotal.Add(tax)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	inserted := make([]database.OrderItem, 0, len(items))
	for _, it := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: it.productID,
			Name:      it.name,
			Price:     decimalToNumeric(it.price),
			Quantity:  it.quantity,
			Discount:  decimalToNumeric(it.discount),
			Subtotal:  decimalToNumeric(it.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		inserted = append(inserted, item)
	}

	updated, err := store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
		ID:            order.ID,
		PaymentMethod: paymentMethod,
		Notes:         notes,
		Subtotal:      decimalToNumeric(subtotal),
		Tax:           decimalToNumeric(tax),
		Total:         decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderWithItems{Order: updated, Items: inserted}, nil
}

// List returns one page of orders matching the filter, newest first. Pages
// are 1-indexed; an out-of-range page yields an empty list with accurate
// totals rather than an error.
func (s *OrderService) List(ctx context.Context, filter OrderListFilter, page, limit int) (*OrderListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	status := pgtype.Text{}
	if filter.Status != "" {
		if !isValidOrderStatus(filter.Status) {
			return nil, ErrInvalidStatus
		}
		status = pgtype.Text{String: filter.Status, Valid: true}
	}

	customerID := pgtype.UUID{}
	if filter.CustomerID != "" {
		cid, err := uuid.Parse(filter.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	startDate := pgtype.Timestamptz{}
	if !filter.StartDate.IsZero() {
		startDate = pgtype.Timestamptz{Time: filter.StartDate, Valid: true}
	}
	endDate := pgtype.Timestamptz{}
	if !filter.EndDate.IsZero() {
		endDate = pgtype.Timestamptz{Time: filter.EndDate, Valid: true}
	}

	total, err := s.store.CountOrders(ctx, database.CountOrdersParams{
		Status:     status,
		CustomerID: customerID,
		StartDate:  startDate,
		EndDate:    endDate,
	})
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		Status:     status,
		CustomerID: customerID,
		StartDate:  startDate,
		EndDate:    endDate,
		Limit:      int32(limit),
		Offset:     int32((page - 1) * limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &OrderListResult{
		Orders: orders,
		Total:  total,
		Page:   page,
		Pages:  pages,
	}, nil
}

// --- Helpers ---

// prepareItems validates every line and returns the prepared items plus the
// order subtotal: sum of price*quantity - discount over all lines.
func prepareItems(items []CreateOrderItemRequest) ([]preparedItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	prepared := make([]preparedItem, 0, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		if item.Name == "" {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMissingItemName)
		}
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidPrice)
		}
		lineTotal := item.Price.Mul(decimal.NewFromInt32(item.Quantity))
		if item.Discount.IsNegative() || item.Discount.GreaterThan(lineTotal) {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidDiscount)
		}

		lineSubtotal := lineTotal.Sub(item.Discount)
		subtotal = subtotal.Add(lineSubtotal)
		prepared = append(prepared, preparedItem{
			productID: productID,
			name:      item.Name,
			price:     item.Price,
			quantity:  item.Quantity,
			discount:  item.Discount,
			subtotal:  lineSubtotal,
		})
	}
	return prepared, subtotal, nil
}

// generateOrderNumber builds ORD + UTC timestamp + 4 random digits. Not
// guaranteed unique within a second; the DB unique constraint plus the retry
// loop in Create handle collisions.
func generateOrderNumber() string {
	return fmt.Sprintf("ORD%s%04d", time.Now().UTC().Format("20060102150405"), rand.Intn(10000))
}

// isOrderNumberConflict checks for a unique constraint violation on the
// order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// cancelled has no entry: it is terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
	enum.OrderStatusCompleted: {enum.OrderStatusCancelled},
}

// validateTransition checks if the transition from current to next is allowed.
func validateTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
