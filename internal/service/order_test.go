package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	createOrderFn        func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn    func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderFn           func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getOrderByNumberFn   func(ctx context.Context, orderNumber string) (database.Order, error)
	listOrderItemsFn     func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	deleteOrderItemsFn   func(ctx context.Context, orderID uuid.UUID) error
	updateOrderStatusFn  func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	updateOrderDetailsFn func(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	listOrdersFn         func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	countOrdersFn        func(ctx context.Context, arg database.CountOrdersParams) (int64, error)
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error) {
	return m.getOrderByNumberFn(ctx, orderNumber)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error) {
	return m.updateOrderDetailsFn(ctx, arg)
}
func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listOrdersFn(ctx, arg)
}
func (m *mockOrderStore) CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
	return m.countOrdersFn(ctx, arg)
}

// mockInventoryStore records stock adjustments.
type mockInventoryStore struct {
	adjustFn func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	calls    []database.AdjustProductStockParams
}

func (m *mockInventoryStore) AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
	m.calls = append(m.calls, arg)
	if m.adjustFn != nil {
		return m.adjustFn(ctx, arg)
	}
	return database.Product{ID: arg.ID}, nil
}

// mockLoyaltyStore records point adjustments and ledger entries.
type mockLoyaltyStore struct {
	adjustFn    func(ctx context.Context, arg database.AdjustCustomerPointsParams) (database.Customer, error)
	adjustCalls []database.AdjustCustomerPointsParams
	entryCalls  []database.CreatePointsEntryParams
}

func (m *mockLoyaltyStore) AdjustCustomerPoints(ctx context.Context, arg database.AdjustCustomerPointsParams) (database.Customer, error) {
	m.adjustCalls = append(m.adjustCalls, arg)
	if m.adjustFn != nil {
		return m.adjustFn(ctx, arg)
	}
	return database.Customer{ID: arg.ID}, nil
}
func (m *mockLoyaltyStore) CreatePointsEntry(ctx context.Context, arg database.CreatePointsEntryParams) (database.PointsEntry, error) {
	m.entryCalls = append(m.entryCalls, arg)
	return database.PointsEntry{CustomerID: arg.CustomerID, Points: arg.Points, Reason: arg.Reason}, nil
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func mustDecimal(val string) decimal.Decimal {
	d, err := decimal.NewFromString(val)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestService creates an OrderService with mocked dependencies.
// store is also returned by the NewOrderStore factory, so transactional code
// paths hit the same mock.
func newTestService(store *mockOrderStore, inventory *mockInventoryStore, loyalty *mockLoyaltyStore) *OrderService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(store, inventory, loyalty, pool, newStore)
}

// defaultStore returns a mockOrderStore with pass-through defaults.
// Individual tests override the functions they care about.
func defaultStore() *mockOrderStore {
	return &mockOrderStore{
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:            uuid.New(),
				OrderNumber:   arg.OrderNumber,
				CustomerID:    arg.CustomerID,
				PaymentMethod: arg.PaymentMethod,
				Status:        arg.Status,
				Subtotal:      arg.Subtotal,
				Tax:           arg.Tax,
				Total:         arg.Total,
				Notes:         arg.Notes,
				CreatedBy:     arg.CreatedBy,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:        uuid.New(),
				OrderID:   arg.OrderID,
				ProductID: arg.ProductID,
				Name:      arg.Name,
				Price:     arg.Price,
				Quantity:  arg.Quantity,
				Discount:  arg.Discount,
				Subtotal:  arg.Subtotal,
			}, nil
		},
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		getOrderByNumberFn: func(ctx context.Context, orderNumber string) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return nil, nil
		},
		deleteOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) error {
			return nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		updateOrderDetailsFn: func(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error) {
			return database.Order{ID: arg.ID, PaymentMethod: arg.PaymentMethod, Notes: arg.Notes,
				Subtotal: arg.Subtotal, Tax: arg.Tax, Total: arg.Total, Status: enum.OrderStatusPending}, nil
		},
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			return nil, nil
		},
		countOrdersFn: func(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
			return 0, nil
		},
	}
}

func basicReq() CreateOrderRequest {
	return CreateOrderRequest{
		PaymentMethod: enum.PaymentMethodCash,
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Americano", Price: mustDecimal("25000"), Quantity: 2},
		},
	}
}

// =====================
// Validation tests
// =====================

func TestCreate_EmptyItems(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		PaymentMethod: enum.PaymentMethodCash,
		Items:         nil,
	})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestCreate_ZeroQuantity(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("30000"), Quantity: 0},
		},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCreate_NegativePrice(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("-1"), Quantity: 1},
		},
	})
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got: %v", err)
	}
}

func TestCreate_DiscountExceedsLineTotal(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			// line total 50000, discount 50001
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("25000"), Quantity: 2, Discount: mustDecimal("50001")},
		},
	})
	if !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got: %v", err)
	}
}

func TestCreate_NegativeDiscount(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("25000"), Quantity: 1, Discount: mustDecimal("-100")},
		},
	})
	if !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got: %v", err)
	}
}

func TestCreate_MissingItemName(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Price: mustDecimal("25000"), Quantity: 1},
		},
	})
	if !errors.Is(err, ErrMissingItemName) {
		t.Fatalf("expected ErrMissingItemName, got: %v", err)
	}
}

func TestCreate_InvalidProductID(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: "not-a-uuid", Name: "Latte", Price: mustDecimal("25000"), Quantity: 1},
		},
	})
	if !errors.Is(err, ErrInvalidProductID) {
		t.Fatalf("expected ErrInvalidProductID, got: %v", err)
	}
}

func TestCreate_InvalidPaymentMethod(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	req := basicReq()
	req.PaymentMethod = "bitcoin"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got: %v", err)
	}
}

func TestCreate_InvalidCustomerID(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	req := basicReq()
	req.CustomerID = "nope"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrInvalidCustomerID) {
		t.Fatalf("expected ErrInvalidCustomerID, got: %v", err)
	}
}

// =====================
// Totals and creation tests
// =====================

func TestCreate_Totals(t *testing.T) {
	store := defaultStore()

	var captured database.CreateOrderParams
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status,
			Subtotal: arg.Subtotal, Tax: arg.Tax, Total: arg.Total}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.Create(context.Background(), CreateOrderRequest{
		PaymentMethod: enum.PaymentMethodCash,
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Kopi Susu", Price: mustDecimal("75000"), Quantity: 2},
			{ProductID: uuid.New().String(), Name: "Croissant", Price: mustDecimal("50000"), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// subtotal = 75000*2 + 50000*1 = 200000, tax = 0, total = 200000
	if !numericEquals(captured.Subtotal, "200000") {
		t.Errorf("subtotal: got %v, want 200000", numericToDecimal(captured.Subtotal))
	}
	if !numericEquals(captured.Tax, "0") {
		t.Errorf("tax: got %v, want 0", numericToDecimal(captured.Tax))
	}
	if !numericEquals(captured.Total, "200000") {
		t.Errorf("total: got %v, want 200000", numericToDecimal(captured.Total))
	}
	if captured.Status != enum.OrderStatusPending {
		t.Errorf("status: got %v, want pending", captured.Status)
	}
	if len(result.Items) != 2 {
		t.Errorf("items: got %d, want 2", len(result.Items))
	}
}

func TestCreate_DiscountReducesSubtotal(t *testing.T) {
	store := defaultStore()

	var captured database.CreateOrderParams
	var capturedItem database.CreateOrderItemParams
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status,
			Subtotal: arg.Subtotal, Total: arg.Total}, nil
	}
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		capturedItem = arg
		return database.OrderItem{ID: uuid.New(), OrderID: arg.OrderID, Subtotal: arg.Subtotal}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	_, err := svc.Create(context.Background(), CreateOrderRequest{
		Items: []CreateOrderItemRequest{
			// 25000*4 - 15000 = 85000
			{ProductID: uuid.New().String(), Name: "Matcha", Price: mustDecimal("25000"), Quantity: 4, Discount: mustDecimal("15000")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(capturedItem.Subtotal, "85000") {
		t.Errorf("item subtotal: got %v, want 85000", numericToDecimal(capturedItem.Subtotal))
	}
	if !numericEquals(captured.Total, "85000") {
		t.Errorf("order total: got %v, want 85000", numericToDecimal(captured.Total))
	}
}

func TestCreate_OrderNumberFormat(t *testing.T) {
	store := defaultStore()

	var captured database.CreateOrderParams
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	_, err := svc.Create(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ORD + 14-digit UTC timestamp + 4 random digits
	pattern := regexp.MustCompile(`^ORD\d{14}\d{4}$`)
	if !pattern.MatchString(captured.OrderNumber) {
		t.Errorf("order number %q does not match ORD<timestamp><4 digits>", captured.OrderNumber)
	}
}

func TestCreate_DefaultsToCash(t *testing.T) {
	store := defaultStore()

	var captured database.CreateOrderParams
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	req := basicReq()
	req.PaymentMethod = ""
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.PaymentMethod != enum.PaymentMethodCash {
		t.Errorf("payment_method: got %v, want cash", captured.PaymentMethod)
	}
}

func TestCreate_NoSideEffects(t *testing.T) {
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(defaultStore(), inventory, loyalty)

	req := basicReq()
	req.CustomerID = uuid.New().String()
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Creation leaves stock and points untouched; only completion moves them.
	if len(inventory.calls) != 0 {
		t.Errorf("expected no stock adjustments on create, got %d", len(inventory.calls))
	}
	if len(loyalty.adjustCalls) != 0 {
		t.Errorf("expected no loyalty adjustments on create, got %d", len(loyalty.adjustCalls))
	}
}

// =====================
// Retry on unique constraint violation
// =====================

func TestCreate_RetryOnUniqueViolation(t *testing.T) {
	store := defaultStore()

	createCallCount := 0
	numbers := make(map[string]bool)
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCallCount++
		numbers[arg.OrderNumber] = true
		if createCallCount == 1 {
			return database.Order{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "orders_order_number_key",
			}
		}
		return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.Create(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if createCallCount != 2 {
		t.Errorf("expected 2 CreateOrder calls (1 fail + 1 success), got %d", createCallCount)
	}
}

func TestCreate_RetryExhausted(t *testing.T) {
	store := defaultStore()
	callCount := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		callCount++
		return database.Order{}, &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "orders_order_number_key",
		}
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	_, err := svc.Create(context.Background(), basicReq())
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if callCount != maxOrderNumberRetries {
		t.Errorf("expected %d attempts, got %d", maxOrderNumberRetries, callCount)
	}
}

func TestCreate_NonUniqueErrorNotRetried(t *testing.T) {
	store := defaultStore()
	callCount := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		callCount++
		return database.Order{}, errors.New("some other DB error")
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	_, err := svc.Create(context.Background(), basicReq())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("non-unique errors should not retry: expected 1 call, got %d", callCount)
	}
}

// =====================
// Transition tests
// =====================

// transitionFixture wires a store holding a single order with items, plus a
// CAS that honors ExpectedStatus.
func transitionFixture(status string, customerID pgtype.UUID) (*mockOrderStore, database.Order, uuid.UUID) {
	orderID := uuid.New()
	productID := uuid.New()
	order := database.Order{
		ID:            orderID,
		OrderNumber:   "ORD202601021504050042",
		CustomerID:    customerID,
		Status:        status,
		PaymentMethod: enum.PaymentMethodCash,
		Subtotal:      makeNumeric("200000.00"),
		Tax:           makeNumeric("0.00"),
		Total:         makeNumeric("200000.00"),
	}

	store := defaultStore()
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		if id == orderID {
			return order, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
	store.getOrderByNumberFn = func(ctx context.Context, orderNumber string) (database.Order, error) {
		if orderNumber == order.OrderNumber {
			return order, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		if arg.ID == orderID && arg.ExpectedStatus == order.Status {
			updated := order
			updated.Status = arg.Status
			return updated, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
	store.listOrderItemsFn = func(ctx context.Context, oid uuid.UUID) ([]database.OrderItem, error) {
		return []database.OrderItem{
			{ID: uuid.New(), OrderID: orderID, ProductID: productID, Name: "Kopi Susu",
				Price: makeNumeric("100000.00"), Quantity: 2, Subtotal: makeNumeric("200000.00")},
		}, nil
	}
	return store, order, productID
}

func TestTransition_PendingToCompleted(t *testing.T) {
	customerID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store, order, productID := transitionFixture(enum.OrderStatusPending, customerID)
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, inventory, loyalty)

	updated, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCompleted {
		t.Errorf("status: got %v, want completed", updated.Status)
	}

	// Stock decremented by the item quantity.
	if len(inventory.calls) != 1 {
		t.Fatalf("expected 1 stock adjustment, got %d", len(inventory.calls))
	}
	if inventory.calls[0].ID != productID || inventory.calls[0].Delta != -2 {
		t.Errorf("stock adjustment: got %+v, want product %v delta -2", inventory.calls[0], productID)
	}

	// floor(200000 / 10000) = 20 points, total accrued as lifetime spend.
	if len(loyalty.adjustCalls) != 1 {
		t.Fatalf("expected 1 loyalty adjustment, got %d", len(loyalty.adjustCalls))
	}
	if loyalty.adjustCalls[0].PointsDiff != 20 {
		t.Errorf("points: got %d, want 20", loyalty.adjustCalls[0].PointsDiff)
	}
	if !numericEquals(loyalty.adjustCalls[0].SpentDiff, "200000") {
		t.Errorf("spent: got %v, want 200000", numericToDecimal(loyalty.adjustCalls[0].SpentDiff))
	}
	if len(loyalty.entryCalls) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(loyalty.entryCalls))
	}
	if loyalty.entryCalls[0].Points != 20 {
		t.Errorf("ledger points: got %d, want 20", loyalty.entryCalls[0].Points)
	}
}

func TestTransition_PendingToCancelled_NoSideEffects(t *testing.T) {
	customerID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store, order, _ := transitionFixture(enum.OrderStatusPending, customerID)
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, inventory, loyalty)

	updated, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want cancelled", updated.Status)
	}

	// Pending orders never touched stock or points, so cancelling is pure.
	if len(inventory.calls) != 0 {
		t.Errorf("expected no stock adjustments, got %d", len(inventory.calls))
	}
	if len(loyalty.adjustCalls) != 0 {
		t.Errorf("expected no loyalty adjustments, got %d", len(loyalty.adjustCalls))
	}
}

func TestTransition_CompletedToCancelled_RestoresStockAndPoints(t *testing.T) {
	customerID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store, order, productID := transitionFixture(enum.OrderStatusCompleted, customerID)
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, inventory, loyalty)

	_, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inventory.calls) != 1 {
		t.Fatalf("expected 1 stock adjustment, got %d", len(inventory.calls))
	}
	if inventory.calls[0].ID != productID || inventory.calls[0].Delta != 2 {
		t.Errorf("stock restore: got %+v, want product %v delta +2", inventory.calls[0], productID)
	}

	if len(loyalty.adjustCalls) != 1 {
		t.Fatalf("expected 1 loyalty adjustment, got %d", len(loyalty.adjustCalls))
	}
	if loyalty.adjustCalls[0].PointsDiff != -20 {
		t.Errorf("points reversal: got %d, want -20", loyalty.adjustCalls[0].PointsDiff)
	}
	if !numericEquals(loyalty.adjustCalls[0].SpentDiff, "-200000") {
		t.Errorf("spent reversal: got %v, want -200000", numericToDecimal(loyalty.adjustCalls[0].SpentDiff))
	}
}

func TestTransition_CancelledIsTerminal(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusCancelled, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	for _, next := range []string{enum.OrderStatusPending, enum.OrderStatusCompleted, enum.OrderStatusCancelled} {
		_, err := svc.Transition(context.Background(), order.ID, next)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("cancelled -> %s: expected ErrInvalidTransition, got: %v", next, err)
		}
	}
}

func TestTransition_CompletedToPendingRejected(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusCompleted, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestTransition_InvalidStatusValue(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Transition(context.Background(), order.ID, "shipped")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestTransition_OrderNotFound(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.Transition(context.Background(), uuid.New(), enum.OrderStatusCompleted)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestTransition_ConcurrentStatusChange(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	// Simulate another writer winning the race: the CAS finds no row.
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}
	inventory := &mockInventoryStore{}
	svc := newTestService(store, inventory, &mockLoyaltyStore{})

	_, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCompleted)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got: %v", err)
	}
	// The losing writer must not apply side effects.
	if len(inventory.calls) != 0 {
		t.Errorf("expected no stock adjustments on conflict, got %d", len(inventory.calls))
	}
}

func TestTransition_GuestOrderSkipsLoyalty(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, inventory, loyalty)

	_, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inventory.calls) != 1 {
		t.Errorf("expected stock adjustment for guest order, got %d", len(inventory.calls))
	}
	if len(loyalty.adjustCalls) != 0 {
		t.Errorf("guest orders must not accrue points, got %d adjustments", len(loyalty.adjustCalls))
	}
}

func TestTransition_StockFailureSurfacedAfterStatusWrite(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	inventory := &mockInventoryStore{
		adjustFn: func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
			return database.Product{}, errors.New("connection reset")
		},
	}
	svc := newTestService(store, inventory, &mockLoyaltyStore{})

	updated, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCompleted)
	if err == nil {
		t.Fatal("expected error from failed stock adjustment")
	}
	// The status write already happened and is not rolled back.
	if updated.Status != enum.OrderStatusCompleted {
		t.Errorf("status after side-effect failure: got %v, want completed", updated.Status)
	}
}

func TestVoidByNumber_NotFound(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.VoidByNumber(context.Background(), "ORD000000000000000000")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestVoid_PendingOrder(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	updated, err := svc.Void(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want cancelled", updated.Status)
	}
}

func TestVoidByNumber_CompletedOrderReverses(t *testing.T) {
	customerID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store, order, _ := transitionFixture(enum.OrderStatusCompleted, customerID)
	inventory := &mockInventoryStore{}
	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, inventory, loyalty)

	updated, err := svc.VoidByNumber(context.Background(), order.OrderNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCancelled {
		t.Errorf("status: got %v, want cancelled", updated.Status)
	}
	if len(inventory.calls) != 1 || inventory.calls[0].Delta != 2 {
		t.Errorf("expected stock restore with delta +2, got %+v", inventory.calls)
	}
	if len(loyalty.adjustCalls) != 1 || loyalty.adjustCalls[0].PointsDiff != -20 {
		t.Errorf("expected points reversal of -20, got %+v", loyalty.adjustCalls)
	}
}

// =====================
// UpdateByNumber tests
// =====================

func TestUpdateByNumber_NotPending(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusCompleted, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.UpdateByNumber(context.Background(), order.OrderNumber, UpdateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("30000"), Quantity: 1},
		},
	})
	if !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("expected ErrOrderNotPending, got: %v", err)
	}
}

func TestUpdateByNumber_NotFound(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.UpdateByNumber(context.Background(), "ORD000000000000000000", UpdateOrderRequest{
		Items: []CreateOrderItemRequest{
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("30000"), Quantity: 1},
		},
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestUpdateByNumber_RecomputesTotals(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})

	deleted := false
	store.deleteOrderItemsFn = func(ctx context.Context, orderID uuid.UUID) error {
		deleted = true
		return nil
	}
	var capturedDetails database.UpdateOrderDetailsParams
	store.updateOrderDetailsFn = func(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error) {
		capturedDetails = arg
		return database.Order{ID: arg.ID, OrderNumber: order.OrderNumber, Status: enum.OrderStatusPending,
			PaymentMethod: arg.PaymentMethod, Subtotal: arg.Subtotal, Tax: arg.Tax, Total: arg.Total}, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.UpdateByNumber(context.Background(), order.OrderNumber, UpdateOrderRequest{
		PaymentMethod: enum.PaymentMethodCard,
		Items: []CreateOrderItemRequest{
			// 30000*3 - 5000 = 85000
			{ProductID: uuid.New().String(), Name: "Latte", Price: mustDecimal("30000"), Quantity: 3, Discount: mustDecimal("5000")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !deleted {
		t.Error("expected old items to be deleted")
	}
	if !numericEquals(capturedDetails.Subtotal, "85000") {
		t.Errorf("subtotal: got %v, want 85000", numericToDecimal(capturedDetails.Subtotal))
	}
	if !numericEquals(capturedDetails.Total, "85000") {
		t.Errorf("total: got %v, want 85000", numericToDecimal(capturedDetails.Total))
	}
	if capturedDetails.PaymentMethod != enum.PaymentMethodCard {
		t.Errorf("payment_method: got %v, want card", capturedDetails.PaymentMethod)
	}
	if len(result.Items) != 1 {
		t.Errorf("items: got %d, want 1", len(result.Items))
	}
}

func TestUpdateByNumber_EmptyItemsRejected(t *testing.T) {
	store, order, _ := transitionFixture(enum.OrderStatusPending, pgtype.UUID{})
	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.UpdateByNumber(context.Background(), order.OrderNumber, UpdateOrderRequest{})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

// =====================
// List / pagination tests
// =====================

func TestList_PaginationMath(t *testing.T) {
	store := defaultStore()
	store.countOrdersFn = func(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
		return 25, nil
	}
	var capturedList database.ListOrdersParams
	store.listOrdersFn = func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
		capturedList = arg
		orders := make([]database.Order, 10)
		for i := range orders {
			orders[i] = database.Order{ID: uuid.New(), Status: enum.OrderStatusPending}
		}
		return orders, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.List(context.Background(), OrderListFilter{}, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Total != 25 {
		t.Errorf("total: got %d, want 25", result.Total)
	}
	if result.Pages != 3 {
		t.Errorf("pages: got %d, want 3", result.Pages)
	}
	if result.Page != 2 {
		t.Errorf("page: got %d, want 2", result.Page)
	}
	if capturedList.Offset != 10 {
		t.Errorf("offset: got %d, want 10", capturedList.Offset)
	}
	if capturedList.Limit != 10 {
		t.Errorf("limit: got %d, want 10", capturedList.Limit)
	}
}

func TestList_OutOfRangePage(t *testing.T) {
	store := defaultStore()
	store.countOrdersFn = func(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
		return 25, nil
	}
	store.listOrdersFn = func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
		return nil, nil // page is past the end
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.List(context.Background(), OrderListFilter{}, 99, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Orders) != 0 {
		t.Errorf("expected empty page, got %d orders", len(result.Orders))
	}
	if result.Total != 25 {
		t.Errorf("total: got %d, want 25", result.Total)
	}
	if result.Pages != 3 {
		t.Errorf("pages: got %d, want 3", result.Pages)
	}
}

func TestList_StatusFilterValidated(t *testing.T) {
	svc := newTestService(defaultStore(), &mockInventoryStore{}, &mockLoyaltyStore{})

	_, err := svc.List(context.Background(), OrderListFilter{Status: "shipped"}, 1, 10)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestList_NormalizesPageAndLimit(t *testing.T) {
	store := defaultStore()
	var capturedList database.ListOrdersParams
	store.listOrdersFn = func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
		capturedList = arg
		return nil, nil
	}

	svc := newTestService(store, &mockInventoryStore{}, &mockLoyaltyStore{})
	result, err := svc.List(context.Background(), OrderListFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Page != 1 {
		t.Errorf("page normalized: got %d, want 1", result.Page)
	}
	if capturedList.Limit != 20 {
		t.Errorf("default limit: got %d, want 20", capturedList.Limit)
	}
	if capturedList.Offset != 0 {
		t.Errorf("offset: got %d, want 0", capturedList.Offset)
	}
}

// =====================
// Points rounding
// =====================

func TestTransition_PointsFloorRounding(t *testing.T) {
	customerID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store, order, _ := transitionFixture(enum.OrderStatusPending, customerID)
	// 199999 spends just under the 20-point boundary.
	order.Total = makeNumeric("199999.00")
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return order, nil
	}
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		updated := order
		updated.Status = arg.Status
		return updated, nil
	}

	loyalty := &mockLoyaltyStore{}
	svc := newTestService(store, &mockInventoryStore{}, loyalty)

	_, err := svc.Transition(context.Background(), order.ID, enum.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loyalty.adjustCalls) != 1 {
		t.Fatalf("expected 1 loyalty adjustment, got %d", len(loyalty.adjustCalls))
	}
	if loyalty.adjustCalls[0].PointsDiff != 19 {
		t.Errorf("points: got %d, want 19 (floor of 199999/10000)", loyalty.adjustCalls[0].PointsDiff)
	}
}
