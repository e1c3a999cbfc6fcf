package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/middleware"
	"github.com/pos-store/api/internal/service"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderWithItems, error)
	Transition(ctx context.Context, orderID uuid.UUID, newStatus string) (database.Order, error)
	TransitionByNumber(ctx context.Context, orderNumber, newStatus string) (database.Order, error)
	Void(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	VoidByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	UpdateByNumber(ctx context.Context, orderNumber string, req service.UpdateOrderRequest) (*service.OrderWithItems, error)
	List(ctx context.Context, filter service.OrderListFilter, page, limit int) (*service.OrderListResult, error)
}

// OrderStore defines the database methods needed by the order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// EventBroadcaster pushes order lifecycle events to connected clients.
// Satisfied by *ws.Hub.
type EventBroadcaster interface {
	Broadcast(event string, payload interface{})
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderStore
	events EventBroadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, events EventBroadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, events: events}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders inside the authenticated group.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/void", h.Void)
	r.Get("/number/{orderNumber}", h.GetByNumber)
	r.Put("/number/{orderNumber}", h.UpdateByNumber)
	r.Put("/number/{orderNumber}/status", h.UpdateStatusByNumber)
	r.Post("/number/{orderNumber}/void", h.VoidByNumber)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerID    string                   `json:"customer_id"`
	PaymentMethod string                   `json:"payment_method"`
	Notes         string                   `json:"notes"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int32   `json:"quantity"`
	Discount  float64 `json:"discount"`
}

type updateOrderRequest struct {
	PaymentMethod string                   `json:"payment_method"`
	Notes         string                   `json:"notes"`
	Items         []createOrderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    *string             `json:"customer_id"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	Total         string              `json:"total"`
	Notes         *string             `json:"notes"`
	CreatedBy     *string             `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Quantity  int32     `json:"quantity"`
	Discount  string    `json:"discount"`
	Subtotal  string    `json:"subtotal"`
}

// orderListResponse wraps a page of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
	Pages  int             `json:"pages"`
	Limit  int             `json:"limit"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		CreatedBy:     claims.UserID.String(),
		Items:         toServiceItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	if h.events != nil {
		h.events.Broadcast("order.created", resp)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	filter := service.OrderListFilter{
		Status:     r.URL.Query().Get("status"),
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		filter.StartDate = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		// Inclusive of the whole end day.
		filter.EndDate = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	result, err := h.svc.List(r.Context(), filter, page, limit)
	if err != nil {
		writeOrderError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(result.Orders))
	for i, o := range result.Orders {
		resp[i] = toOrderResponse(o, nil)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Total:  result.Total,
		Page:   result.Page,
		Pages:  result.Pages,
		Limit:  limit,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithDetail(w, r, order)
}

// GetByNumber handles GET /orders/number/{orderNumber}.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	order, err := h.store.GetOrderByNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order by number: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithDetail(w, r, order)
}

// UpdateByNumber handles PUT /orders/number/{orderNumber}: replaces the item
// list of a pending order.
func (h *OrderHandler) UpdateByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.UpdateByNumber(r.Context(), orderNumber, service.UpdateOrderRequest{
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Items:         toServiceItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, "update order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// UpdateStatus handles PUT /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}

	updated, err := h.svc.Transition(r.Context(), orderID, status)
	if err != nil {
		writeOrderError(w, "update order status", err)
		return
	}

	h.broadcastStatusChange(updated)
	writeJSON(w, http.StatusOK, toOrderResponse(updated, nil))
}

// UpdateStatusByNumber handles PUT /orders/number/{orderNumber}/status.
func (h *OrderHandler) UpdateStatusByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}

	updated, err := h.svc.TransitionByNumber(r.Context(), orderNumber, status)
	if err != nil {
		writeOrderError(w, "update order status", err)
		return
	}

	h.broadcastStatusChange(updated)
	writeJSON(w, http.StatusOK, toOrderResponse(updated, nil))
}

// Void handles POST /orders/{id}/void.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	voided, err := h.svc.Void(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, "void order", err)
		return
	}

	h.broadcastStatusChange(voided)
	writeJSON(w, http.StatusOK, toOrderResponse(voided, nil))
}

// VoidByNumber handles POST /orders/number/{orderNumber}/void.
func (h *OrderHandler) VoidByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	voided, err := h.svc.VoidByNumber(r.Context(), orderNumber)
	if err != nil {
		writeOrderError(w, "void order", err)
		return
	}

	h.broadcastStatusChange(voided)
	writeJSON(w, http.StatusOK, toOrderResponse(voided, nil))
}

// --- Helpers ---

func (h *OrderHandler) respondWithDetail(w http.ResponseWriter, r *http.Request, order database.Order) {
	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

func (h *OrderHandler) broadcastStatusChange(order database.Order) {
	if h.events != nil {
		h.events.Broadcast("order.status_changed", toOrderResponse(order, nil))
	}
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return "", false
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return "", false
	}
	return req.Status, true
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	svcItems := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		svcItems[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     decimal.NewFromFloat(item.Price),
			Quantity:  item.Quantity,
			Discount:  decimal.NewFromFloat(item.Discount),
		}
	}
	return svcItems
}

// writeOrderError maps known service errors to HTTP status codes; anything
// unrecognized is a 500 and gets logged.
func writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrMissingItemName) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrInvalidUserID) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidTransition) ||
		errors.Is(err, service.ErrOrderNotPending)
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		Subtotal:      numericToString(o.Subtotal),
		Tax:           numericToString(o.Tax),
		Total:         numericToString(o.Total),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}

	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.CreatedBy.Valid {
		s := uuid.UUID(o.CreatedBy.Bytes).String()
		resp.CreatedBy = &s
	}

	if items != nil {
		resp.Items = make([]orderItemResponse, len(items))
		for i, item := range items {
			resp.Items[i] = orderItemResponse{
				ID:        item.ID,
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     numericToString(item.Price),
				Quantity:  item.Quantity,
				Discount:  numericToString(item.Discount),
				Subtotal:  numericToString(item.Subtotal),
			}
		}
	}

	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
