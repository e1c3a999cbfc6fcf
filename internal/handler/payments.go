package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/enum"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	GetPaymentByOrderNumber(ctx context.Context, orderNumber string) (database.Payment, error)
	ListPaymentsByOrderNumber(ctx context.Context, orderNumber string) ([]database.Payment, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
}

// PaymentHandler handles payment endpoints. Verification is a stub: there is
// no gateway behind it, it just flips the status and stamps verified_at.
type PaymentHandler struct {
	store PaymentStore
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore) *PaymentHandler {
	return &PaymentHandler{store: store}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/methods", h.Methods)
	r.Get("/{id}", h.Get)
	r.Post("/orders/number/{orderNumber}", h.Create)
	r.Get("/orders/number/{orderNumber}", h.ListByOrder)
	r.Post("/orders/number/{orderNumber}/verify", h.Verify)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

type paymentResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderNumber string     `json:"order_number"`
	Amount      string     `json:"amount"`
	Method      string     `json:"method"`
	Reference   *string    `json:"reference"`
	Status      string     `json:"status"`
	VerifiedAt  *time.Time `json:"verified_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type paymentMethodResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// --- Handlers ---

// Methods handles GET /payments/methods: the static catalogue the register
// renders its payment buttons from.
func (h *PaymentHandler) Methods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"methods": []paymentMethodResponse{
			{ID: enum.PaymentMethodCash, Label: "Cash"},
			{ID: enum.PaymentMethodCard, Label: "Card"},
			{ID: enum.PaymentMethodTransfer, Label: "Bank Transfer"},
		},
	})
}

// Create handles POST /payments/orders/number/{orderNumber}. Cash settles
// immediately; card and transfer stay pending until verified.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be > 0"})
		return
	}
	if !isValidMethod(req.Method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid method"})
		return
	}

	order, err := h.store.GetOrderByNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if order.Status == enum.OrderStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot pay a cancelled order"})
		return
	}

	params := database.CreatePaymentParams{
		OrderNumber: order.OrderNumber,
		Amount:      decimalToNumeric(decimal.NewFromFloat(req.Amount)),
		Method:      req.Method,
		Status:      enum.PaymentStatusPending,
	}
	if req.Reference != "" {
		params.Reference = pgtype.Text{String: req.Reference, Valid: true}
	}
	if req.Method == enum.PaymentMethodCash {
		params.Status = enum.PaymentStatusCompleted
		params.VerifiedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	payment, err := h.store.CreatePayment(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// Get handles GET /payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	payment, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// ListByOrder handles GET /payments/orders/number/{orderNumber}.
func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	payments, err := h.store.ListPaymentsByOrderNumber(r.Context(), orderNumber)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": resp})
}

// Verify handles POST /payments/orders/number/{orderNumber}/verify: marks
// the latest payment completed and stamps verified_at.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	payment, err := h.store.GetPaymentByOrderNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
			return
		}
		log.Printf("ERROR: get payment for verify: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if payment.Status == enum.PaymentStatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment already verified"})
		return
	}

	updated, err := h.store.UpdatePaymentStatus(r.Context(), database.UpdatePaymentStatusParams{
		ID:         payment.ID,
		Status:     enum.PaymentStatusCompleted,
		VerifiedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: update payment status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(updated))
}

// --- Helpers ---

func isValidMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		OrderNumber: p.OrderNumber,
		Amount:      numericToString(p.Amount),
		Method:      p.Method,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Reference.Valid {
		resp.Reference = &p.Reference.String
	}
	if p.VerifiedAt.Valid {
		resp.VerifiedAt = &p.VerifiedAt.Time
	}
	return resp
}
