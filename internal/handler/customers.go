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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/enum"
	"github.com/shopspring/decimal"
)

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	ListCustomers(ctx context.Context, arg database.ListCustomersParams) ([]database.Customer, error)
	CountCustomers(ctx context.Context, search pgtype.Text) (int64, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	AdjustCustomerPoints(ctx context.Context, arg database.AdjustCustomerPointsParams) (database.Customer, error)
	CreatePointsEntry(ctx context.Context, arg database.CreatePointsEntryParams) (database.PointsEntry, error)
	ListPointsHistory(ctx context.Context, customerID uuid.UUID) ([]database.PointsEntry, error)
}

// CustomerHandler handles customer endpoints.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/points", h.PointsHistory)
	r.Post("/{id}/points", h.AdjustPoints)
}

// --- Request / Response types ---

type customerRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	Birthday        string `json:"birthday"`
	Notes           string `json:"notes"`
	MembershipLevel string `json:"membership_level"`
}

type customerResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           *string   `json:"email"`
	Address         *string   `json:"address"`
	Birthday        *string   `json:"birthday"`
	Notes           *string   `json:"notes"`
	MembershipLevel string    `json:"membership_level"`
	Points          int32     `json:"points"`
	TotalSpent      string    `json:"total_spent"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type customerListResponse struct {
	Customers []customerResponse `json:"customers"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	Pages     int                `json:"pages"`
	Limit     int                `json:"limit"`
}

type adjustPointsRequest struct {
	Points int32  `json:"points"`
	Reason string `json:"reason"`
}

type pointsEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Points    int32     `json:"points"`
	Reason    *string   `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// Create handles POST /customers.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and phone are required"})
		return
	}

	params := database.CreateCustomerParams{
		Name:  req.Name,
		Phone: req.Phone,
	}
	if req.Email != "" {
		params.Email = pgtype.Text{String: req.Email, Valid: true}
	}
	if req.Address != "" {
		params.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Notes != "" {
		params.Notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	if req.Birthday != "" {
		t, err := time.Parse("2006-01-02", req.Birthday)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birthday format, use YYYY-MM-DD"})
			return
		}
		params.Birthday = pgtype.Date{Time: t, Valid: true}
	}

	customer, err := h.store.CreateCustomer(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone number already registered"})
			return
		}
		log.Printf("ERROR: create customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// List handles GET /customers.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
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

	search := pgtype.Text{}
	if s := r.URL.Query().Get("search"); s != "" {
		search = pgtype.Text{String: s, Valid: true}
	}

	total, err := h.store.CountCustomers(r.Context(), search)
	if err != nil {
		log.Printf("ERROR: count customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		Search: search,
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}

	writeJSON(w, http.StatusOK, customerListResponse{
		Customers: resp,
		Total:     total,
		Page:      page,
		Pages:     int((total + int64(limit) - 1) / int64(limit)),
		Limit:     limit,
	})
}

// Search handles GET /customers/search?q= (typeahead at the register).
func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}

	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		Search: pgtype.Text{String: q, Valid: true},
		Limit:  20,
	})
	if err != nil {
		log.Printf("ERROR: search customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"customers": resp})
}

// Get handles GET /customers/{id}.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Update handles PUT /customers/{id}.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and phone are required"})
		return
	}

	membership := req.MembershipLevel
	if membership == "" {
		membership = enum.MembershipRegular
	}
	if !isValidMembership(membership) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid membership_level"})
		return
	}

	params := database.UpdateCustomerParams{
		ID:              id,
		Name:            req.Name,
		Phone:           req.Phone,
		MembershipLevel: membership,
	}
	if req.Email != "" {
		params.Email = pgtype.Text{String: req.Email, Valid: true}
	}
	if req.Address != "" {
		params.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Notes != "" {
		params.Notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	if req.Birthday != "" {
		t, err := time.Parse("2006-01-02", req.Birthday)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid birthday format, use YYYY-MM-DD"})
			return
		}
		params.Birthday = pgtype.Date{Time: t, Valid: true}
	}

	customer, err := h.store.UpdateCustomer(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "phone number already registered"})
			return
		}
		log.Printf("ERROR: update customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Delete handles DELETE /customers/{id}. Customers are soft-deleted: their
// order history and ledger stay intact.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	if _, err := h.store.SoftDeleteCustomer(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: delete customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "customer deleted"})
}

// PointsHistory handles GET /customers/{id}/points.
func (h *CustomerHandler) PointsHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	if _, err := h.store.GetCustomer(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries, err := h.store.ListPointsHistory(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list points history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]pointsEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = pointsEntryResponse{ID: e.ID, Points: e.Points, CreatedAt: e.CreatedAt}
		if e.Reason.Valid {
			resp[i].Reason = &e.Reason.String
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": resp})
}

// AdjustPoints handles POST /customers/{id}/points: a manual correction with
// a mandatory ledger entry. Lifetime spend is untouched; only order
// completion moves it.
func (h *CustomerHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	var req adjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Points == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points must be non-zero"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	customer, err := h.store.AdjustCustomerPoints(r.Context(), database.AdjustCustomerPointsParams{
		ID:         id,
		PointsDiff: req.Points,
		SpentDiff:  decimalToNumeric(decimal.Zero),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: adjust customer points: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := h.store.CreatePointsEntry(r.Context(), database.CreatePointsEntryParams{
		CustomerID: id,
		Points:     req.Points,
		Reason:     pgtype.Text{String: req.Reason, Valid: true},
	}); err != nil {
		log.Printf("ERROR: create points entry for customer %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// --- Helpers ---

func isValidMembership(s string) bool {
	switch s {
	case enum.MembershipRegular, enum.MembershipSilver, enum.MembershipGold, enum.MembershipPlatinum:
		return true
	}
	return false
}

func toCustomerResponse(c database.Customer) customerResponse {
	resp := customerResponse{
		ID:              c.ID,
		Name:            c.Name,
		Phone:           c.Phone,
		MembershipLevel: c.MembershipLevel,
		Points:          c.Points,
		TotalSpent:      numericToString(c.TotalSpent),
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.Email.Valid {
		resp.Email = &c.Email.String
	}
	if c.Address.Valid {
		resp.Address = &c.Address.String
	}
	if c.Birthday.Valid {
		s := c.Birthday.Time.Format("2006-01-02")
		resp.Birthday = &s
	}
	if c.Notes.Valid {
		resp.Notes = &c.Notes.String
	}
	return resp
}
