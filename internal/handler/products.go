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
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (database.Product, error)
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	CountProducts(ctx context.Context, arg database.CountProductsParams) (int64, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	BatchUpdateProduct(ctx context.Context, arg database.BatchUpdateProductParams) (database.Product, error)
}

// ProductHandler handles product endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/barcode/{barcode}", h.GetByBarcode)
	r.Post("/batch", h.BatchUpdate)
}

// --- Request / Response types ---

type productRequest struct {
	Name          string  `json:"name"`
	Barcode       string  `json:"barcode"`
	Description   string  `json:"description"`
	CategoryID    string  `json:"category_id"`
	Price         float64 `json:"price"`
	CostPrice     float64 `json:"cost_price"`
	Unit          string  `json:"unit"`
	ImageUrl      string  `json:"image_url"`
	StockQuantity int32   `json:"stock_quantity"`
	MinStockLevel int32   `json:"min_stock_level"`
	MaxStockLevel int32   `json:"max_stock_level"`
	IsActive      *bool   `json:"is_active"`
}

type productResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode"`
	Description   *string   `json:"description"`
	CategoryID    *string   `json:"category_id"`
	Price         string    `json:"price"`
	CostPrice     string    `json:"cost_price"`
	Unit          *string   `json:"unit"`
	ImageUrl      *string   `json:"image_url"`
	StockQuantity int32     `json:"stock_quantity"`
	MinStockLevel int32     `json:"min_stock_level"`
	MaxStockLevel int32     `json:"max_stock_level"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
	Limit    int               `json:"limit"`
}

// batchUpdateRequest carries partial updates; nil fields leave the column
// unchanged.
type batchUpdateRequest struct {
	Updates []batchUpdateItem `json:"updates"`
}

type batchUpdateItem struct {
	ID            string   `json:"id"`
	StockQuantity *int32   `json:"stock_quantity"`
	Price         *float64 `json:"price"`
	CostPrice     *float64 `json:"cost_price"`
	IsActive      *bool    `json:"is_active"`
}

// batchUpdateResult reports per-item success so one bad row does not hide
// the rest.
type batchUpdateResult struct {
	ID    string `json:"id"`
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// --- Handlers ---

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.validateProductRequest(w, req)
	if !ok {
		return
	}

	product, err := h.store.CreateProduct(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "barcode already exists"})
			return
		}
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// List handles GET /products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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

	categoryID := pgtype.UUID{}
	if s := r.URL.Query().Get("category_id"); s != "" {
		cid, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	search := pgtype.Text{}
	if s := r.URL.Query().Get("search"); s != "" {
		search = pgtype.Text{String: s, Valid: true}
	}

	total, err := h.store.CountProducts(r.Context(), database.CountProductsParams{
		CategoryID: categoryID,
		Search:     search,
	})
	if err != nil {
		log.Printf("ERROR: count products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		CategoryID: categoryID,
		Search:     search,
		Limit:      int32(limit),
		Offset:     int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}

	writeJSON(w, http.StatusOK, productListResponse{
		Products: resp,
		Total:    total,
		Page:     page,
		Pages:    int((total + int64(limit) - 1) / int64(limit)),
		Limit:    limit,
	})
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// GetByBarcode handles GET /products/barcode/{barcode} (scanner lookup).
func (h *ProductHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	product, err := h.store.GetProductByBarcode(r.Context(), barcode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product by barcode: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Update handles PUT /products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.validateProductRequest(w, req)
	if !ok {
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:            id,
		Name:          params.Name,
		Barcode:       params.Barcode,
		Description:   params.Description,
		CategoryID:    params.CategoryID,
		Price:         params.Price,
		CostPrice:     params.CostPrice,
		Unit:          params.Unit,
		ImageUrl:      params.ImageUrl,
		StockQuantity: params.StockQuantity,
		MinStockLevel: params.MinStockLevel,
		MaxStockLevel: params.MaxStockLevel,
		IsActive:      params.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "barcode already exists"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete handles DELETE /products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if _, err := h.store.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// BatchUpdate handles POST /products/batch. Each row succeeds or fails on
// its own; the response reports both.
func (h *ProductHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Updates) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "updates are required"})
		return
	}

	results := make([]batchUpdateResult, len(req.Updates))
	for i, u := range req.Updates {
		results[i] = batchUpdateResult{ID: u.ID}

		id, err := uuid.Parse(u.ID)
		if err != nil {
			results[i].Error = "invalid product ID"
			continue
		}

		params := database.BatchUpdateProductParams{
			ID:            id,
			StockQuantity: u.StockQuantity,
			IsActive:      u.IsActive,
		}
		if u.Price != nil {
			if *u.Price < 0 {
				results[i].Error = "price must be >= 0"
				continue
			}
			params.Price = decimalToNumeric(decimal.NewFromFloat(*u.Price))
		}
		if u.CostPrice != nil {
			params.CostPrice = decimalToNumeric(decimal.NewFromFloat(*u.CostPrice))
		}

		if _, err := h.store.BatchUpdateProduct(r.Context(), params); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				results[i].Error = "product not found"
			} else {
				log.Printf("ERROR: batch update product %s: %v", u.ID, err)
				results[i].Error = "update failed"
			}
			continue
		}
		results[i].Ok = true
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// --- Helpers ---

func (h *ProductHandler) validateProductRequest(w http.ResponseWriter, req productRequest) (database.CreateProductParams, bool) {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return database.CreateProductParams{}, false
	}
	if req.Barcode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "barcode is required"})
		return database.CreateProductParams{}, false
	}
	if req.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		return database.CreateProductParams{}, false
	}

	params := database.CreateProductParams{
		Name:          req.Name,
		Barcode:       req.Barcode,
		Price:         decimalToNumeric(decimal.NewFromFloat(req.Price)),
		CostPrice:     decimalToNumeric(decimal.NewFromFloat(req.CostPrice)),
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		IsActive:      true,
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}
	if req.Description != "" {
		params.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.Unit != "" {
		params.Unit = pgtype.Text{String: req.Unit, Valid: true}
	}
	if req.ImageUrl != "" {
		params.ImageUrl = pgtype.Text{String: req.ImageUrl, Valid: true}
	}
	if req.CategoryID != "" {
		cid, err := uuid.Parse(req.CategoryID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return database.CreateProductParams{}, false
		}
		params.CategoryID = pgtype.UUID{Bytes: cid, Valid: true}
	}
	return params, true
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Barcode:       p.Barcode,
		Price:         numericToString(p.Price),
		CostPrice:     numericToString(p.CostPrice),
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
		MaxStockLevel: p.MaxStockLevel,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.CategoryID.Valid {
		s := uuid.UUID(p.CategoryID.Bytes).String()
		resp.CategoryID = &s
	}
	if p.Unit.Valid {
		resp.Unit = &p.Unit.String
	}
	if p.ImageUrl.Valid {
		resp.ImageUrl = &p.ImageUrl.String
	}
	return resp
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
