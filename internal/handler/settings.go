package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/enum"
)

// SettingStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	ListSettings(ctx context.Context) ([]database.Setting, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)
}

// SettingHandler handles the settings endpoints. Each section is a typed
// struct stored as one JSONB row; unknown fields in a PUT are rejected so a
// typo cannot silently drop configuration.
type SettingHandler struct {
	store SettingStore
}

// NewSettingHandler creates a new SettingHandler.
func NewSettingHandler(store SettingStore) *SettingHandler {
	return &SettingHandler{store: store}
}

// RegisterRoutes registers the read-only settings endpoints.
func (h *SettingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{key}", h.Get)
}

// RegisterAdminRoutes registers the write endpoints. The router mounts these
// behind RequireRole(admin).
func (h *SettingHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/{key}", h.Update)
}

// --- Section types ---

type storeSettings struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
}

type receiptSettings struct {
	Header    string `json:"header"`
	Footer    string `json:"footer"`
	ShowLogo  bool   `json:"show_logo"`
	PaperSize string `json:"paper_size"`
}

type paymentSettings struct {
	EnabledMethods []string `json:"enabled_methods"`
	CashRounding   bool     `json:"cash_rounding"`
}

type printerSettings struct {
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Enabled   bool   `json:"enabled"`
}

// defaultSettings returns the section defaults served before anything is
// persisted.
func defaultSettings(key string) interface{} {
	switch key {
	case enum.SettingStore:
		return storeSettings{Name: "POS Store", Currency: "IDR"}
	case enum.SettingReceipt:
		return receiptSettings{Header: "POS Store", Footer: "Thank you for your purchase", PaperSize: "80mm"}
	case enum.SettingPayment:
		return paymentSettings{
			EnabledMethods: []string{enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer},
		}
	case enum.SettingPrinter:
		return printerSettings{Port: 9100}
	}
	return nil
}

func isValidSettingKey(key string) bool {
	switch key {
	case enum.SettingStore, enum.SettingReceipt, enum.SettingPayment, enum.SettingPrinter:
		return true
	}
	return false
}

// --- Handlers ---

// List handles GET /settings: every section, persisted or default.
func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	persisted, err := h.store.ListSettings(r.Context())
	if err != nil {
		log.Printf("ERROR: list settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byKey := make(map[string]json.RawMessage, len(persisted))
	for _, s := range persisted {
		byKey[s.Key] = s.Value
	}

	resp := make(map[string]interface{}, 4)
	for _, key := range []string{enum.SettingStore, enum.SettingReceipt, enum.SettingPayment, enum.SettingPrinter} {
		if raw, ok := byKey[key]; ok {
			resp[key] = raw
		} else {
			resp[key] = defaultSettings(key)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /settings/{key}.
func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !isValidSettingKey(key) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown settings section"})
		return
	}

	setting, err := h.store.GetSetting(r.Context(), key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, defaultSettings(key))
			return
		}
		log.Printf("ERROR: get setting: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, setting.Value)
}

// Update handles PUT /settings/{key}. The body is decoded into the section's
// typed struct; unknown fields are a 400.
func (h *SettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !isValidSettingKey(key) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown settings section"})
		return
	}

	section, err := decodeSection(r, key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	value, err := json.Marshal(section)
	if err != nil {
		log.Printf("ERROR: marshal settings section: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	setting, err := h.store.UpsertSetting(r.Context(), database.UpsertSettingParams{
		Key:   key,
		Value: value,
	})
	if err != nil {
		log.Printf("ERROR: upsert setting: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, setting.Value)
}

// decodeSection decodes the request body into the typed struct for key,
// rejecting unknown fields.
func decodeSection(r *http.Request, key string) (interface{}, error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	switch key {
	case enum.SettingStore:
		var s storeSettings
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	case enum.SettingReceipt:
		var s receiptSettings
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	case enum.SettingPayment:
		var s paymentSettings
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		for _, m := range s.EnabledMethods {
			if !isValidMethod(m) {
				return nil, errors.New("unknown payment method " + m)
			}
		}
		return s, nil
	case enum.SettingPrinter:
		var s printerSettings
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.New("unknown settings section")
}
