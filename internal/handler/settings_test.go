package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pos-store/api/internal/database"
	"github.com/pos-store/api/internal/handler"
)

// --- Mock SettingStore ---

type mockSettingStore struct {
	settings map[string]database.Setting
}

func newMockSettingStore() *mockSettingStore {
	return &mockSettingStore{settings: make(map[string]database.Setting)}
}

func (m *mockSettingStore) GetSetting(_ context.Context, key string) (database.Setting, error) {
	s, ok := m.settings[key]
	if !ok {
		return database.Setting{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockSettingStore) ListSettings(_ context.Context) ([]database.Setting, error) {
	out := make([]database.Setting, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSettingStore) UpsertSetting(_ context.Context, arg database.UpsertSettingParams) (database.Setting, error) {
	s := database.Setting{Key: arg.Key, Value: arg.Value}
	m.settings[arg.Key] = s
	return s, nil
}

func setupSettingRouter(store *mockSettingStore) *chi.Mux {
	h := handler.NewSettingHandler(store)
	r := chi.NewRouter()
	r.Route("/settings", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

// ============================================================
// Get tests
// ============================================================

func TestGetSettings_DefaultsBeforePersist(t *testing.T) {
	r := setupSettingRouter(newMockSettingStore())

	rr := getRequest(t, r, "/settings/store")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["currency"] != "IDR" {
		t.Errorf("default currency: got %v, want IDR", resp["currency"])
	}
}

func TestGetSettings_UnknownSection(t *testing.T) {
	r := setupSettingRouter(newMockSettingStore())

	rr := getRequest(t, r, "/settings/loyalty")

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListSettings_MergesPersistedAndDefaults(t *testing.T) {
	store := newMockSettingStore()
	store.settings["store"] = database.Setting{
		Key:   "store",
		Value: json.RawMessage(`{"name":"Warung Kopi","address":"","phone":"","email":"","currency":"IDR"}`),
	}
	r := setupSettingRouter(store)

	rr := getRequest(t, r, "/settings/")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	for _, key := range []string{"store", "receipt", "payment", "printer"} {
		if resp[key] == nil {
			t.Errorf("missing section %s", key)
		}
	}
	storeSection := resp["store"].(map[string]interface{})
	if storeSection["name"] != "Warung Kopi" {
		t.Errorf("persisted store name: got %v, want Warung Kopi", storeSection["name"])
	}
}

// ============================================================
// Update tests
// ============================================================

func TestUpdateSettings_RoundTrip(t *testing.T) {
	store := newMockSettingStore()
	r := setupSettingRouter(store)

	rr := putJSON(t, r, "/settings/receipt", map[string]interface{}{
		"header":     "Warung Kopi",
		"footer":     "See you again",
		"show_logo":  true,
		"paper_size": "58mm",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	rr = getRequest(t, r, "/settings/receipt")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["paper_size"] != "58mm" {
		t.Errorf("paper_size: got %v, want 58mm", resp["paper_size"])
	}
	if resp["show_logo"] != true {
		t.Errorf("show_logo: got %v, want true", resp["show_logo"])
	}
}

func TestUpdateSettings_UnknownFieldRejected(t *testing.T) {
	r := setupSettingRouter(newMockSettingStore())

	rr := putJSON(t, r, "/settings/printer", map[string]interface{}{
		"name":     "Kitchen",
		"ip_adres": "10.0.0.5", // typo must not be dropped silently
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateSettings_UnknownSection(t *testing.T) {
	r := setupSettingRouter(newMockSettingStore())

	rr := putJSON(t, r, "/settings/loyalty", map[string]interface{}{"rate": 2})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateSettings_PaymentMethodsValidated(t *testing.T) {
	r := setupSettingRouter(newMockSettingStore())

	rr := putJSON(t, r, "/settings/payment", map[string]interface{}{
		"enabled_methods": []string{"cash", "crypto"},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
