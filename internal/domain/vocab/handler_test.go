package vocab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vadssync/vadssync/internal/platform/index"
)

type failingPingStore struct {
	*index.MemoryStore
}

func (failingPingStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestHandler(t *testing.T, m *mockCatalog) (*Handler, *Dispatcher, *index.MemoryStore, *echo.Echo) {
	t.Helper()
	d, store, _ := newTestDispatcher(t, m)
	return NewHandler(store, d), d, store, echo.New()
}

func TestHandler_Health(t *testing.T) {
	h, _, _, e := newTestHandler(t, newMockCatalog())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := h.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_HealthUnavailable(t *testing.T) {
	h := NewHandler(failingPingStore{index.NewMemoryStore()}, nil)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := h.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHandler_GetDocument(t *testing.T) {
	h, _, store, e := newTestHandler(t, newMockCatalog())
	ctx := context.Background()
	if err := store.EnsureCollections(ctx, Collections); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, CollectionCodeSystems, TypeCodeSystem, "2.16.1", map[string]string{"name": "Race"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/code_systems/code_system/2.16.1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("collection", "type", "id")
	c.SetParamValues(CollectionCodeSystems, TypeCodeSystem, "2.16.1")

	if err := h.GetDocument(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var doc map[string]string
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if doc["name"] != "Race" {
		t.Errorf("expected stored document, got %s", rec.Body.String())
	}
}

func TestHandler_GetDocument_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler(t, newMockCatalog())

	for _, collection := range []string{CollectionCodes, "secrets"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("collection", "type", "id")
		c.SetParamValues(collection, "x", "y")

		err := h.GetDocument(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %v", collection, err)
		}
	}
}

func TestHandler_TriggerOperation(t *testing.T) {
	m := newMockCatalog()
	m.codeSystems = []CodeSystem{{OID: "2.16.1"}}
	m.csConcepts["2.16.1"] = makeCSConcepts("2.16.1", 3)
	h, _, store, e := newTestHandler(t, m)

	body := `{"operation":"sync_cs:2.16.1","force":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.TriggerOperation(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.CodeSystemsSynced != 1 || rep.ConceptsWritten != 3 {
		t.Errorf("unexpected report %+v", rep)
	}
	if store.Count(CollectionCodes) != 3 {
		t.Errorf("expected 3 codes indexed, got %d", store.Count(CollectionCodes))
	}
}

func TestHandler_TriggerOperation_Unknown(t *testing.T) {
	h, _, _, e := newTestHandler(t, newMockCatalog())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(`{"operation":"drop_all"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.TriggerOperation(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_TriggerOperation_Busy(t *testing.T) {
	h, d, _, e := newTestHandler(t, newMockCatalog())
	d.mu.Lock()
	defer d.mu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(`{"operation":"sync_all"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.TriggerOperation(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, _, e := newTestHandler(t, newMockCatalog())
	h.RegisterRoutes(e.Group("/api/v1"))

	found := map[string]bool{}
	for _, r := range e.Routes() {
		found[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{"GET /api/v1/documents/:collection/:type/:id", "POST /api/v1/operations"} {
		if !found[want] {
			t.Errorf("expected route %s", want)
		}
	}
}
