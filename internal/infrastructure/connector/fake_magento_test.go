package connector

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
)

// fakeMagento serves the REST endpoints the session calls and records
// what it received.
type fakeMagento struct {
	*httptest.Server

	mu             sync.Mutex
	requests       []recordedRequest
	attributeCalls int
	storeCalls     int
	linked         map[string]bool
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newFakeMagento(t *testing.T) *fakeMagento {
	t.Helper()
	f := &fakeMagento{linked: map[string]bool{"V-dup": true}}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /rest/V1/eav/attribute-sets/list", func(w http.ResponseWriter, r *http.Request) {
		f.record(t, r)
		f.mu.Lock()
		f.attributeCalls++
		f.mu.Unlock()
		items := []map[string]any{}
		if r.URL.Query().Get("searchCriteria[filterGroups][0][filters][0][value]") == "Default" {
			items = append(items, map[string]any{"attribute_set_id": 4, "attribute_set_name": "Default"})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})
	mux.HandleFunc("GET /rest/V1/store/storeViews", func(w http.ResponseWriter, r *http.Request) {
		f.record(t, r)
		f.mu.Lock()
		f.storeCalls++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 0, "code": "admin"},
			{"id": 1, "code": "default"},
			{"id": 2, "code": "fr"},
		})
	})
	mux.HandleFunc("PUT /rest/{store}/V1/products/{sku}", func(w http.ResponseWriter, r *http.Request) {
		f.record(t, r)
		if r.PathValue("sku") == "BAD" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message":    `The "%1" attribute value is empty. Set the attribute and try again.`,
				"parameters": []string{"name"},
			})
			return
		}
		if r.PathValue("sku") == "DOWN" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 42, "sku": r.PathValue("sku")})
	})
	mux.HandleFunc("GET /rest/{store}/V1/products/{sku}", func(w http.ResponseWriter, r *http.Request) {
		f.record(t, r)
		writeJSON(w, http.StatusOK, map[string]any{"id": 42, "sku": r.PathValue("sku")})
	})
	mux.HandleFunc("POST /rest/V1/inventory/source-items", func(w http.ResponseWriter, r *http.Request) {
		f.record(t, r)
		writeJSON(w, http.StatusOK, []any{})
	})
	mux.HandleFunc("POST /rest/{store}/V1/configurable-products/{sku}/child", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(t, r)
		child, _ := body["childSku"].(string)
		f.mu.Lock()
		already := f.linked[child]
		f.linked[child] = true
		f.mu.Unlock()
		if already {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "The product is already attached."})
			return
		}
		writeJSON(w, http.StatusOK, true)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeMagento) record(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	f.mu.Unlock()
	return body
}

// last returns the most recent request matching method and path.
func (f *fakeMagento) last(method, path string) (recordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return f.requests[i], true
		}
	}
	return recordedRequest{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testConnectorConfig(baseURL string) config.ConnectorConfig {
	return config.ConnectorConfig{
		BaseURL: baseURL,
		Token:   "tok-123",
	}
}

func (f *fakeMagento) lookupCalls() (attributeSets, stores int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attributeCalls, f.storeCalls
}
