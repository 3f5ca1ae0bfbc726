package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQueryAnalysisLogs verifies the filter is sent as query params and the
// JSON array response is parsed.
func TestQueryAnalysisLogs(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/history": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if got := q.Get("kind"); got != "upload" {
				t.Errorf("kind=%q, want upload", got)
			}
			if got := q.Get("exercise"); got != "plank" {
				t.Errorf("exercise=%q, want plank", got)
			}
			if got := q.Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			processed := "http://backend/outputs/analyzed_a.mp4"
			writeTestJSON(t, w, []models.AnalysisLog{
				{ID: 7, Kind: models.KindUpload, Exercise: models.Plank, Status: "success", Processed: &processed},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL + "/")
	logs, err := client.QueryAnalysisLogs(context.Background(), storage.HistoryFilter{
		Kind:     models.KindUpload,
		Exercise: models.Plank,
		Limit:    5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].ID != 7 || logs[0].Processed == nil || *logs[0].Processed != "http://backend/outputs/analyzed_a.mp4" {
		t.Errorf("log = %+v", logs[0])
	}
}

func TestQueryAnalysisLogsEmptyFilter(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/history": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				t.Errorf("query = %q, want empty", r.URL.RawQuery)
			}
			w.Write([]byte("null"))
		},
	})
	defer ts.Close()

	logs, err := NewHTTPClient(ts.URL).QueryAnalysisLogs(context.Background(), storage.HistoryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if logs == nil || len(logs) != 0 {
		t.Errorf("logs = %#v, want empty non-nil", logs)
	}
}

// TestHTTPClientServerError verifies non-200 responses become errors.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/history": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL).QueryAnalysisLogs(context.Background(), storage.HistoryFilter{}); err == nil {
		t.Error("expected error for 500 response")
	}
}
