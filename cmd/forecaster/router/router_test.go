package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantfold/pricecast/pkg/storage"
)

type failingStore struct{}

func (failingStore) Put(ctx context.Context, s storage.Snapshot) error {
	return errors.New("boom")
}

func (failingStore) GetLatest(ctx context.Context, instrument string) (storage.Snapshot, bool, error) {
	return storage.Snapshot{}, false, errors.New("boom")
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedStore(t *testing.T, generatedAt time.Time) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	err := store.Put(context.Background(), storage.Snapshot{
		RunID:       "run-1",
		Instrument:  "ACME",
		GeneratedAt: generatedAt,
		Horizon:     5,
		Values:      []float64{101, 102, 103, 104, 105},
		BestOrder:   "(1,1,0)(0,1,1,5)",
		BestAIC:     412.7,
		MAPE:        1.8,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return store
}

func TestGetSnapshot(t *testing.T) {
	mux := SetupRoutes(seedStore(t, time.Now()), time.Hour, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/forecast/current?instrument=ACME", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Pricecast-Stale"); got != "" {
		t.Errorf("stale header set on fresh snapshot: %q", got)
	}

	var snapshot storage.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if snapshot.Instrument != "ACME" || snapshot.BestOrder != "(1,1,0)(0,1,1,5)" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
	if len(snapshot.Values) != 5 {
		t.Errorf("Values length = %d, want 5", len(snapshot.Values))
	}
}

func TestGetSnapshotStaleHeader(t *testing.T) {
	mux := SetupRoutes(seedStore(t, time.Now().Add(-2*time.Hour)), time.Hour, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/forecast/current?instrument=ACME", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Pricecast-Stale"); got != "true" {
		t.Errorf("stale header = %q, want true", got)
	}
}

func TestGetSnapshotErrors(t *testing.T) {
	tests := []struct {
		name     string
		store    storage.Store
		url      string
		wantCode int
	}{
		{"missing instrument", seedStore(t, time.Now()), "/forecast/current", http.StatusBadRequest},
		{"invalid instrument", seedStore(t, time.Now()), "/forecast/current?instrument=a%20b", http.StatusBadRequest},
		{"not found", seedStore(t, time.Now()), "/forecast/current?instrument=MISSING", http.StatusNotFound},
		{"store failure", failingStore{}, "/forecast/current?instrument=ACME", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := SetupRoutes(tt.store, time.Hour, testLogger())
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing 'error' field")
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	mux := SetupRoutes(seedStore(t, time.Now()), time.Hour, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

type pingableStore struct {
	storage.Store
	pingErr error
}

func (p pingableStore) Ping(ctx context.Context) error { return p.pingErr }

func TestHealthzReportsStoreHealth(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		wantCode int
	}{
		{"healthy backend", nil, http.StatusOK},
		{"unreachable backend", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := pingableStore{Store: seedStore(t, time.Now()), pingErr: tt.pingErr}
			mux := SetupRoutes(store, time.Hour, testLogger())

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
