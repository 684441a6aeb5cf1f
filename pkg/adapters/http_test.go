package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quantfold/pricecast/pkg/tls"
)

func TestHTTPAdapterCollect(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		// Deliberately unsorted; the adapter must order by date.
		w.Write([]byte(`{"candles":[
			{"date":"2024-01-03","close":101.5},
			{"date":"2024-01-02","close":100.0},
			{"date":"2024-01-04","close":102.25}
		]}`))
	}))
	defer srv.Close()

	adapter := &HTTPAdapter{
		URL:          srv.URL + "/quotes/{{.Instrument}}/daily",
		Headers:      map[string]string{"Authorization": "Bearer {{.Token}}"},
		ClosePath:    "candles.#.close",
		DatePath:     "candles.#.date",
		DateFormat:   "2006-01-02",
		TemplateVars: map[string]string{"Token": "secret"},
	}

	series, err := adapter.Collect(context.Background(), "ACME", 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if gotPath != "/quotes/ACME/daily" {
		t.Errorf("request path = %q, want instrument substituted", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want rendered template var", gotAuth)
	}

	want := []float64{100.0, 101.5, 102.25}
	if series.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", series.Len(), len(want))
	}
	for i, v := range want {
		if series.Values[i] != v {
			t.Errorf("values[%d] = %v, want %v", i, series.Values[i], v)
		}
	}
}

func TestHTTPAdapterUnixDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"t":[1704153600,1704240000],"c":[100.0,101.0]}`))
	}))
	defer srv.Close()

	adapter := &HTTPAdapter{
		URL:        srv.URL,
		ClosePath:  "c",
		DatePath:   "t",
		DateFormat: "unix",
	}

	series, err := adapter.Collect(context.Background(), "ACME", 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("Len = %d, want 2", series.Len())
	}
	if got := series.Timestamps[0].UTC().Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("timestamps[0] = %s, want 2024-01-02", got)
	}
}

func TestHTTPAdapterErrors(t *testing.T) {
	mismatch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dates":["2024-01-02"],"closes":[1.0,2.0]}`))
	}))
	defer mismatch.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer failing.Close()

	tests := []struct {
		name    string
		adapter *HTTPAdapter
		wantSub string
	}{
		{
			name:    "missing url",
			adapter: &HTTPAdapter{ClosePath: "c", DatePath: "t"},
			wantSub: "URL is required",
		},
		{
			name:    "missing paths",
			adapter: &HTTPAdapter{URL: mismatch.URL},
			wantSub: "ClosePath and DatePath are required",
		},
		{
			name: "length mismatch",
			adapter: &HTTPAdapter{
				URL:        mismatch.URL,
				ClosePath:  "closes",
				DatePath:   "dates",
				DateFormat: "2006-01-02",
			},
			wantSub: "close count",
		},
		{
			name:    "http failure",
			adapter: &HTTPAdapter{URL: failing.URL, ClosePath: "c", DatePath: "t"},
			wantSub: "status 403",
		},
		{
			name: "broken tls material",
			adapter: &HTTPAdapter{
				URL:       mismatch.URL,
				ClosePath: "closes",
				DatePath:  "dates",
				TLS: tls.Config{
					Enabled:  true,
					CertFile: "testdata/missing.crt",
					KeyFile:  "testdata/missing.key",
				},
			},
			wantSub: "build client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.adapter.Collect(context.Background(), "ACME", 0)
			if err == nil {
				t.Fatal("Collect succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestFactory(t *testing.T) {
	a, err := New("csv", map[string]string{"path": "/tmp/prices.csv"})
	if err != nil {
		t.Fatalf("New(csv): %v", err)
	}
	if a.Name() != "csv" {
		t.Errorf("Name() = %q, want csv", a.Name())
	}

	a, err = New("http", map[string]string{
		"url":       "http://example.com",
		"closePath": "c",
		"datePath":  "t",
		"headers":   `{"X-Key":"abc"}`,
	})
	if err != nil {
		t.Fatalf("New(http): %v", err)
	}
	httpAdapter, ok := a.(*HTTPAdapter)
	if !ok {
		t.Fatalf("New(http) returned %T", a)
	}
	if httpAdapter.Headers["X-Key"] != "abc" {
		t.Errorf("headers not parsed: %v", httpAdapter.Headers)
	}

	a, err = New("http", map[string]string{
		"url":         "https://example.com",
		"closePath":   "c",
		"datePath":    "t",
		"timeout":     "5s",
		"tlsCertFile": "client.crt",
		"tlsKeyFile":  "client.key",
		"tlsCaFile":   "ca.crt",
	})
	if err != nil {
		t.Fatalf("New(http with tls): %v", err)
	}
	httpAdapter = a.(*HTTPAdapter)
	if httpAdapter.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", httpAdapter.Timeout)
	}
	if !httpAdapter.TLS.Enabled || httpAdapter.TLS.CAFile != "ca.crt" {
		t.Errorf("TLS config not parsed: %+v", httpAdapter.TLS)
	}

	if _, err := New("http", map[string]string{
		"url": "x", "closePath": "c", "datePath": "t", "timeout": "soon",
	}); err == nil {
		t.Error("New(http) with bad timeout succeeded, want error")
	}

	if _, err := New("kafka", nil); err == nil {
		t.Error("New(kafka) succeeded, want error")
	}
	if _, err := New("csv", map[string]string{}); err == nil {
		t.Error("New(csv) without path succeeded, want error")
	}
	if _, err := New("http", map[string]string{"url": "x"}); err == nil {
		t.Error("New(http) without paths succeeded, want error")
	}
}
