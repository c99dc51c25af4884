package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient(" https://one.example.com ", "https://two.example.com", 0)

	if client.currentURL != "https://one.example.com" {
		t.Errorf("currentURL = %s, want https://one.example.com", client.currentURL)
	}
	if client.graphURL != "https://two.example.com" {
		t.Errorf("graphURL = %s, want https://two.example.com", client.graphURL)
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.timeout, DefaultTimeout)
	}
}

func TestClient_FetchCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/current" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Measurement{
			Value:     120,
			Timestamp: "2024-03-01T10:00:00Z",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/current", server.URL+"/graph", time.Second)
	payload, err := client.FetchCurrent(context.Background())

	if err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}
	if payload.Kind != KindCurrent {
		t.Errorf("Kind = %s, want current", payload.Kind)
	}
	if payload.Current == nil || payload.Current.Value != 120 {
		t.Errorf("Current = %+v, want Value 120", payload.Current)
	}
}

func TestClient_FetchGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graph" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Measurement{
			{Value: 110, Timestamp: "2024-03-01T09:50:00Z"},
			{Value: 115, Timestamp: "2024-03-01T09:55:00Z"},
			{Value: 118, Timestamp: "2024-03-01T10:00:00Z"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/current", server.URL+"/graph", time.Second)
	payload, err := client.FetchGraph(context.Background())

	if err != nil {
		t.Fatalf("FetchGraph() error = %v", err)
	}
	if payload.Kind != KindGraph {
		t.Errorf("Kind = %s, want graph", payload.Kind)
	}
	if len(payload.Graph) != 3 {
		t.Errorf("Got %d measurements, want 3", len(payload.Graph))
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantText   string
	}{
		{"Not found", http.StatusNotFound, "", 404, "Request status: 404 - The requested resource was not found on the server"},
		{"Unauthorized with message", http.StatusUnauthorized, `{"message":"bad token"}`, 401, "Request status: 401 - Unauthorized: bad token"},
		{"Server error", http.StatusInternalServerError, "oops", 500, "Request status: 500 - Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, server.URL, time.Second)
			_, err := client.FetchCurrent(context.Background())

			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("FetchCurrent() error = %v, want *TransportError", err)
			}
			if transportErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", transportErr.StatusCode, tt.wantStatus)
			}
			if transportErr.Error() != tt.wantText {
				t.Errorf("Error() = %q, want %q", transportErr.Error(), tt.wantText)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, server.URL, 50*time.Millisecond)
	_, err := client.FetchGraph(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("FetchGraph() error = %v, want *TransportError", err)
	}
	if !strings.HasPrefix(transportErr.Error(), "Request timeout reached: 50 ms") {
		t.Errorf("Error() = %q, want timeout message", transportErr.Error())
	}
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Value": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, time.Second)
	_, err := client.FetchGraph(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("FetchGraph() error = %v, want *TransportError", err)
	}
	if transportErr.Op != "graph" {
		t.Errorf("Op = %s, want graph", transportErr.Op)
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, time.Second)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, url, time.Second)
	err := client.Ping(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Ping() error = %v, want *TransportError", err)
	}
	if transportErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", transportErr.StatusCode)
	}
}
