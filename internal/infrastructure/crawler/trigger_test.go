package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docintel/docintel/internal/core/domain"
)

func TestTriggerPostsURLAndDepth(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	trigger := New(server.URL)
	if err := trigger.Trigger(context.Background(), "https://example.com", 2); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if captured["url"] != "https://example.com" || captured["depth"] != float64(2) {
		t.Fatalf("unexpected payload: %v", captured)
	}
}

func TestTriggerDefaultsDepth(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
	}))
	defer server.Close()

	trigger := New(server.URL)
	if err := trigger.Trigger(context.Background(), "https://example.com", 0); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if captured["depth"] != float64(1) {
		t.Fatalf("depth = %v, want 1", captured["depth"])
	}
}

func TestTriggerUnconfigured(t *testing.T) {
	trigger := New("")
	if trigger.Configured() {
		t.Fatalf("Configured() = true without webhook url")
	}
	err := trigger.Trigger(context.Background(), "https://example.com", 1)
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

func TestTriggerEmptyURL(t *testing.T) {
	trigger := New("http://crawler.local/hook")
	err := trigger.Trigger(context.Background(), "  ", 1)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
