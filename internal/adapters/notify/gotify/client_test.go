package gotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hylla/daybox/internal/app"
)

func TestClientNotifyPostsMessage(t *testing.T) {
	var got []message
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/message" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var msg message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body error = %v", err)
		}
		got = append(got, msg)
		keys = append(keys, r.Header.Get("X-Gotify-Key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{URL: server.URL + "/", Token: "secret", Priority: 5, DelayedPriority: 8})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := client.Notify(ctx, app.Notification{Title: "Focus", Body: "1. Close chat"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := client.Notify(ctx, app.Notification{Title: "soon", Body: "x", Delayed: true}); err != nil {
		t.Fatalf("Notify(delayed) error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	if got[0].Title != "Focus" || got[0].Message != "1. Close chat" || got[0].Priority != 5 {
		t.Fatalf("unexpected first message %#v", got[0])
	}
	if got[1].Priority != 8 {
		t.Fatalf("expected delayed priority, got %d", got[1].Priority)
	}
	if keys[0] != "secret" {
		t.Fatalf("expected token header, got %q", keys[0])
	}
}

func TestClientNotifyStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{URL: server.URL, Token: "nope"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.Notify(context.Background(), app.Notification{Title: "x"}); err == nil {
		t.Fatal("expected status error")
	}
}

func TestClientRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{URL: server.URL, Token: "t", RatePerMinute: 1, Burst: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := client.Notify(ctx, app.Notification{Title: "one"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := client.Notify(ctx, app.Notification{Title: "two"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one request to reach the server, got %d", calls)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Config{URL: "http://x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
