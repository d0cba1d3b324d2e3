package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"
)

func TestClientDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/abc" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"_id":"abc","type":"expense","amount":"12.50","category":"Food","description":"lunch","date":"2024-01-10"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithTokenSource(func() string { return "tok-1" }))
	got, err := client.GetTransaction(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "abc" || got.Kind != core.Expense || got.Category != "Food" {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestClientUnauthorizedInvokesHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	hooked := 0
	client := NewClient(server.URL, WithUnauthorizedHandler(func() { hooked++ }))

	_, err := client.GetTransaction(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		t.Fatalf("expected unauthorized api error, got %v", err)
	}
	if hooked != 1 {
		t.Fatalf("hook should fire once, got %d", hooked)
	}
}

func TestClientEnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"validation failed","errors":[{"field":"amount","message":"must be positive"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CreateTransaction(context.Background(), CreateTransactionRequest{})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "validation failed" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "amount" {
		t.Fatalf("expected field error, got %+v", apiErr.Fields)
	}
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FetchUnread(context.Background(), "u1")
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.NotFound() {
		t.Fatalf("expected not-found api error, got %v", err)
	}
}

func TestClientConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(server.URL)
	_, err := client.GetTransaction(context.Background(), "abc")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != 0 || apiErr.Message != "connection error" {
		t.Fatalf("transport failures must normalize, got %+v", apiErr)
	}
	if apiErr.Unwrap() == nil {
		t.Fatal("cause should be preserved")
	}
}

func TestClientSuccessFalseWithoutStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"nope"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.DeleteTransaction(context.Background(), "abc")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
		t.Fatalf("expected envelope failure, got %v", err)
	}
}
