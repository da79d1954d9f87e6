package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyTransaction_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/transaction/verify/ref-123" {
			t.Fatalf("path = %s, want /transaction/verify/ref-123", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("authorization = %q", got)
		}

		resp := verifyResponse{
			Status:  true,
			Message: "Verification successful",
			Data: &Transaction{
				Status:    "success",
				Reference: "ref-123",
				Amount:    4500000,
				Currency:  "NGN",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tx, code, retry, err := client.VerifyTransaction(ctx, "ref-123")
	if err != nil {
		t.Fatalf("VerifyTransaction error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if !tx.Succeeded() || tx.Amount != 4500000 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestVerifyTransaction_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test")

	tx, code, retry, err := client.VerifyTransaction(context.Background(), "ref")
	if err != nil {
		t.Fatalf("VerifyTransaction error: %v", err)
	}
	if tx != nil {
		t.Fatalf("expected nil transaction, got %+v", tx)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry != 5*time.Second {
		t.Fatalf("retryAfter = %v, want 5s", retry)
	}
}

func TestVerifyTransaction_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	tx, code, _, err := NewClient(ts.URL, "sk_test").VerifyTransaction(context.Background(), "missing")
	if err != nil {
		t.Fatalf("VerifyTransaction error: %v", err)
	}
	if tx != nil || code != http.StatusNotFound {
		t.Fatalf("unexpected result: %+v %d", tx, code)
	}
}

func TestVerifyTransaction_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, code, _, err := NewClient(ts.URL, "sk_test").VerifyTransaction(context.Background(), "ref")
	if err == nil {
		t.Fatalf("expected error for status %d", code)
	}
}

func TestVerifyTransaction_NotConfigured(t *testing.T) {
	var c *Client
	if _, _, _, err := c.VerifyTransaction(context.Background(), "ref"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, _, _, err := NewClient("", "").VerifyTransaction(context.Background(), "ref"); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
