package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientCheckStatus(t *testing.T) {
	t.Run("returns parsed state on 200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/payments/order-status" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req orderStatusRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.OrderID != "ord-42" {
				t.Errorf("unexpected order_id %q", req.OrderID)
			}
			_ = json.NewEncoder(w).Encode(orderStatusResponse{State: "Completed"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "secret", 2*time.Second)
		status, err := client.CheckStatus(context.Background(), "ord-42")
		if err != nil {
			t.Fatalf("CheckStatus failed: %v", err)
		}
		if status != StatusCompleted {
			t.Errorf("got status %q, want %q", status, StatusCompleted)
		}
	})

	t.Run("sends bearer token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("unexpected authorization header %q", got)
			}
			_ = json.NewEncoder(w).Encode(orderStatusResponse{State: "pending"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "secret", 2*time.Second)
		if _, err := client.CheckStatus(context.Background(), "ord-1"); err != nil {
			t.Fatalf("CheckStatus failed: %v", err)
		}
	})

	t.Run("non-200 becomes StatusError", func(t *testing.T) {
		for _, code := range []int{http.StatusNotFound, http.StatusBadRequest, http.StatusInternalServerError} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))

			client := NewHTTPClient(srv.URL, "", 2*time.Second)
			_, err := client.CheckStatus(context.Background(), "ord-1")
			srv.Close()

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError for %d, got %v", code, err)
			}
			if statusErr.StatusCode != code {
				t.Errorf("got code %d, want %d", statusErr.StatusCode, code)
			}
		}
	})
}

func TestHTTPClientCreateOrder(t *testing.T) {
	t.Run("returns provider order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payments/orders" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req CreateOrderRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.AmountCents != 1299 || req.Currency != "EUR" {
				t.Errorf("unexpected request %+v", req)
			}
			_ = json.NewEncoder(w).Encode(CreateOrderResponse{OrderID: "prov-7", State: "created"})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", 2*time.Second)
		resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{AmountCents: 1299, Currency: "EUR"})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		if resp.OrderID != "prov-7" {
			t.Errorf("got order id %q, want prov-7", resp.OrderID)
		}
	})

	t.Run("missing order_id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(CreateOrderResponse{})
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "", 2*time.Second)
		if _, err := client.CreateOrder(context.Background(), CreateOrderRequest{AmountCents: 100, Currency: "EUR"}); err == nil {
			t.Fatal("expected error for missing order_id")
		}
	})
}
