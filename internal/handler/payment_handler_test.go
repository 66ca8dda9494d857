package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"openmates/payhub/internal/handler/middleware"
	"openmates/payhub/internal/model"
	"openmates/payhub/internal/service"
	jwtpkg "openmates/payhub/pkg/jwt"
	"openmates/payhub/pkg/response"
)

type fakePaymentService struct {
	orders       map[uuid.UUID]*model.PaymentOrder
	cancelled    []uuid.UUID
	createErr    error
	lastAmount   int64
	lastCurrency string
}

func newFakePaymentService() *fakePaymentService {
	return &fakePaymentService{orders: make(map[uuid.UUID]*model.PaymentOrder)}
}

func (s *fakePaymentService) CreateOrder(_ context.Context, userID uuid.UUID, amountCents int64, currency, description string) (*model.PaymentOrder, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.lastAmount = amountCents
	s.lastCurrency = currency
	order := &model.PaymentOrder{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
		Description: description,
		Status:      "created",
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *fakePaymentService) GetOrder(_ context.Context, userID, orderID uuid.UUID) (*model.PaymentOrder, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, service.ErrOrderNotOwned
	}
	return order, nil
}

func (s *fakePaymentService) ListOrders(_ context.Context, userID uuid.UUID) ([]model.PaymentOrder, error) {
	var out []model.PaymentOrder
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *fakePaymentService) CancelPolling(_ context.Context, userID, orderID uuid.UUID) error {
	if _, err := s.GetOrder(context.Background(), userID, orderID); err != nil {
		return err
	}
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

func (s *fakePaymentService) Close() {}

// newPaymentRouter wires the handler behind a stub auth layer that injects
// claims for the given user.
func newPaymentRouter(svc service.PaymentService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserClaims, &jwtpkg.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
			TokenType:        jwtpkg.TokenTypeAccess,
		})
	})

	h := NewPaymentHandler(svc)
	orders := r.Group("/api/v1/payments/orders")
	{
		orders.POST("", h.Create)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.POST("/:id/cancel", h.Cancel)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed response.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return w, parsed
}

func TestPaymentHandlerCreate(t *testing.T) {
	userID := uuid.New()
	svc := newFakePaymentService()
	r := newPaymentRouter(svc, userID)

	t.Run("valid order is created", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodPost, "/api/v1/payments/orders", gin.H{
			"amount_cents": 1299,
			"currency":     "EUR",
			"description":  "premium upgrade",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if resp.Code != 0 {
			t.Errorf("api code = %d, want 0", resp.Code)
		}
		if svc.lastAmount != 1299 || svc.lastCurrency != "EUR" {
			t.Errorf("service received %d %s", svc.lastAmount, svc.lastCurrency)
		}
	})

	t.Run("zero amount is rejected before the service", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/payments/orders", gin.H{
			"amount_cents": 0,
			"currency":     "EUR",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("bad currency is rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/payments/orders", gin.H{
			"amount_cents": 100,
			"currency":     "EURO",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestPaymentHandlerGet(t *testing.T) {
	userID := uuid.New()
	svc := newFakePaymentService()
	order, _ := svc.CreateOrder(context.Background(), userID, 500, "EUR", "")
	r := newPaymentRouter(svc, userID)

	t.Run("own order is returned", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/v1/payments/orders/"+order.ID.String(), nil)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/v1/payments/orders/"+uuid.NewString(), nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/v1/payments/orders/not-a-uuid", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("foreign order is 403", func(t *testing.T) {
		stranger := newPaymentRouter(svc, uuid.New())
		w, _ := doJSON(t, stranger, http.MethodGet, "/api/v1/payments/orders/"+order.ID.String(), nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}

func TestPaymentHandlerCancel(t *testing.T) {
	userID := uuid.New()
	svc := newFakePaymentService()
	order, _ := svc.CreateOrder(context.Background(), userID, 500, "EUR", "")
	r := newPaymentRouter(svc, userID)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/payments/orders/"+order.ID.String()+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(svc.cancelled) != 1 || svc.cancelled[0] != order.ID {
		t.Errorf("cancel not forwarded to the service: %v", svc.cancelled)
	}
}
