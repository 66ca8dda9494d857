package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"openmates/payhub/internal/model"
	"openmates/payhub/internal/payment"
	"openmates/payhub/internal/repository"
)

const (
	stateKeyOrderResult = "order_result:"
	orderResultTTL      = 24 * time.Hour
	callbackTimeout     = 10 * time.Second
)

type PaymentService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, amountCents int64, currency, description string) (*model.PaymentOrder, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.PaymentOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]model.PaymentOrder, error)
	CancelPolling(ctx context.Context, userID, orderID uuid.UUID) error
	Close()
}

// orderResult is the cached terminal outcome of a poll session, written by
// the poll callbacks and read on order fetches so the front end sees the
// outcome even before the row update lands.
type orderResult struct {
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type paymentService struct {
	client     payment.Client
	poller     *payment.Poller
	orderRepo  repository.OrderRepository
	stateStore repository.StateStore
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*payment.Session // keyed by provider order ID
	closed   bool
}

func NewPaymentService(
	client payment.Client,
	poller *payment.Poller,
	orderRepo repository.OrderRepository,
	stateStore repository.StateStore,
	logger *zap.Logger,
) PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &paymentService{
		client:     client,
		poller:     poller,
		orderRepo:  orderRepo,
		stateStore: stateStore,
		logger:     logger,
		sessions:   make(map[string]*payment.Session),
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, userID uuid.UUID, amountCents int64, currency, description string) (*model.PaymentOrder, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	resp, err := s.client.CreateOrder(ctx, payment.CreateOrderRequest{
		AmountCents: amountCents,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider order: %w", err)
	}

	status := payment.ParseOrderStatus(resp.State)
	if status == payment.StatusUnknown {
		status = payment.StatusCreated
	}

	order := &model.PaymentOrder{
		UserID:          userID,
		ProviderOrderID: resp.OrderID,
		AmountCents:     amountCents,
		Currency:        currency,
		Description:     description,
		Status:          status.String(),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.startPolling(resp.OrderID)
	return order, nil
}

// startPolling opens a poll session for the given provider order, cancelling
// any prior session for it first. At most one session per order is live.
func (s *paymentService) startPolling(providerOrderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.sessions[providerOrderID]; ok {
		prev.Stop()
	}
	s.sessions[providerOrderID] = s.poller.Start(providerOrderID, s.onPollSuccess, s.onPollFailure)
}

func (s *paymentService) dropSession(providerOrderID string) {
	s.mu.Lock()
	delete(s.sessions, providerOrderID)
	s.mu.Unlock()
}

func (s *paymentService) onPollSuccess(providerOrderID string) {
	s.dropSession(providerOrderID)
	s.recordOutcome(providerOrderID, payment.StatusCompleted, "")
}

func (s *paymentService) onPollFailure(providerOrderID, reason string) {
	s.dropSession(providerOrderID)
	status := payment.StatusFailed
	if reason == "payment "+payment.StatusCancelled.String() {
		status = payment.StatusCancelled
	}
	s.recordOutcome(providerOrderID, status, reason)
}

func (s *paymentService) recordOutcome(providerOrderID string, status payment.OrderStatus, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	s.logger.Info("payment order reached terminal state",
		zap.String("provider_order_id", providerOrderID),
		zap.String("status", status.String()),
		zap.String("reason", reason))

	result, _ := json.Marshal(orderResult{Status: status.String(), FailureReason: reason})
	if err := s.stateStore.Set(ctx, stateKeyOrderResult+providerOrderID, result, orderResultTTL); err != nil {
		s.logger.Warn("failed to cache order result", zap.String("provider_order_id", providerOrderID), zap.Error(err))
	}

	order, err := s.orderRepo.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		s.logger.Error("failed to load order for status update",
			zap.String("provider_order_id", providerOrderID), zap.Error(err))
		return
	}
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, status.String(), reason); err != nil {
		s.logger.Error("failed to update order status",
			zap.String("provider_order_id", providerOrderID), zap.Error(err))
	}
}

func (s *paymentService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.PaymentOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotOwned
	}

	// Overlay a cached terminal result in case the row update has not
	// landed yet.
	if !payment.ParseOrderStatus(order.Status).Terminal() {
		if data, err := s.stateStore.Get(ctx, stateKeyOrderResult+order.ProviderOrderID); err == nil && data != nil {
			var result orderResult
			if json.Unmarshal(data, &result) == nil {
				order.Status = result.Status
				order.FailureReason = result.FailureReason
			}
		}
	}

	return order, nil
}

func (s *paymentService) ListOrders(ctx context.Context, userID uuid.UUID) ([]model.PaymentOrder, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}

// CancelPolling stops observing an order. The provider-side order is left
// untouched; callers that want a provider cancellation go through the
// provider's own UI. Idempotent.
func (s *paymentService) CancelPolling(ctx context.Context, userID, orderID uuid.UUID) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return ErrOrderNotOwned
	}

	s.mu.Lock()
	session, ok := s.sessions[order.ProviderOrderID]
	if ok {
		delete(s.sessions, order.ProviderOrderID)
	}
	s.mu.Unlock()

	if ok {
		session.Stop()
	}
	return nil
}

// Close stops all live poll sessions. Called on shutdown so no timers or
// goroutines outlive the server.
func (s *paymentService) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*payment.Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
	for _, session := range sessions {
		select {
		case <-session.Done():
		case <-time.After(callbackTimeout):
			s.logger.Warn("poll session did not exit in time", zap.String("order_id", session.OrderID()))
		}
	}
}

var _ PaymentService = (*paymentService)(nil)
