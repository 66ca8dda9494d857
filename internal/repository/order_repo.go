package repository

import (
	"context"

	"github.com/google/uuid"

	"openmates/payhub/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.PaymentOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentOrder, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*model.PaymentOrder, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.PaymentOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, failureReason string) error
}
