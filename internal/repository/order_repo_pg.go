package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"openmates/payhub/internal/model"
)

type pgOrderRepository struct {
	db *gorm.DB
}

func NewPGOrderRepository(db *gorm.DB) OrderRepository {
	return &pgOrderRepository{db: db}
}

func (r *pgOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *pgOrderRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("provider_order_id = ?", providerOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *pgOrderRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.PaymentOrder, error) {
	var orders []model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *pgOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, failureReason string) error {
	return r.db.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": failureReason,
		}).Error
}
