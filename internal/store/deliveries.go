package store

import (
	"context"
	"fmt"
	"strings"

	"esimsync/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deliveries is the ledger of activation artifacts attached to storefront orders.
type Deliveries interface {
	Record(ctx context.Context, delivery *models.Delivery) error
	Count(ctx context.Context, destinationOrderID, sku string) (int64, error)
}

type DeliveryStore struct {
	db *gorm.DB
}

func NewDeliveryStore(db *gorm.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// Record stores a delivery. Re-recording the same provider order code
// overwrites the artifact columns (last write wins).
func (s *DeliveryStore) Record(ctx context.Context, delivery *models.Delivery) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_order_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider_order_id", "qr_code_url", "lpa_code", "email_sent", "delivered_at"}),
	}).Create(delivery).Error
	if err != nil {
		return fmt.Errorf("failed to record delivery %s: %w", delivery.ProviderOrderCode, err)
	}
	return nil
}

func (s *DeliveryStore) Count(ctx context.Context, destinationOrderID, sku string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("destination_order_id = ? AND sku = ?", destinationOrderID, sku).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return n, nil
}

// List returns the most recent deliveries.
func (s *DeliveryStore) List(ctx context.Context, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var deliveries []models.Delivery
	if err := s.db.WithContext(ctx).Order("delivered_at desc").Limit(limit).Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var (
	_ Deliveries    = (*DeliveryStore)(nil)
	_ PendingOrders = (*PendingStore)(nil)
)
