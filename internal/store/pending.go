// Package store persists the pending-order queue and the delivery ledger.
package store

import (
	"context"
	"fmt"

	"esimsync/internal/models"

	"gorm.io/gorm"
)

// mutableColumns are the fields a recovery pass may change on a kept entry.
var mutableColumns = []string{"provider_order_id", "stage", "attempts", "last_error", "updated_at"}

// PendingOrders is the queue of orders awaiting asynchronous completion.
type PendingOrders interface {
	Append(ctx context.Context, order *models.PendingOrder) error
	List(ctx context.Context) ([]models.PendingOrder, error)
	Replace(ctx context.Context, listed, remaining []models.PendingOrder) error
	CountOpen(ctx context.Context, destinationOrderID, sku string) (int64, error)
}

type PendingStore struct {
	db *gorm.DB
}

func NewPendingStore(db *gorm.DB) *PendingStore {
	return &PendingStore{db: db}
}

// Append adds one entry. Entries are not deduplicated by provider order code.
func (s *PendingStore) Append(ctx context.Context, order *models.PendingOrder) error {
	if order.Stage == "" {
		order.Stage = models.StageAwaitingID
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to append pending order %s: %w", order.ProviderOrderCode, err)
	}
	return nil
}

// List returns every entry, oldest first. A store that was never written to
// is empty, not an error.
func (s *PendingStore) List(ctx context.Context) ([]models.PendingOrder, error) {
	var orders []models.PendingOrder
	err := s.db.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&orders).Error
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return orders, nil
}

// Replace settles a batch previously returned by List: entries of listed that
// are absent from remaining are deleted, entries of remaining are written
// back. Rows appended after listed was read are left untouched, so a new
// order arriving during a recovery pass is never lost, and rows deleted by a
// concurrent pass are not written back.
func (s *PendingStore) Replace(ctx context.Context, listed, remaining []models.PendingOrder) error {
	keep := make(map[string]struct{}, len(remaining))
	for _, o := range remaining {
		keep[o.ID] = struct{}{}
	}
	var drop []string
	for _, o := range listed {
		if _, ok := keep[o.ID]; !ok {
			drop = append(drop, o.ID)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(drop) > 0 {
			if err := tx.Where("id IN ?", drop).Delete(&models.PendingOrder{}).Error; err != nil {
				return fmt.Errorf("failed to remove settled pending orders: %w", err)
			}
		}
		for i := range remaining {
			order := remaining[i]
			// Update only: a row settled by another pass stays deleted.
			err := tx.Model(&models.PendingOrder{}).
				Where("id = ?", order.ID).
				Select(mutableColumns).
				Updates(&order).Error
			if err != nil {
				return fmt.Errorf("failed to write back pending order %s: %w", order.ProviderOrderCode, err)
			}
		}
		return nil
	})
}

// CountOpen counts parked units for one storefront line.
func (s *PendingStore) CountOpen(ctx context.Context, destinationOrderID, sku string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PendingOrder{}).
		Where("destination_order_id = ? AND sku = ?", destinationOrderID, sku).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending orders: %w", err)
	}
	return n, nil
}

func isMissingTable(err error) bool {
	return containsAny(err.Error(), "no such table", "does not exist")
}
