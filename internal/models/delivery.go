package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery records an activation artifact attached to a storefront order.
type Delivery struct {
	ID                 string    `json:"id" gorm:"primaryKey;size:36"`
	ProviderOrderCode  string    `json:"provider_order_code" gorm:"uniqueIndex;not null"`
	ProviderOrderID    string    `json:"provider_order_id"`
	DestinationOrderID string    `json:"destination_order_id" gorm:"index:idx_delivery_destination_sku;not null"`
	SKU                string    `json:"sku" gorm:"index:idx_delivery_destination_sku"`
	QRCodeURL          string    `json:"qr_code_url"`
	LPACode            string    `json:"lpa_code"`
	EmailSent          bool      `json:"email_sent" gorm:"default:false"`
	DeliveredAt        time.Time `json:"delivered_at"`
	CreatedAt          time.Time `json:"created_at"`
}

func (d *Delivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = time.Now()
	}
	return nil
}
