package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingOrder is one unit of fulfillment work whose activation artifact has
// not yet been delivered to the storefront order.
type PendingOrder struct {
	ID                 string       `json:"id" gorm:"primaryKey;size:36"`
	ProviderOrderCode  string       `json:"provider_order_code" gorm:"index;not null"`
	ProviderOrderID    string       `json:"provider_order_id,omitempty"`
	DestinationOrderID string       `json:"destination_order_id" gorm:"index:idx_pending_destination_sku;not null"`
	CustomerEmail      string       `json:"customer_email"`
	SKU                string       `json:"sku" gorm:"index:idx_pending_destination_sku"`
	ProductID          string       `json:"product_id"`
	Stage              PendingStage `json:"stage" gorm:"not null;default:awaiting_id"`
	Attempts           int          `json:"attempts" gorm:"default:0"`
	LastError          string       `json:"last_error,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// PendingStage is the step a parked order resumes from.
type PendingStage string

const (
	StageCompleting       PendingStage = "completing"
	StageAwaitingID       PendingStage = "awaiting_id"
	StageAwaitingArtifact PendingStage = "awaiting_artifact"
)

func (p *PendingOrder) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
