package processors

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid   = "orders/paid"
	EventRecoveryRun = "recovery.run"
	EventCatalogSync = "catalog.sync"
)

// Event is the envelope of every message on the orders topic.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// CatalogSyncRequest is the optional payload of a catalog.sync event.
type CatalogSyncRequest struct {
	Prune         *bool `json:"prune,omitempty"`
	RefreshPrices *bool `json:"refresh_prices,omitempty"`
}
