package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"esimsync/internal/apperr"
)

// OrderPaidEvent is the subset of the storefront "orders/paid" payload the
// orchestrator needs.
type OrderPaidEvent struct {
	ID           FlexibleID      `json:"id"`
	Name         string          `json:"name,omitempty"`
	Email        string          `json:"email"`
	ContactEmail string          `json:"contact_email,omitempty"`
	LineItems    []OrderLineItem `json:"line_items"`
}

type OrderLineItem struct {
	SKU       string     `json:"sku"`
	ProductID FlexibleID `json:"product_id,omitempty"`
	VariantID FlexibleID `json:"variant_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Quantity  int        `json:"quantity"`
}

// FlexibleID decodes ids sent either as JSON numbers or strings.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

// CustomerEmail prefers the order email and falls back to the contact email.
func (e *OrderPaidEvent) CustomerEmail() string {
	if email := strings.TrimSpace(e.Email); email != "" {
		return email
	}
	return strings.TrimSpace(e.ContactEmail)
}

// Validate rejects events the orchestrator cannot act on. No side effects
// are performed for an invalid event.
func (e *OrderPaidEvent) Validate() error {
	var problems []string
	if strings.TrimSpace(e.ID.String()) == "" {
		problems = append(problems, "order id is required")
	}
	if email := e.CustomerEmail(); email == "" {
		problems = append(problems, "customer email is required")
	} else if !strings.Contains(email, "@") {
		problems = append(problems, "customer email is invalid")
	}
	if len(e.LineItems) == 0 {
		problems = append(problems, "at least one line item is required")
	}
	for i, item := range e.LineItems {
		if strings.TrimSpace(item.SKU) == "" {
			problems = append(problems, fmt.Sprintf("line_items[%d]: sku is required", i))
		}
		if item.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("line_items[%d]: quantity must be positive", i))
		}
	}
	if len(problems) > 0 {
		return apperr.E(apperr.KindValidation, "OrderPaidEvent.Validate", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
