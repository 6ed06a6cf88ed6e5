package models

import (
	"encoding/json"
	"testing"

	"esimsync/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPaidEvent_DecodeNumericAndStringIDs(t *testing.T) {
	var numeric OrderPaidEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id": 820982911946154508, "email": "a@b.com",
		"line_items": [{"sku": "PLAN-5GB-EU", "quantity": 1, "product_id": 632910392}]}`), &numeric))
	assert.Equal(t, "820982911946154508", numeric.ID.String())
	assert.Equal(t, "632910392", numeric.LineItems[0].ProductID.String())

	var str OrderPaidEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id": "1001", "email": "a@b.com", "line_items": []}`), &str))
	assert.Equal(t, "1001", str.ID.String())
}

func TestOrderPaidEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   OrderPaidEvent
		wantErr string
	}{
		{
			name: "valid",
			event: OrderPaidEvent{ID: "1001", Email: "a@b.com",
				LineItems: []OrderLineItem{{SKU: "PLAN-5GB-EU", Quantity: 1}}},
		},
		{
			name: "contact_email_fallback",
			event: OrderPaidEvent{ID: "1001", ContactEmail: "c@d.com",
				LineItems: []OrderLineItem{{SKU: "PLAN", Quantity: 2}}},
		},
		{
			name:    "missing_id",
			event:   OrderPaidEvent{Email: "a@b.com", LineItems: []OrderLineItem{{SKU: "PLAN", Quantity: 1}}},
			wantErr: "order id is required",
		},
		{
			name:    "missing_email",
			event:   OrderPaidEvent{ID: "1", LineItems: []OrderLineItem{{SKU: "PLAN", Quantity: 1}}},
			wantErr: "customer email is required",
		},
		{
			name:    "missing_sku",
			event:   OrderPaidEvent{ID: "1", Email: "a@b.com", LineItems: []OrderLineItem{{Quantity: 1}}},
			wantErr: "line_items[0]: sku is required",
		},
		{
			name:    "no_items",
			event:   OrderPaidEvent{ID: "1", Email: "a@b.com"},
			wantErr: "at least one line item is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
