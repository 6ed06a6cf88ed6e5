package validation

import (
	"encoding/json"
	"fmt"

	"esimsync/internal/apperr"
	"esimsync/internal/logger"
	"esimsync/internal/models"
)

type Validator struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{
		logger: logger,
	}
}

// DecodeOrderPaid decodes and validates the payload of an orders/paid event.
func (v *Validator) DecodeOrderPaid(data json.RawMessage) (*models.OrderPaidEvent, error) {
	const op = "validation.DecodeOrderPaid"

	if len(data) == 0 {
		return nil, apperr.E(apperr.KindValidation, op, fmt.Errorf("event has no data"))
	}

	var event models.OrderPaidEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, apperr.E(apperr.KindValidation, op, fmt.Errorf("invalid order payload: %w", err))
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	v.logger.Debug("Validated order %s with %d line items", event.ID, len(event.LineItems))
	return &event, nil
}

// DecodeOptional decodes data into out when present. An empty payload is valid.
func (v *Validator) DecodeOptional(data json.RawMessage, out interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.E(apperr.KindValidation, "validation.DecodeOptional", fmt.Errorf("invalid payload: %w", err))
	}
	return nil
}
