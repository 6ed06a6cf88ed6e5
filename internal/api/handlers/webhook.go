package handlers

import (
	"context"
	"fmt"
	"net/http"

	"esimsync/internal/apperr"
	"esimsync/internal/fulfillment"
	"esimsync/internal/logger"
	"esimsync/internal/models"

	"github.com/gin-gonic/gin"
)

type Fulfiller interface {
	Fulfill(ctx context.Context, event *models.OrderPaidEvent) (*fulfillment.Result, error)
}

type WebhookHandler struct {
	fulfiller Fulfiller
	logger    *logger.Logger
}

func NewWebhookHandler(fulfiller Fulfiller, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		fulfiller: fulfiller,
		logger:    logger,
	}
}

// OrderPaid handles the storefront "orders/paid" webhook.
func (h *WebhookHandler) OrderPaid(c *gin.Context) {
	var event models.OrderPaidEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		respondError(c, apperr.E(apperr.KindValidation, "webhook.OrderPaid", fmt.Errorf("invalid payload: %w", err)))
		return
	}

	h.logger.Info("Received paid order %s with %d line items", event.ID, len(event.LineItems))

	result, err := h.fulfiller.Fulfill(c.Request.Context(), &event)
	if err != nil {
		if result == nil {
			respondError(c, err)
			return
		}
		h.logger.Error("Order %s not fully processed: %v", event.ID, err)
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"status":   "error",
			"order_id": result.OrderID,
			"results":  result.Lines,
			"error":    err.Error(),
			"kind":     apperr.KindOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"order_id": result.OrderID,
		"results":  result.Lines,
	})
}
