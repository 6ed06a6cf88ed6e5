package handlers

import (
	"context"
	"net/http"
	"strconv"

	"esimsync/internal/apperr"
	"esimsync/internal/models"
	"esimsync/internal/services/mobimatter"

	"github.com/gin-gonic/gin"
)

type PendingLister interface {
	List(ctx context.Context) ([]models.PendingOrder, error)
}

type DeliveryLister interface {
	List(ctx context.Context, limit int) ([]models.Delivery, error)
}

type UsageProvider interface {
	Usage(ctx context.Context, orderCode string) (*mobimatter.Usage, error)
}

type OrderHandler struct {
	pending    PendingLister
	deliveries DeliveryLister
	usage      UsageProvider
}

func NewOrderHandler(pending PendingLister, deliveries DeliveryLister, usage UsageProvider) *OrderHandler {
	return &OrderHandler{
		pending:    pending,
		deliveries: deliveries,
		usage:      usage,
	}
}

func (h *OrderHandler) ListPending(c *gin.Context) {
	orders, err := h.pending.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending orders"})
		return
	}
	if orders == nil {
		orders = []models.PendingOrder{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  orders,
		"total": len(orders),
	})
}

func (h *OrderHandler) ListDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	deliveries, err := h.deliveries.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deliveries"})
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  deliveries,
		"limit": limit,
	})
}

func (h *OrderHandler) Usage(c *gin.Context) {
	usage, err := h.usage.Usage(c.Request.Context(), c.Param("code"))
	if err != nil {
		if apperr.Is(err, apperr.KindProviderPending) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Usage not available yet"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}
