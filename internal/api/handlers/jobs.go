package handlers

import (
	"context"
	"net/http"
	"strconv"

	"esimsync/internal/catalog"
	"esimsync/internal/fulfillment"
	"esimsync/internal/logger"

	"github.com/gin-gonic/gin"
)

type Recoverer interface {
	Recover(ctx context.Context) (*fulfillment.RecoveryResult, error)
}

type CatalogSyncer interface {
	Run(ctx context.Context, opts catalog.Options) (*catalog.Summary, error)
}

// JobHandler exposes the scheduled jobs as plain HTTP triggers.
type JobHandler struct {
	recoverer Recoverer
	syncer    CatalogSyncer
	defaults  catalog.Options
	logger    *logger.Logger
}

func NewJobHandler(recoverer Recoverer, syncer CatalogSyncer, defaults catalog.Options, logger *logger.Logger) *JobHandler {
	return &JobHandler{
		recoverer: recoverer,
		syncer:    syncer,
		defaults:  defaults,
		logger:    logger,
	}
}

func (h *JobHandler) Recovery(c *gin.Context) {
	result, err := h.recoverer.Recover(c.Request.Context())
	if err != nil {
		h.logger.Error("Recovery pass failed: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CatalogSync runs one sync. ?prune and ?refresh_prices override the configured defaults.
func (h *JobHandler) CatalogSync(c *gin.Context) {
	opts := h.defaults
	if v, err := strconv.ParseBool(c.Query("prune")); err == nil {
		opts.Prune = v
	}
	if v, err := strconv.ParseBool(c.Query("refresh_prices")); err == nil {
		opts.RefreshPrices = v
	}

	summary, err := h.syncer.Run(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("Catalog sync failed: %v", err)
		if summary == nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
