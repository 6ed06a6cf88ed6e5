// Package catalog mirrors the provider's product listing into the storefront.
package catalog

import (
	"context"
	"fmt"

	"esimsync/internal/logger"
	"esimsync/internal/metrics"
	"esimsync/internal/models"
	"esimsync/internal/services/mobimatter"
	"esimsync/internal/services/shopify"
)

type Source interface {
	ListProducts(ctx context.Context) ([]mobimatter.Product, error)
}

type Target interface {
	UpsertCatalogItem(ctx context.Context, item *models.CatalogItem, refreshPrice bool) (shopify.UpsertOutcome, error)
	RemoveCatalogItem(ctx context.Context, handle string) error
	ListCatalogHandles(ctx context.Context, vendor string) ([]string, error)
}

type Options struct {
	// Prune deletes storefront listings whose provider product is gone.
	Prune         bool
	RefreshPrices bool
}

type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

type Syncer struct {
	source      Source
	target      Target
	transformer *mobimatter.Transformer
	vendor      string
	logger      *logger.Logger
}

func NewSyncer(source Source, target Target, transformer *mobimatter.Transformer, vendor string, logger *logger.Logger) *Syncer {
	return &Syncer{
		source:      source,
		target:      target,
		transformer: transformer,
		vendor:      vendor,
		logger:      logger,
	}
}

// Run creates a listing for every provider product that has none. Failures
// are counted per item and never stop the run.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Summary, error) {
	products, err := s.source.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider products: %w", err)
	}
	s.logger.Info("Syncing %d provider products", len(products))

	summary := &Summary{}
	current := make(map[string]struct{}, len(products))

	for i := range products {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		p := &products[i]
		handle := models.HandleFor(p.Key())
		if _, dup := current[handle]; dup {
			s.count(summary, shopify.OutcomeSkipped)
			continue
		}
		current[handle] = struct{}{}

		item, err := s.transformer.TransformProduct(p)
		if err != nil {
			s.logger.Warn("Skipping product %s: %v", p.ProductID, err)
			s.fail(summary)
			continue
		}

		outcome, err := s.target.UpsertCatalogItem(ctx, item, opts.RefreshPrices)
		if err != nil {
			s.logger.Error("Failed to sync product %s: %v", p.ProductID, err)
			s.fail(summary)
			continue
		}
		s.count(summary, outcome)
	}

	if opts.Prune {
		if err := s.prune(ctx, current, summary); err != nil {
			return summary, err
		}
	}

	s.logger.Info("Catalog sync finished: %d created, %d updated, %d skipped, %d failed, %d removed",
		summary.Created, summary.Updated, summary.Skipped, summary.Failed, summary.Removed)
	return summary, nil
}

// prune removes listings created by earlier runs whose handle is no longer
// offered. An empty provider listing is treated as an outage, not as a
// request to delete the whole catalog.
func (s *Syncer) prune(ctx context.Context, current map[string]struct{}, summary *Summary) error {
	if len(current) == 0 {
		s.logger.Warn("Provider returned no products, skipping prune")
		return nil
	}

	handles, err := s.target.ListCatalogHandles(ctx, s.vendor)
	if err != nil {
		return fmt.Errorf("failed to list storefront listings: %w", err)
	}

	for _, handle := range handles {
		if _, ok := current[handle]; ok || !models.IsProviderHandle(handle) {
			continue
		}
		if err := s.target.RemoveCatalogItem(ctx, handle); err != nil {
			s.logger.Error("Failed to remove %s: %v", handle, err)
			s.fail(summary)
			continue
		}
		s.logger.Info("Removed listing %s", handle)
		summary.Removed++
		metrics.CatalogItemsTotal.WithLabelValues("removed").Inc()
	}
	return nil
}

func (s *Syncer) count(summary *Summary, outcome shopify.UpsertOutcome) {
	switch outcome {
	case shopify.OutcomeCreated:
		summary.Created++
	case shopify.OutcomeUpdated:
		summary.Updated++
	default:
		summary.Skipped++
	}
	metrics.CatalogItemsTotal.WithLabelValues(string(outcome)).Inc()
}

func (s *Syncer) fail(summary *Summary) {
	summary.Failed++
	metrics.CatalogItemsTotal.WithLabelValues("failed").Inc()
}
