// Package app wires configuration, storage and clients into the services
// shared by the API server, the worker and the serverless entrypoint.
package app

import (
	"fmt"

	"esimsync/internal/api"
	"esimsync/internal/catalog"
	"esimsync/internal/config"
	"esimsync/internal/database"
	"esimsync/internal/fulfillment"
	"esimsync/internal/logger"
	"esimsync/internal/metrics"
	"esimsync/internal/services/mobimatter"
	"esimsync/internal/services/shopify"
	"esimsync/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	Config       *config.Config
	Logger       *logger.Logger
	Provider     *mobimatter.Client
	Target       *shopify.Client
	Pending      *store.PendingStore
	Deliveries   *store.DeliveryStore
	Orchestrator *fulfillment.Orchestrator
	Syncer       *catalog.Syncer
	Registry     *prometheus.Registry
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) (*App, error) {
	provider := mobimatter.NewClient(cfg.MobimatterBaseURL, cfg.MobimatterAPIKey, cfg.MobimatterMerchantID, logger)
	target := shopify.NewClient(shopify.AdminURL(cfg.ShopifyStoreDomain, cfg.ShopifyAPIVersion), cfg.ShopifyAccessToken, logger).
		WithMetafieldNamespace(cfg.ShopifyMetafieldNamespace).
		WithLocationID(cfg.ShopifyLocationID)

	transformer, err := mobimatter.NewTransformer(cfg.Catalog.Vendor, cfg.Catalog.PriceMarkupPercent, cfg.Catalog.InventoryQuantity)
	if err != nil {
		return nil, fmt.Errorf("failed to configure catalog: %w", err)
	}

	pending := store.NewPendingStore(db.DB)
	deliveries := store.NewDeliveryStore(db.DB)

	orchestrator := fulfillment.NewOrchestrator(provider, target, pending, deliveries, fulfillment.Options{
		Retry:               cfg.Retry,
		SendActivationEmail: cfg.SendActivationEmail,
	}, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Provider:     provider,
		Target:       target,
		Pending:      pending,
		Deliveries:   deliveries,
		Orchestrator: orchestrator,
		Syncer:       catalog.NewSyncer(provider, target, transformer, cfg.Catalog.Vendor, logger),
		Registry:     registry,
	}, nil
}

// CatalogOptions are the configured defaults of a catalog sync run.
func (a *App) CatalogOptions() catalog.Options {
	return catalog.Options{
		Prune:         a.Config.Catalog.Prune,
		RefreshPrices: a.Config.Catalog.RefreshPrices,
	}
}

// APIDeps exposes the services to the HTTP layer.
func (a *App) APIDeps() api.Deps {
	return api.Deps{
		Fulfiller:      a.Orchestrator,
		Recoverer:      a.Orchestrator,
		Syncer:         a.Syncer,
		CatalogOptions: a.CatalogOptions(),
		Usage:          a.Provider,
		Pending:        a.Pending,
		Deliveries:     a.Deliveries,
		Gatherer:       a.Registry,
	}
}
