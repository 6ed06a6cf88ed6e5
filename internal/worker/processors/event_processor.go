package processors

import (
	"context"
	"fmt"

	"esimsync/internal/apperr"
	"esimsync/internal/catalog"
	"esimsync/internal/fulfillment"
	"esimsync/internal/logger"
	"esimsync/internal/models"
	"esimsync/internal/worker/processors/validation"
)

type Fulfiller interface {
	Fulfill(ctx context.Context, event *models.OrderPaidEvent) (*fulfillment.Result, error)
}

type Recoverer interface {
	Recover(ctx context.Context) (*fulfillment.RecoveryResult, error)
}

type CatalogSyncer interface {
	Run(ctx context.Context, opts catalog.Options) (*catalog.Summary, error)
}

type EventProcessor struct {
	logger      *logger.Logger
	validator   *validation.Validator
	fulfiller   Fulfiller
	recoverer   Recoverer
	syncer      CatalogSyncer
	catalogOpts catalog.Options
}

func NewEventProcessor(fulfiller Fulfiller, recoverer Recoverer, syncer CatalogSyncer, catalogOpts catalog.Options, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		logger:      logger,
		validator:   validation.New(logger),
		fulfiller:   fulfiller,
		recoverer:   recoverer,
		syncer:      syncer,
		catalogOpts: catalogOpts,
	}
}

// Process dispatches one event to the flow handling its type.
func (ep *EventProcessor) Process(ctx context.Context, event Event) error {
	ep.logger.Debug("Processing event %s", event.Type)

	switch event.Type {
	case EventOrderPaid:
		order, err := ep.validator.DecodeOrderPaid(event.Data)
		if err != nil {
			return err
		}
		result, err := ep.fulfiller.Fulfill(ctx, order)
		if err != nil {
			return fmt.Errorf("order %s: %w", order.ID, err)
		}
		ep.logger.Info("Order %s processed, %d units", result.OrderID, len(result.Lines))
		return nil

	case EventRecoveryRun:
		result, err := ep.recoverer.Recover(ctx)
		if err != nil {
			return err
		}
		ep.logger.Info("Recovery delivered %d of %d, %d still pending", result.Delivered, result.Processed, result.StillPending)
		return nil

	case EventCatalogSync:
		opts := ep.catalogOpts
		var req CatalogSyncRequest
		if err := ep.validator.DecodeOptional(event.Data, &req); err != nil {
			return err
		}
		if req.Prune != nil {
			opts.Prune = *req.Prune
		}
		if req.RefreshPrices != nil {
			opts.RefreshPrices = *req.RefreshPrices
		}
		_, err := ep.syncer.Run(ctx, opts)
		return err

	default:
		return apperr.E(apperr.KindValidation, "processors.Process", fmt.Errorf("unknown event type %q", event.Type))
	}
}
