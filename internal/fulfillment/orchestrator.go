// Package fulfillment drives paid storefront orders through the provider's
// order lifecycle until the activation artifact is attached to the order.
//
// A unit moves Created -> Completing -> AwaitingArtifact -> Delivered. When a
// bounded polling loop is exhausted the unit is parked in the pending-order
// store and a later recovery pass resumes it from the recorded stage.
package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"esimsync/internal/apperr"
	"esimsync/internal/config"
	"esimsync/internal/logger"
	"esimsync/internal/metrics"
	"esimsync/internal/models"
	"esimsync/internal/services/mobimatter"
	"esimsync/internal/store"
)

// Provider is the subset of the provisioning API the state machine drives.
type Provider interface {
	CreateOrder(ctx context.Context, productID, customerEmail string) (string, error)
	CompleteOrder(ctx context.Context, orderCode string) error
	LookupOrderByCode(ctx context.Context, orderCode string) (*mobimatter.OrderRef, error)
	GetActivationArtifact(ctx context.Context, internalID string) (*models.Activation, error)
	SendActivationEmail(ctx context.Context, internalID, email string) error
}

// Target receives the activation artifact of a provisioned order.
type Target interface {
	AttachArtifact(ctx context.Context, orderID string, a *models.Activation) error
}

type State string

const (
	StateCreated          State = "created"
	StateCompleting       State = "completing"
	StateAwaitingArtifact State = "awaiting_artifact"
	StateDelivered        State = "delivered"
	StateParked           State = "parked"
	StateSkipped          State = "skipped"
	StateFailed           State = "failed"
)

// LineResult is the outcome of one unit of a line item.
type LineResult struct {
	SKU       string `json:"sku"`
	OrderCode string `json:"order_code,omitempty"`
	State     State  `json:"state"`
	Error     string `json:"error,omitempty"`
}

type Result struct {
	OrderID string       `json:"order_id"`
	Lines   []LineResult `json:"results"`
}

type Options struct {
	Retry               config.Retry
	SendActivationEmail bool
}

type Orchestrator struct {
	provider   Provider
	target     Target
	pending    store.PendingOrders
	deliveries store.Deliveries
	opts       Options
	logger     *logger.Logger

	recoverMu sync.Mutex
}

func NewOrchestrator(provider Provider, target Target, pending store.PendingOrders, deliveries store.Deliveries, opts Options, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		target:     target,
		pending:    pending,
		deliveries: deliveries,
		opts:       opts,
		logger:     logger,
	}
}

// Fulfill runs the state machine once for every unit of every line item.
// Units already delivered or parked for the same order and sku are skipped,
// counted across all lines of that sku, so a redelivered event does not
// create a second provider order. Every unit is
// attempted; the first failure is returned alongside the full result.
func (o *Orchestrator) Fulfill(ctx context.Context, event *models.OrderPaidEvent) (*Result, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	orderID := event.ID.String()
	result := &Result{OrderID: orderID}
	var firstErr error

	// started holds, per sku, the units of this order already delivered or
	// parked that have not yet been matched to a unit of the event.
	started := make(map[string]int64)
	for _, item := range event.LineItems {
		if _, ok := started[item.SKU]; ok {
			continue
		}
		done, err := o.unitsStarted(ctx, orderID, item.SKU)
		if err != nil {
			return result, apperr.E(apperr.KindUnexpected, "fulfillment.Fulfill", err)
		}
		started[item.SKU] = done
	}

	for _, item := range event.LineItems {
		for unit := 0; unit < item.Quantity; unit++ {
			if started[item.SKU] > 0 {
				started[item.SKU]--
				result.Lines = append(result.Lines, LineResult{SKU: item.SKU, State: StateSkipped})
				metrics.OrdersTotal.WithLabelValues(string(StateSkipped)).Inc()
				continue
			}

			line, err := o.fulfillUnit(ctx, orderID, event.CustomerEmail(), item)
			if err != nil {
				line.Error = err.Error()
				if firstErr == nil {
					firstErr = err
				}
			}
			metrics.OrdersTotal.WithLabelValues(string(line.State)).Inc()
			result.Lines = append(result.Lines, line)
		}
	}

	return result, firstErr
}

func (o *Orchestrator) unitsStarted(ctx context.Context, orderID, sku string) (int64, error) {
	delivered, err := o.deliveries.Count(ctx, orderID, sku)
	if err != nil {
		return 0, err
	}
	parked, err := o.pending.CountOpen(ctx, orderID, sku)
	if err != nil {
		return 0, err
	}
	return delivered + parked, nil
}

func (o *Orchestrator) fulfillUnit(ctx context.Context, orderID, email string, item models.OrderLineItem) (LineResult, error) {
	const op = "fulfillment.fulfillUnit"
	line := LineResult{SKU: item.SKU, State: StateCreated}

	code, err := o.provider.CreateOrder(ctx, item.SKU, email)
	if err != nil {
		o.logger.Error("Failed to create provider order for order %s sku %s: %v", orderID, item.SKU, err)
		line.State = StateFailed
		return line, err
	}
	line.OrderCode = code

	log := o.logger.With("order_code", code, "destination_order_id", orderID)
	log.Info("Provider order created")

	p := &models.PendingOrder{
		ProviderOrderCode:  code,
		DestinationOrderID: orderID,
		CustomerEmail:      email,
		SKU:                item.SKU,
		ProductID:          item.SKU,
	}

	line.State = StateCompleting
	err = poll(ctx, o.opts.Retry.CompleteAttempts, o.opts.Retry.CompleteDelay, func(ctx context.Context) error {
		return o.provider.CompleteOrder(ctx, code)
	})
	if err != nil {
		log.Warn("Completion not confirmed after %d attempts: %v", o.opts.Retry.CompleteAttempts, err)
		line.State = o.park(ctx, p, models.StageCompleting, err)
		if apperr.Is(err, apperr.KindProviderPending) {
			err = apperr.E(apperr.KindProviderTransient, op, err)
		}
		return line, fmt.Errorf("order %s not completed: %w", code, err)
	}

	line.State = StateAwaitingArtifact
	activation, stage, err := o.awaitArtifact(ctx, p)
	if err != nil {
		log.Info("Activation not ready: %v", err)
		line.State = o.park(ctx, p, stage, err)
		return line, nil
	}

	line.State = o.deliver(ctx, p, activation)
	return line, nil
}

// awaitArtifact resolves the internal id and then the activation artifact.
// On failure it reports the stage the order should be parked at.
func (o *Orchestrator) awaitArtifact(ctx context.Context, p *models.PendingOrder) (*models.Activation, models.PendingStage, error) {
	var activation *models.Activation

	if p.ProviderOrderID == "" {
		var ref *mobimatter.OrderRef
		err := poll(ctx, o.opts.Retry.LookupAttempts, o.opts.Retry.LookupDelay, func(ctx context.Context) error {
			r, err := o.provider.LookupOrderByCode(ctx, p.ProviderOrderCode)
			if err != nil {
				return err
			}
			ref = r
			return nil
		})
		if err != nil {
			return nil, models.StageAwaitingID, err
		}
		p.ProviderOrderID = ref.InternalID
		if !ref.Activation.Empty() {
			activation = ref.Activation
		}
	}

	if activation == nil {
		err := poll(ctx, o.opts.Retry.ArtifactAttempts, o.opts.Retry.ArtifactDelay, func(ctx context.Context) error {
			a, err := o.provider.GetActivationArtifact(ctx, p.ProviderOrderID)
			if err != nil {
				return err
			}
			activation = a
			return nil
		})
		if err != nil {
			return nil, models.StageAwaitingArtifact, err
		}
	}

	return activation, models.StageAwaitingArtifact, nil
}

// deliver attaches the artifact to the storefront order. A failed attach parks
// the order so recovery delivers it again; the e-mail is best effort.
func (o *Orchestrator) deliver(ctx context.Context, p *models.PendingOrder, a *models.Activation) State {
	log := o.logger.With("order_code", p.ProviderOrderCode, "destination_order_id", p.DestinationOrderID)

	if err := o.target.AttachArtifact(ctx, p.DestinationOrderID, a); err != nil {
		log.Error("Failed to attach activation artifact: %v", err)
		return o.park(ctx, p, models.StageAwaitingArtifact, err)
	}
	if err := o.finishDelivery(ctx, p, a); err != nil {
		return o.park(ctx, p, models.StageAwaitingArtifact, err)
	}
	return StateDelivered
}

const recordAttempts = 2

// finishDelivery sends the optional e-mail and records the delivery. A
// delivery that cannot be recorded is returned as an error and the caller
// keeps the order in the pending store, where it still counts as started.
func (o *Orchestrator) finishDelivery(ctx context.Context, p *models.PendingOrder, a *models.Activation) error {
	log := o.logger.With("order_code", p.ProviderOrderCode, "destination_order_id", p.DestinationOrderID)

	emailSent := false
	if o.opts.SendActivationEmail && p.CustomerEmail != "" {
		if err := o.provider.SendActivationEmail(ctx, p.ProviderOrderID, p.CustomerEmail); err != nil {
			log.Warn("Activation e-mail not sent: %v", err)
		} else {
			emailSent = true
		}
	}

	delivery := &models.Delivery{
		ProviderOrderCode:  p.ProviderOrderCode,
		ProviderOrderID:    p.ProviderOrderID,
		DestinationOrderID: p.DestinationOrderID,
		SKU:                p.SKU,
		QRCodeURL:          a.QRCodeURL,
		LPACode:            a.LPACode,
		EmailSent:          emailSent,
		DeliveredAt:        time.Now(),
	}

	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if err = o.deliveries.Record(context.WithoutCancel(ctx), delivery); err == nil {
			log.Info("Activation artifact delivered")
			return nil
		}
		log.Warn("Failed to record delivery (attempt %d/%d): %v", attempt, recordAttempts, err)
	}
	return apperr.E(apperr.KindUnexpected, "fulfillment.finishDelivery", fmt.Errorf("delivery not recorded: %w", err))
}

// park hands the order to the pending store. Parking survives cancellation
// of ctx so that a shutdown mid-poll does not orphan the provider order.
func (o *Orchestrator) park(ctx context.Context, p *models.PendingOrder, stage models.PendingStage, cause error) State {
	p.Stage = stage
	if cause != nil {
		p.LastError = cause.Error()
	}
	if err := o.pending.Append(context.WithoutCancel(ctx), p); err != nil {
		o.logger.Error("Failed to park order %s for destination order %s: %v", p.ProviderOrderCode, p.DestinationOrderID, err)
		return StateFailed
	}
	o.logger.Info("Parked order %s at stage %s", p.ProviderOrderCode, stage)
	return StateParked
}
