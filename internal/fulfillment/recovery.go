package fulfillment

import (
	"context"
	"fmt"
	"time"

	"esimsync/internal/apperr"
	"esimsync/internal/metrics"
	"esimsync/internal/models"
)

type RecoveryResult struct {
	Processed    int `json:"processed"`
	Delivered    int `json:"delivered"`
	StillPending int `json:"still_pending"`
}

// Recover resumes up to RecoveryBatchSize of the oldest parked orders. Each
// entry is retried from its recorded stage; a failure only keeps that entry
// for the next pass. Passes are serialized within the process.
func (o *Orchestrator) Recover(ctx context.Context) (*RecoveryResult, error) {
	o.recoverMu.Lock()
	defer o.recoverMu.Unlock()

	metrics.RecoveryPassesTotal.Inc()

	listed, err := o.pending.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.KindUnexpected, "fulfillment.Recover", err)
	}

	batch := listed
	if size := o.opts.Retry.RecoveryBatchSize; size > 0 && len(batch) > size {
		batch = batch[:size]
	}

	result := &RecoveryResult{Processed: len(batch)}
	remaining := make([]models.PendingOrder, 0, len(batch))
	delivered := make(map[string]struct{})

	for _, entry := range batch {
		if ctx.Err() != nil {
			remaining = append(remaining, entry)
			continue
		}
		if _, ok := delivered[entry.ProviderOrderCode]; ok {
			// duplicate of an entry settled earlier in this pass
			continue
		}

		p := entry
		if err := o.resume(ctx, &p); err != nil {
			o.logger.Warn("Order %s still pending at stage %s: %v", p.ProviderOrderCode, p.Stage, err)
			p.Attempts++
			p.LastError = err.Error()
			p.UpdatedAt = time.Now()
			remaining = append(remaining, p)
			continue
		}

		delivered[p.ProviderOrderCode] = struct{}{}
		result.Delivered++
	}

	if err := o.pending.Replace(context.WithoutCancel(ctx), batch, remaining); err != nil {
		return nil, apperr.E(apperr.KindUnexpected, "fulfillment.Recover", err)
	}

	result.StillPending = len(listed) - len(batch) + len(remaining)
	metrics.PendingOrders.Set(float64(result.StillPending))
	o.logger.Info("Recovery pass processed %d, delivered %d, %d still pending", result.Processed, result.Delivered, result.StillPending)
	return result, nil
}

// resume advances one parked order as far as it gets. A nil return means the
// artifact was delivered.
func (o *Orchestrator) resume(ctx context.Context, p *models.PendingOrder) error {
	if p.Stage == models.StageCompleting {
		err := poll(ctx, o.opts.Retry.CompleteAttempts, o.opts.Retry.CompleteDelay, func(ctx context.Context) error {
			return o.provider.CompleteOrder(ctx, p.ProviderOrderCode)
		})
		if err != nil {
			return fmt.Errorf("completion: %w", err)
		}
		p.Stage = models.StageAwaitingID
	}

	activation, stage, err := o.awaitArtifact(ctx, p)
	if err != nil {
		p.Stage = stage
		return err
	}

	if err := o.target.AttachArtifact(ctx, p.DestinationOrderID, activation); err != nil {
		return err
	}
	if err := o.finishDelivery(ctx, p, activation); err != nil {
		p.Stage = models.StageAwaitingArtifact
		return err
	}
	return nil
}
