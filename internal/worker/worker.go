package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"esimsync/internal/apperr"
	"esimsync/internal/config"
	"esimsync/internal/logger"
	"esimsync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// MessageReader is the part of *kafka.Reader the consume loop uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Processor interface {
	Process(ctx context.Context, event processors.Event) error
}

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    MessageReader
	processor Processor
}

// New builds a worker. The Kafka consumer is disabled when no brokers are
// configured; the schedulers still run.
func New(cfg *config.Config, logger *logger.Logger, processor Processor) *Worker {
	var reader MessageReader
	if brokers := splitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        cfg.KafkaGroupID,
			Topic:          cfg.KafkaOrdersTopic,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			CommitInterval: 0,
		})
	}
	return NewWithReader(cfg, logger, processor, reader)
}

func NewWithReader(cfg *config.Config, logger *logger.Logger, processor Processor, reader MessageReader) *Worker {
	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processor,
	}
}

// Run consumes events and runs the schedulers until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if w.reader != nil {
		g.Go(func() error { return w.consume(ctx) })
	} else {
		w.logger.Info("KAFKA_BROKERS not set, event consumer disabled")
	}

	g.Go(func() error {
		return w.every(ctx, processors.EventRecoveryRun, w.config.RecoveryInterval)
	})
	g.Go(func() error {
		return w.every(ctx, processors.EventCatalogSync, w.config.CatalogSyncInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) consume(ctx context.Context) error {
	w.logger.Info("Worker started, listening for events on %s", w.config.KafkaOrdersTopic)

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("Failed to read message: %v", err)
			if sErr := sleep(ctx, time.Second); sErr != nil {
				return sErr
			}
			continue
		}

		w.logger.Debug("Received message at offset %d", message.Offset)
		w.handle(ctx, message)

		// Commit regardless of the outcome: malformed events are never going
		// to succeed and failed orders are parked for the recovery pass.
		if err := w.reader.CommitMessages(context.WithoutCancel(ctx), message); err != nil {
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	var event processors.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		w.logger.Error("Failed to parse event at offset %d: %v", message.Offset, err)
		return
	}

	if err := w.processor.Process(ctx, event); err != nil {
		w.logger.Error("Failed to process %s event (%s): %v", event.Type, apperr.KindOf(err), err)
		return
	}
	w.logger.Debug("Event processed successfully")
}

// every triggers a scheduled job through the processor at a fixed interval.
// A zero interval disables the job.
func (w *Worker) every(ctx context.Context, eventType string, interval time.Duration) error {
	if interval <= 0 {
		w.logger.Info("Scheduler for %s disabled", eventType)
		return nil
	}
	w.logger.Info("Scheduling %s every %s", eventType, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			event := processors.Event{Type: eventType, Timestamp: time.Now()}
			if err := w.processor.Process(ctx, event); err != nil {
				w.logger.Error("Scheduled %s failed: %v", eventType, err)
			}
		}
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if w.reader != nil {
		if err := w.reader.Close(); err != nil {
			w.logger.Error("Failed to close reader: %v", err)
		}
	}
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
