package processor

import (
	"context"
	"sync/atomic"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
)

// Deliverer routes one transformed batch to the sink.
type Deliverer interface {
	Deliver(ctx context.Context, batch *transform.BatchResult) error
}

// Stats holds processing counters for the admin surface.
type Stats struct {
	MessagesProcessed int64 `json:"messages_processed"`
	ReportsDelivered  int64 `json:"reports_delivered"`
	FactsDelivered    int64 `json:"facts_delivered"`
	ValidationEvents  int64 `json:"validation_events"`
	DeliveryFailures  int64 `json:"delivery_failures"`
}

// Processor ties the consumer to the transformer and the fan-out
// router: each consumed envelope is normalized and delivered. Delivery
// failures are already dead-lettered by the router, so the handler
// reports them without blocking the partition.
type Processor struct {
	transformer *transform.Transformer
	router      Deliverer
	logger      ectologger.Logger

	messagesProcessed atomic.Int64
	reportsDelivered  atomic.Int64
	factsDelivered    atomic.Int64
	validationEvents  atomic.Int64
	deliveryFailures  atomic.Int64
}

// New creates a Processor.
func New(transformer *transform.Transformer, router Deliverer, logger ectologger.Logger) *Processor {
	return &Processor{
		transformer: transformer,
		router:      router,
		logger:      logger,
	}
}

// MessageHandler returns the handler to register with the consumer.
func (p *Processor) MessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.ReceivedMessage) error {
		return p.Process(ctx, msg)
	}
}

// Process normalizes and delivers one consumed envelope.
func (p *Processor) Process(ctx context.Context, msg *kafka.ReceivedMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Process")
	defer span.End()

	p.messagesProcessed.Add(1)

	batch := p.transformer.TransformBatch(ctx, []models.RawReport{msg.Report.Report})
	p.validationEvents.Add(int64(len(batch.Events)))

	for _, event := range batch.Events {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"safety_report_id": event.SafetyReportID,
			"family":           event.Family,
			"field":            event.Field,
		}).Warnf("Validation: %s", event.Reason)
	}

	if len(batch.Reports) == 0 && len(batch.Drugs) == 0 && len(batch.Reactions) == 0 {
		return nil
	}

	if err := p.router.Deliver(ctx, batch); err != nil {
		p.deliveryFailures.Add(1)
		p.logger.WithContext(ctx).WithError(err).Errorf("Delivery failed for report '%s'", msg.Report.SafetyReportID)
		return err
	}

	p.reportsDelivered.Add(int64(len(batch.Reports)))
	p.factsDelivered.Add(int64(len(batch.Drugs) + len(batch.Reactions)))
	return nil
}

// Stats returns a snapshot of the processing counters.
func (p *Processor) Stats() Stats {
	return Stats{
		MessagesProcessed: p.messagesProcessed.Load(),
		ReportsDelivered:  p.reportsDelivered.Load(),
		FactsDelivered:    p.factsDelivered.Load(),
		ValidationEvents:  p.validationEvents.Load(),
		DeliveryFailures:  p.deliveryFailures.Load(),
	}
}
