package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
)

// Sink delivers normalized records to a destination, one method per
// output family.
type Sink interface {
	DeliverReports(ctx context.Context, records []models.ReportRecord) error
	DeliverDrugFacts(ctx context.Context, records []models.DrugFact) error
	DeliverReactionFacts(ctx context.Context, records []models.ReactionFact) error
}

// DeadLetter receives records whose delivery exhausted its retries.
type DeadLetter interface {
	Add(ctx context.Context, entry *redis.DLQEntry) (string, error)
}

// Router delivers a transformed batch to the sink. The three families
// are delivered concurrently and fail independently: one family
// exhausting its retries dead-letters its own records while the others
// still land.
type Router struct {
	sink   Sink
	dlq    DeadLetter
	retry  retry.Config
	logger ectologger.Logger
}

// NewRouter creates a Router. dlq may be nil; exhausted deliveries are
// then surfaced only through the returned error.
func NewRouter(sink Sink, dlq DeadLetter, retryCfg retry.Config, logger ectologger.Logger) *Router {
	return &Router{
		sink:   sink,
		dlq:    dlq,
		retry:  retryCfg,
		logger: logger,
	}
}

// Deliver routes one transformed batch. It returns the first family
// error after all families have finished; partial success is normal and
// the failed family's records are already dead-lettered.
func (r *Router) Deliver(ctx context.Context, batch *transform.BatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "fanout.Router.Deliver")
	defer span.End()

	var wg sync.WaitGroup
	errs := make([]error, 3)

	if len(batch.Reports) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[0] = r.deliverFamily(ctx, models.FamilyReports, len(batch.Reports), batch.Reports, func(ctx context.Context) error {
				return r.sink.DeliverReports(ctx, batch.Reports)
			})
		}()
	}

	if len(batch.Drugs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[1] = r.deliverFamily(ctx, models.FamilyDrugFacts, len(batch.Drugs), batch.Drugs, func(ctx context.Context) error {
				return r.sink.DeliverDrugFacts(ctx, batch.Drugs)
			})
		}()
	}

	if len(batch.Reactions) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[2] = r.deliverFamily(ctx, models.FamilyReactionFacts, len(batch.Reactions), batch.Reactions, func(ctx context.Context) error {
				return r.sink.DeliverReactionFacts(ctx, batch.Reactions)
			})
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// deliverFamily runs one family's delivery with bounded retries. Only
// transient failures are retried; anything else goes straight to the
// dead letter queue.
func (r *Router) deliverFamily(ctx context.Context, family string, count int, records any, deliver func(ctx context.Context) error) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		attempts = attempt + 1

		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		lastErr = deliver(ctx)
		if lastErr == nil {
			metrics.RecordDelivery(family, "success")
			return nil
		}

		if !errors.IsTransient(lastErr) {
			r.logger.WithContext(ctx).WithError(lastErr).Errorf("Delivery for family '%s' failed terminally", family)
			break
		}

		if attempt < r.retry.MaxRetries {
			delay := retry.Backoff(r.retry, attempt+1)
			metrics.RecordDeliveryRetry(family)
			r.logger.WithContext(ctx).WithError(lastErr).Warnf("Delivery for family '%s' failed (attempt %d/%d), retrying in %s",
				family, attempts, r.retry.MaxRetries+1, delay)

			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = r.retry.MaxRetries
			case <-time.After(delay):
			}
		}
	}

	deliveryErr := &errors.DeliveryError{
		Family:   family,
		Records:  count,
		Attempts: attempts,
		Err:      lastErr,
	}

	r.deadLetter(ctx, family, count, records, deliveryErr)
	metrics.RecordDelivery(family, "failed")
	return deliveryErr
}

// deadLetter preserves the failed records so they are never silently
// dropped.
func (r *Router) deadLetter(ctx context.Context, family string, count int, records any, deliveryErr *errors.DeliveryError) {
	if r.dlq == nil {
		return
	}

	data, err := json.Marshal(records)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to marshal dead-lettered records for family '%s'", family)
		return
	}

	entry := &redis.DLQEntry{
		Family:       family,
		Records:      data,
		RecordCount:  count,
		ErrorMessage: deliveryErr.Error(),
		RetryCount:   deliveryErr.Attempts,
	}

	if _, err := r.dlq.Add(ctx, entry); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to dead-letter %d records for family '%s'", count, family)
		return
	}

	metrics.RecordDLQEntry(family)
}
