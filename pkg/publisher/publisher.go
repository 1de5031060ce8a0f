package publisher

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// BatchPublisher writes a page of envelopes to the stream bus.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []*kafka.ReportMessage) error
}

// Publisher wraps raw reports in wire envelopes and writes them to the
// bus. Any failure surfaces as a PublishError so the caller knows not
// to commit the cursor for the page.
type Publisher struct {
	producer BatchPublisher
	topic    string
	logger   ectologger.Logger
}

// New creates a Publisher targeting one topic.
func New(producer BatchPublisher, topic string, logger ectologger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish writes one fetched page. The message key is the safety report
// id; reports missing the id get a synthetic key so they still travel
// to the transformer, which owns validation.
func (p *Publisher) Publish(ctx context.Context, cur *cursor.Cursor, runID string, records []models.RawReport) error {
	ctx, span := tracing.StartSpan(ctx, "publisher.Publish")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	messages := make([]*kafka.ReportMessage, 0, len(records))
	for _, record := range records {
		id := extract.AsString(record["safetyreportid"])
		if id == "" {
			id = "invalid:" + uuid.New().String()
		}
		messages = append(messages, &kafka.ReportMessage{
			SafetyReportID: id,
			Stream:         cur.Stream,
			RunID:          runID,
			WindowStart:    cur.WindowStart,
			WindowEnd:      cur.WindowEnd,
			FetchedAt:      now,
			Report:         record,
		})
	}

	start := time.Now()
	if err := p.producer.PublishBatch(ctx, p.topic, messages); err != nil {
		metrics.RecordPublish(p.topic, "error", len(messages), time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %d reports for stream '%s'", len(messages), cur.Stream)
		return &errors.PublishError{Topic: p.topic, Records: len(messages), Err: err}
	}

	metrics.RecordPublish(p.topic, "success", len(messages), time.Since(start).Seconds())
	p.logger.WithContext(ctx).Debugf("Published %d reports for stream '%s' at skip %d", len(messages), cur.Stream, cur.Skip)
	return nil
}
