package ingest

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fetcher"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// BatchFetcher fetches the page at a cursor's offset.
type BatchFetcher interface {
	FetchNextBatch(ctx context.Context, cur *cursor.Cursor) (*fetcher.Batch, error)
}

// BatchPublisher publishes one fetched page to the stream bus.
type BatchPublisher interface {
	Publish(ctx context.Context, cur *cursor.Cursor, runID string, records []models.RawReport) error
}

// Summary describes one ingest run.
type Summary struct {
	RunID            string `json:"run_id"`
	Stream           string `json:"stream"`
	PagesCommitted   int    `json:"pages_committed"`
	RecordsPublished int    `json:"records_published"`
	Completed        bool   `json:"completed"`
}

// Runner drives one ingest run: read cursor, then fetch, publish and
// commit page by page until the window is exhausted or something fails.
// Each page commit is a version CAS; losing the race means another
// runner owns the stream and this one aborts without writing.
type Runner struct {
	store     cursor.Store
	fetcher   BatchFetcher
	publisher BatchPublisher
	logger    ectologger.Logger
}

// NewRunner creates a Runner.
func NewRunner(store cursor.Store, f BatchFetcher, p BatchPublisher, logger ectologger.Logger) *Runner {
	return &Runner{
		store:     store,
		fetcher:   f,
		publisher: p,
		logger:    logger,
	}
}

// Run executes one ingest run for the stream. On fetch or publish
// failure the cursor keeps its last committed offset and gets a
// best-effort failed status; on commit conflict the run aborts with no
// further writes.
func (r *Runner) Run(ctx context.Context, stream string) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Runner.Run")
	defer span.End()

	summary := &Summary{
		RunID:  uuid.New().String(),
		Stream: stream,
	}

	cur, err := r.store.Read(ctx, stream)
	if err != nil {
		return summary, err
	}

	if cur.Exhausted() {
		r.logger.WithContext(ctx).Debugf("Stream '%s' window already exhausted at skip %d", stream, cur.Skip)
		summary.Completed = true
		return summary, nil
	}

	r.logger.WithContext(ctx).Infof("Starting ingest run %s for stream '%s' at skip %d", summary.RunID, stream, cur.Skip)

	for {
		select {
		case <-ctx.Done():
			r.markFailed(ctx, cur)
			return summary, ctx.Err()
		default:
		}

		batch, err := r.fetcher.FetchNextBatch(ctx, cur)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Errorf("Run %s fetch failed for stream '%s'", summary.RunID, stream)
			r.markFailed(ctx, cur)
			return summary, err
		}

		if len(batch.Records) > 0 {
			if err := r.publisher.Publish(ctx, cur, summary.RunID, batch.Records); err != nil {
				r.logger.WithContext(ctx).WithError(err).Errorf("Run %s publish failed for stream '%s'", summary.RunID, stream)
				r.markFailed(ctx, cur)
				return summary, err
			}
		}

		// The page is on the bus; advance the cursor past it. A conflict
		// means a concurrent run committed first, so abort with no write.
		if err := r.store.Commit(ctx, batch.NextCursor); err != nil {
			if errors.IsConflict(err) {
				metrics.RecordCursorCommit(stream, "conflict")
				r.logger.WithContext(ctx).Warnf("Run %s lost cursor race for stream '%s', aborting", summary.RunID, stream)
				return summary, err
			}
			metrics.RecordCursorCommit(stream, "error")
			r.logger.WithContext(ctx).WithError(err).Errorf("Run %s cursor commit failed for stream '%s'", summary.RunID, stream)
			return summary, err
		}

		metrics.RecordCursorCommit(stream, "success")
		summary.PagesCommitted++
		summary.RecordsPublished += len(batch.Records)
		cur = batch.NextCursor

		if !batch.HasMore {
			summary.Completed = true
			r.logger.WithContext(ctx).Infof("Run %s finished stream '%s': pages=%d records=%d",
				summary.RunID, stream, summary.PagesCommitted, summary.RecordsPublished)
			return summary, nil
		}
	}
}

// markFailed commits a failed status with the offset unchanged so the
// next run resumes from the last committed page. Best effort: a
// conflict here means another run already owns the cursor.
func (r *Runner) markFailed(ctx context.Context, cur *cursor.Cursor) {
	failed := *cur
	failed.MarkFailed()
	if err := r.store.Commit(ctx, &failed); err != nil {
		if errors.IsConflict(err) {
			r.logger.WithContext(ctx).Debugf("Skipping failed-status commit for stream '%s': cursor owned by another run", cur.Stream)
			return
		}
		r.logger.WithContext(ctx).WithError(err).Warnf("Failed to record failed status for stream '%s'", cur.Stream)
	}
}
