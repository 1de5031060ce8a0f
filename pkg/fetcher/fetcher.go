package fetcher

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/openfda"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PageFetcher fetches one page of raw reports from the provider.
type PageFetcher interface {
	FetchPage(ctx context.Context, q openfda.PageQuery) (*openfda.Page, error)
}

// Batch is one fetched page plus the cursor state it advances to.
// NextCursor is not persisted here; the caller commits it only after
// the page is published.
type Batch struct {
	Records    []models.RawReport
	NextCursor *cursor.Cursor
	HasMore    bool
}

// Fetcher pulls pages from the provider with bounded retries. A fetch
// that exhausts its retry budget returns a FetchError and leaves the
// cursor untouched.
type Fetcher struct {
	provider PageFetcher
	retry    retry.Config
	logger   ectologger.Logger
}

// New creates a Fetcher.
func New(provider PageFetcher, retryCfg retry.Config, logger ectologger.Logger) *Fetcher {
	return &Fetcher{
		provider: provider,
		retry:    retryCfg,
		logger:   logger,
	}
}

// FetchNextBatch fetches the page at the cursor's offset. Transient
// failures (network errors, 408/429/5xx) are retried with backoff up to
// the configured budget. A zero-record page marks the window complete.
func (f *Fetcher) FetchNextBatch(ctx context.Context, cur *cursor.Cursor) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "fetcher.FetchNextBatch")
	defer span.End()

	if cur.Exhausted() {
		next := *cur
		next.MarkComplete()
		return &Batch{NextCursor: &next, HasMore: false}, nil
	}

	query := openfda.PageQuery{
		WindowStart: cur.WindowStart,
		WindowEnd:   cur.WindowEnd,
		Skip:        cur.Skip,
		Limit:       cur.PageSize,
	}

	page, err := f.fetchWithRetry(ctx, cur, query)
	if err != nil {
		return nil, err
	}

	metrics.RecordFetchPage(cur.Stream, len(page.Results))

	next := *cur
	if len(page.Results) == 0 {
		// Zero records means the window is exhausted regardless of what
		// the last known total claimed.
		next.MarkComplete()
		f.logger.WithContext(ctx).Infof("Window exhausted for stream '%s' at skip %d", cur.Stream, cur.Skip)
		return &Batch{NextCursor: &next, HasMore: false}, nil
	}

	total := page.Meta.Results.Total
	next.AdvanceTo(cur.Skip+len(page.Results), total)

	hasMore := next.Skip < total
	if hasMore && next.Skip >= openfda.MaxSkip {
		// The provider rejects deeper pagination. Narrow the window via
		// configuration to reach the remaining records.
		f.logger.WithContext(ctx).Warnf("Stream '%s' hit the provider skip cap at %d with %d records remaining; narrow the window",
			cur.Stream, next.Skip, total-next.Skip)
		next.MarkComplete()
		hasMore = false
	}
	if !hasMore {
		next.MarkComplete()
	}

	return &Batch{
		Records:    page.Results,
		NextCursor: &next,
		HasMore:    hasMore,
	}, nil
}

// fetchWithRetry runs the bounded retry loop around one page fetch.
func (f *Fetcher) fetchWithRetry(ctx context.Context, cur *cursor.Cursor, query openfda.PageQuery) (*openfda.Page, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		page, err := f.provider.FetchPage(ctx, query)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !errors.IsTransient(err) {
			// Terminal provider errors are not worth another attempt
			return nil, &errors.FetchError{Stream: cur.Stream, Skip: cur.Skip, Attempts: attempt + 1, Err: err}
		}

		metrics.RecordFetchRetry(cur.Stream)

		if attempt < f.retry.MaxRetries {
			delay := retry.Backoff(f.retry, attempt+1)
			f.logger.WithContext(ctx).Warnf("Fetch error, retrying in %v (attempt %d/%d): %v", delay, attempt+1, f.retry.MaxRetries, err)
			select {
			case <-ctx.Done():
				return nil, &errors.FetchError{Stream: cur.Stream, Skip: cur.Skip, Attempts: attempt + 1, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
	}

	return nil, &errors.FetchError{Stream: cur.Stream, Skip: cur.Skip, Attempts: f.retry.MaxRetries + 1, Err: lastErr}
}
