package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fetcher"
	"github.com/Ramsey-B/fern/pkg/models"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeFetcher pages through a fixed record set.
type fakeFetcher struct {
	records  []models.RawReport
	pageSize int
	err      error
	errAfter int
	calls    int
}

func (f *fakeFetcher) FetchNextBatch(_ context.Context, cur *cursor.Cursor) (*fetcher.Batch, error) {
	f.calls++
	if f.err != nil && f.calls > f.errAfter {
		return nil, f.err
	}

	end := cur.Skip + f.pageSize
	if end > len(f.records) {
		end = len(f.records)
	}
	var records []models.RawReport
	if cur.Skip < len(f.records) {
		records = f.records[cur.Skip:end]
	}

	next := *cur
	if len(records) == 0 {
		next.MarkComplete()
		return &fetcher.Batch{NextCursor: &next}, nil
	}

	next.AdvanceTo(cur.Skip+len(records), len(f.records))
	hasMore := next.Skip < len(f.records)
	if !hasMore {
		next.MarkComplete()
	}

	return &fetcher.Batch{Records: records, NextCursor: &next, HasMore: hasMore}, nil
}

type fakePublisher struct {
	published [][]models.RawReport
	err       error
	errAfter  int
	calls     int
}

func (f *fakePublisher) Publish(_ context.Context, _ *cursor.Cursor, _ string, records []models.RawReport) error {
	f.calls++
	if f.err != nil && f.calls > f.errAfter {
		return f.err
	}
	f.published = append(f.published, records)
	return nil
}

func makeRecords(n int) []models.RawReport {
	records := make([]models.RawReport, n)
	for i := range records {
		records[i] = models.RawReport{"safetyreportid": fmt.Sprint(1000 + i)}
	}
	return records
}

func TestRunIngestsWholeWindow(t *testing.T) {
	store := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})
	f := &fakeFetcher{records: makeRecords(5), pageSize: 2}
	p := &fakePublisher{}

	runner := NewRunner(store, f, p, nopLogger())
	summary, err := runner.Run(context.Background(), "s")

	assert.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Equal(t, 3, summary.PagesCommitted)
	assert.Equal(t, 5, summary.RecordsPublished)

	cur, err := store.Read(context.Background(), "s")
	assert.NoError(t, err)
	assert.Equal(t, 5, cur.Skip)
	assert.Equal(t, cursor.StatusComplete, cur.Status)
}

func TestRunFetchFailureKeepsCommittedOffset(t *testing.T) {
	store := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})
	f := &fakeFetcher{
		records:  makeRecords(6),
		pageSize: 2,
		err:      &errors.FetchError{Stream: "s", Skip: 2, Attempts: 4},
		errAfter: 1,
	}
	p := &fakePublisher{}

	runner := NewRunner(store, f, p, nopLogger())
	_, err := runner.Run(context.Background(), "s")

	assert.Error(t, err)
	assert.True(t, errors.IsFetchError(err))

	// The first page committed; the failed one did not advance the cursor
	cur, readErr := store.Read(context.Background(), "s")
	assert.NoError(t, readErr)
	assert.Equal(t, 2, cur.Skip)
	assert.Equal(t, cursor.StatusFailed, cur.Status)
}

func TestRunPublishFailureBlocksCommit(t *testing.T) {
	store := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})
	f := &fakeFetcher{records: makeRecords(4), pageSize: 2}
	p := &fakePublisher{
		err:      &errors.PublishError{Topic: "adverse-events.raw", Records: 2},
		errAfter: 0,
	}

	runner := NewRunner(store, f, p, nopLogger())
	_, err := runner.Run(context.Background(), "s")

	assert.Error(t, err)
	assert.True(t, errors.IsPublishError(err))

	cur, readErr := store.Read(context.Background(), "s")
	assert.NoError(t, readErr)
	assert.Equal(t, 0, cur.Skip)
	assert.Equal(t, cursor.StatusFailed, cur.Status)
}

// racingStore simulates a concurrent writer by bumping the stored
// version behind the runner's back before its first commit.
type racingStore struct {
	cursor.Store
	raced bool
}

func (s *racingStore) Commit(ctx context.Context, cur *cursor.Cursor) error {
	if !s.raced {
		s.raced = true
		stale := *cur
		if err := s.Store.Commit(ctx, &stale); err != nil {
			return err
		}
		// The runner's copy still holds the old version
		cur.Version = stale.Version - 1
	}
	return s.Store.Commit(ctx, cur)
}

func TestRunConflictAbortsWithoutWrites(t *testing.T) {
	inner := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})
	store := &racingStore{Store: inner}
	f := &fakeFetcher{records: makeRecords(4), pageSize: 2}
	p := &fakePublisher{}

	runner := NewRunner(store, f, p, nopLogger())
	summary, err := runner.Run(context.Background(), "s")

	assert.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Zero(t, summary.PagesCommitted)

	// The winner's commit is what survives
	cur, readErr := inner.Read(context.Background(), "s")
	assert.NoError(t, readErr)
	assert.Equal(t, int64(1), cur.Version)
}

func TestRunExhaustedCursorReturnsImmediately(t *testing.T) {
	store := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})

	done := cursor.New("s", "20040101", "20041231", 2)
	done.MarkComplete()
	assert.NoError(t, store.Commit(context.Background(), done))

	f := &fakeFetcher{records: makeRecords(4), pageSize: 2}
	runner := NewRunner(store, f, &fakePublisher{}, nopLogger())

	summary, err := runner.Run(context.Background(), "s")

	assert.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Zero(t, summary.PagesCommitted)
	assert.Zero(t, f.calls)
}

func TestRunEmptyWindowCompletes(t *testing.T) {
	store := cursor.NewMemoryStore(cursor.Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 2})
	f := &fakeFetcher{records: nil, pageSize: 2}
	p := &fakePublisher{}

	runner := NewRunner(store, f, p, nopLogger())
	summary, err := runner.Run(context.Background(), "s")

	assert.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Zero(t, summary.RecordsPublished)
	assert.Empty(t, p.published)
}
