package fetcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/openfda"
	"github.com/Ramsey-B/fern/pkg/retry"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func fastRetry(maxRetries int) retry.Config {
	return retry.Config{
		MaxRetries:   maxRetries,
		BackoffType:  "linear",
		InitialDelay: 1,
		MaxDelay:     5,
	}
}

// fakeProvider serves a fixed record set page by page, optionally
// failing the first N calls.
type fakeProvider struct {
	records   []models.RawReport
	failures  []error
	callCount int
}

func (f *fakeProvider) FetchPage(_ context.Context, q openfda.PageQuery) (*openfda.Page, error) {
	call := f.callCount
	f.callCount++

	if call < len(f.failures) && f.failures[call] != nil {
		return nil, f.failures[call]
	}

	end := q.Skip + q.Limit
	if end > len(f.records) {
		end = len(f.records)
	}
	var results []models.RawReport
	if q.Skip < len(f.records) {
		results = f.records[q.Skip:end]
	}

	return &openfda.Page{
		Meta: openfda.Meta{
			Results: openfda.MetaResults{
				Skip:  q.Skip,
				Limit: q.Limit,
				Total: len(f.records),
			},
		},
		Results: results,
	}, nil
}

func makeRecords(n int) []models.RawReport {
	records := make([]models.RawReport, n)
	for i := range records {
		records[i] = models.RawReport{"safetyreportid": fmt.Sprint(1000 + i)}
	}
	return records
}

func TestFetchNextBatchAdvancesCursor(t *testing.T) {
	provider := &fakeProvider{records: makeRecords(5)}
	f := New(provider, fastRetry(1), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 2)
	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.NoError(t, err)
	assert.Len(t, batch.Records, 2)
	assert.True(t, batch.HasMore)
	assert.Equal(t, 2, batch.NextCursor.Skip)
	assert.Equal(t, 5, batch.NextCursor.Total)
	// The input cursor is untouched until commit
	assert.Equal(t, 0, cur.Skip)
}

func TestFetchNextBatchPaginationIsComplete(t *testing.T) {
	provider := &fakeProvider{records: makeRecords(5)}
	f := New(provider, fastRetry(1), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 2)
	var fetched []models.RawReport
	for {
		batch, err := f.FetchNextBatch(context.Background(), cur)
		assert.NoError(t, err)
		fetched = append(fetched, batch.Records...)
		cur = batch.NextCursor
		if !batch.HasMore {
			break
		}
	}

	assert.Len(t, fetched, 5)
	seen := make(map[any]bool)
	for _, r := range fetched {
		assert.False(t, seen[r["safetyreportid"]], "duplicate record %v", r["safetyreportid"])
		seen[r["safetyreportid"]] = true
	}
	assert.Equal(t, cursor.StatusComplete, cur.Status)
}

func TestFetchNextBatchRetriesTransientFailures(t *testing.T) {
	provider := &fakeProvider{
		records: makeRecords(2),
		failures: []error{
			errors.NewTransientErrorf("openfda fetch", "status 503"),
			errors.NewTransientErrorf("openfda fetch", "status 503"),
		},
	}
	f := New(provider, fastRetry(3), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 100)
	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.NoError(t, err)
	assert.Len(t, batch.Records, 2)
	assert.Equal(t, 3, provider.callCount)
}

func TestFetchNextBatchExhaustedRetriesFails(t *testing.T) {
	transient := errors.NewTransientErrorf("openfda fetch", "status 503")
	provider := &fakeProvider{
		records:  makeRecords(2),
		failures: []error{transient, transient, transient},
	}
	f := New(provider, fastRetry(2), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 100)
	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.Nil(t, batch)
	assert.Error(t, err)
	assert.True(t, errors.IsFetchError(err))

	var fe *errors.FetchError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Attempts)
	// The cursor keeps its last committed offset
	assert.Equal(t, 0, cur.Skip)
	assert.Equal(t, cursor.StatusIdle, cur.Status)
}

func TestFetchNextBatchTerminalErrorSkipsRetries(t *testing.T) {
	provider := &fakeProvider{
		records:  makeRecords(2),
		failures: []error{fmt.Errorf("status 400")},
	}
	f := New(provider, fastRetry(5), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 100)
	_, err := f.FetchNextBatch(context.Background(), cur)

	assert.Error(t, err)
	assert.True(t, errors.IsFetchError(err))
	assert.Equal(t, 1, provider.callCount)
}

func TestFetchNextBatchZeroRecordsCompletesWindow(t *testing.T) {
	provider := &fakeProvider{records: nil}
	f := New(provider, fastRetry(1), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 100)
	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.False(t, batch.HasMore)
	assert.Equal(t, cursor.StatusComplete, batch.NextCursor.Status)
}

func TestFetchNextBatchExhaustedCursorIsNoop(t *testing.T) {
	provider := &fakeProvider{records: makeRecords(2)}
	f := New(provider, fastRetry(1), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 100)
	cur.MarkComplete()

	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.False(t, batch.HasMore)
	assert.Zero(t, provider.callCount)
}

func TestFetchNextBatchStopsAtProviderSkipCap(t *testing.T) {
	provider := &fakeProvider{records: makeRecords(openfda.MaxSkip + 100)}
	f := New(provider, fastRetry(1), nopLogger())

	cur := cursor.New("s", "20040101", "20041231", 50)
	cur.Skip = openfda.MaxSkip - 50
	cur.Total = 100000
	cur.Status = cursor.StatusInProgress

	batch, err := f.FetchNextBatch(context.Background(), cur)

	assert.NoError(t, err)
	assert.False(t, batch.HasMore)
	assert.Equal(t, cursor.StatusComplete, batch.NextCursor.Status)
}
