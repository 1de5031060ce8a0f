package cursor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/errors"
)

func testDefaults() Defaults {
	return Defaults{WindowStart: "20040101", WindowEnd: "20041231", PageSize: 100}
}

func TestReadReturnsStartOfWindowDefault(t *testing.T) {
	store := NewMemoryStore(testDefaults())

	cur, err := store.Read(context.Background(), "openfda-drug-events")
	assert.NoError(t, err)
	assert.Equal(t, "openfda-drug-events", cur.Stream)
	assert.Equal(t, "20040101", cur.WindowStart)
	assert.Equal(t, 0, cur.Skip)
	assert.Equal(t, int64(0), cur.Version)
	assert.Equal(t, StatusIdle, cur.Status)
}

func TestCommitIncrementsVersion(t *testing.T) {
	store := NewMemoryStore(testDefaults())
	ctx := context.Background()

	cur, _ := store.Read(ctx, "s1")
	cur.AdvanceTo(100, 250)

	assert.NoError(t, store.Commit(ctx, cur))
	assert.Equal(t, int64(1), cur.Version)

	got, _ := store.Read(ctx, "s1")
	assert.Equal(t, 100, got.Skip)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestCommitStaleVersionConflicts(t *testing.T) {
	store := NewMemoryStore(testDefaults())
	ctx := context.Background()

	first, _ := store.Read(ctx, "s1")
	second, _ := store.Read(ctx, "s1")

	first.AdvanceTo(100, 250)
	assert.NoError(t, store.Commit(ctx, first))

	second.AdvanceTo(100, 250)
	err := store.Commit(ctx, second)
	assert.ErrorIs(t, err, errors.ErrConflict)

	// Loser writes nothing
	got, _ := store.Read(ctx, "s1")
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 100, got.Skip)
}

func TestConcurrentCommitExactlyOneWinner(t *testing.T) {
	store := NewMemoryStore(testDefaults())
	ctx := context.Background()

	base, _ := store.Read(ctx, "s1")
	base.AdvanceTo(100, 500)
	assert.NoError(t, store.Commit(ctx, base))

	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cur, _ := store.Read(ctx, "s1")
			// All writers read the same version before any commit lands
			cur.Version = 1
			cur.AdvanceTo(200, 500)
			results[i] = store.Commit(ctx, cur)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, errors.ErrConflict)
		}
	}
	assert.Equal(t, 1, winners)

	got, _ := store.Read(ctx, "s1")
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 200, got.Skip)
}

func TestAdvanceToNeverMovesBackward(t *testing.T) {
	cur := New("s1", "20040101", "20041231", 100)
	cur.AdvanceTo(300, 500)
	cur.AdvanceTo(200, 500)
	assert.Equal(t, 300, cur.Skip)
}

func TestExhausted(t *testing.T) {
	cur := New("s1", "20040101", "20041231", 100)
	assert.False(t, cur.Exhausted())

	cur.AdvanceTo(500, 500)
	assert.True(t, cur.Exhausted())

	cur = New("s1", "20040101", "20041231", 100)
	cur.MarkComplete()
	assert.True(t, cur.Exhausted())
}

func TestMarkFailedKeepsSkip(t *testing.T) {
	cur := New("s1", "20040101", "20041231", 100)
	cur.AdvanceTo(100, 500)
	cur.MarkFailed()
	assert.Equal(t, 100, cur.Skip)
	assert.Equal(t, StatusFailed, cur.Status)
}
