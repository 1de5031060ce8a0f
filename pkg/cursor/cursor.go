package cursor

import (
	"context"
	"time"
)

// Run statuses recorded on the cursor. Status is informational; the
// Version field is what serializes concurrent writers.
const (
	StatusIdle       = "idle"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Cursor is the durable resume point for one ingest stream. Skip is the
// absolute record offset of the next unfetched record within the
// receive date window, i.e. the last committed page boundary.
type Cursor struct {
	Stream      string    `json:"stream" db:"stream"`
	WindowStart string    `json:"window_start" db:"window_start"`
	WindowEnd   string    `json:"window_end" db:"window_end"`
	Skip        int       `json:"skip" db:"skip"`
	PageSize    int       `json:"page_size" db:"page_size"`
	Total       int       `json:"total" db:"total"`
	Status      string    `json:"status" db:"status"`
	Version     int64     `json:"version" db:"version"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// New returns the start-of-window cursor for a stream that has never
// committed. Version 0 means "expect no stored row" on first commit.
func New(stream, windowStart, windowEnd string, pageSize int) *Cursor {
	return &Cursor{
		Stream:      stream,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		PageSize:    pageSize,
		Status:      StatusIdle,
	}
}

// AdvanceTo moves the cursor past a published page. The offset never
// moves backward.
func (c *Cursor) AdvanceTo(skip int, total int) {
	if skip > c.Skip {
		c.Skip = skip
	}
	c.Total = total
	c.Status = StatusInProgress
}

// MarkComplete records that the window is exhausted.
func (c *Cursor) MarkComplete() {
	c.Status = StatusComplete
}

// MarkFailed records a failed run. Skip stays at the last committed
// page boundary so the next run re-fetches from there.
func (c *Cursor) MarkFailed() {
	c.Status = StatusFailed
}

// Exhausted reports whether every record in the window has been fetched.
func (c *Cursor) Exhausted() bool {
	return c.Status == StatusComplete || (c.Total > 0 && c.Skip >= c.Total)
}

// Store persists cursors with optimistic concurrency. Commit compares
// the Version read against the stored one and returns errors.ErrConflict
// when another writer got there first; the caller aborts without
// retrying.
type Store interface {
	// Read returns the cursor for the stream, or a start-of-window
	// default when none is stored.
	Read(ctx context.Context, stream string) (*Cursor, error)

	// Commit writes the cursor if and only if the stored version still
	// matches cur.Version. On success cur.Version is incremented.
	Commit(ctx context.Context, cur *Cursor) error
}

// Defaults applied by Read when no cursor is stored.
type Defaults struct {
	WindowStart string
	WindowEnd   string
	PageSize    int
}
