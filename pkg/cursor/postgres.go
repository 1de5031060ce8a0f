package cursor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const cursorsTable = "cursors"

var cursorColumns = []string{"stream", "window_start", "window_end", "skip", "page_size", "total", "status", "version", "updated_at"}

// PostgresStore keeps cursors in a table keyed by stream. The CAS is a
// conditional UPDATE on the version column; zero rows affected means
// another writer committed first.
type PostgresStore struct {
	db       database.DB
	defaults Defaults
	logger   ectologger.Logger
}

// NewPostgresStore creates a Postgres backed cursor store.
func NewPostgresStore(db database.DB, defaults Defaults, logger ectologger.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		defaults: defaults,
		logger:   logger,
	}
}

// Read returns the stored cursor, or a start-of-window default when the
// stream has never committed.
func (s *PostgresStore) Read(ctx context.Context, stream string) (*Cursor, error) {
	ctx, span := tracing.StartSpan(ctx, "cursor.PostgresStore.Read")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cursorColumns...)
	sb.From(cursorsTable)
	sb.Where(sb.Equal("stream", stream))

	query, args := sb.Build()
	var cur Cursor
	if err := s.db.GetContext(ctx, &cur, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return New(stream, s.defaults.WindowStart, s.defaults.WindowEnd, s.defaults.PageSize), nil
		}
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to read cursor for stream '%s'", stream)
		return nil, errors.NewTransientError("cursor read", err)
	}

	return &cur, nil
}

// Commit writes the cursor if the stored version still matches. Version
// 0 inserts and relies on the primary key to reject a concurrent first
// commit.
func (s *PostgresStore) Commit(ctx context.Context, cur *Cursor) error {
	ctx, span := tracing.StartSpan(ctx, "cursor.PostgresStore.Commit")
	defer span.End()

	expected := cur.Version
	now := time.Now().UTC()

	var (
		query string
		args  []any
	)
	if expected == 0 {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(cursorsTable)
		ib.Cols(cursorColumns...)
		ib.Values(cur.Stream, cur.WindowStart, cur.WindowEnd, cur.Skip, cur.PageSize, cur.Total, cur.Status, expected+1, now)
		query, args = ib.Build()
		query += " ON CONFLICT (stream) DO NOTHING"
	} else {
		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update(cursorsTable)
		ub.Set(
			ub.Assign("window_start", cur.WindowStart),
			ub.Assign("window_end", cur.WindowEnd),
			ub.Assign("skip", cur.Skip),
			ub.Assign("page_size", cur.PageSize),
			ub.Assign("total", cur.Total),
			ub.Assign("status", cur.Status),
			ub.Assign("version", expected+1),
			ub.Assign("updated_at", now),
		)
		ub.Where(
			ub.Equal("stream", cur.Stream),
			ub.Equal("version", expected),
		)
		query, args = ub.Build()
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to commit cursor for stream '%s'", cur.Stream)
		return errors.NewTransientError("cursor commit", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		s.logger.WithContext(ctx).Warnf("Cursor commit conflict for stream '%s' at version %d", cur.Stream, expected)
		return errors.ErrConflict
	}

	cur.Version = expected + 1
	cur.UpdatedAt = now
	s.logger.WithContext(ctx).Debugf("Committed cursor for stream '%s': skip=%d status=%s version=%d", cur.Stream, cur.Skip, cur.Status, cur.Version)
	return nil
}
