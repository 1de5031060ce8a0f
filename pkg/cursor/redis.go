package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const cursorKeyPrefix = "fern:cursor:"

// commitScript swaps the stored cursor only when its version still
// matches the one the caller read. ARGV[1] is the expected version,
// ARGV[2] the replacement JSON. Version 0 commits only against a
// missing key.
var commitScript = goredis.NewScript(`
	local cur = redis.call("get", KEYS[1])
	if not cur then
		if tonumber(ARGV[1]) == 0 then
			redis.call("set", KEYS[1], ARGV[2])
			return 1
		end
		return 0
	end
	local stored = cjson.decode(cur)
	if tonumber(stored["version"]) == tonumber(ARGV[1]) then
		redis.call("set", KEYS[1], ARGV[2])
		return 1
	end
	return 0
`)

// RedisStore keeps cursors as JSON values with a Lua compare-and-swap
// on the version field.
type RedisStore struct {
	client   *redis.Client
	defaults Defaults
	logger   ectologger.Logger
}

// NewRedisStore creates a Redis backed cursor store.
func NewRedisStore(client *redis.Client, defaults Defaults, logger ectologger.Logger) *RedisStore {
	return &RedisStore{
		client:   client,
		defaults: defaults,
		logger:   logger,
	}
}

// Read returns the stored cursor, or a start-of-window default when the
// stream has never committed.
func (s *RedisStore) Read(ctx context.Context, stream string) (*Cursor, error) {
	ctx, span := tracing.StartSpan(ctx, "cursor.RedisStore.Read")
	defer span.End()

	val, err := s.client.Get(ctx, cursorKeyPrefix+stream)
	if err == goredis.Nil {
		return New(stream, s.defaults.WindowStart, s.defaults.WindowEnd, s.defaults.PageSize), nil
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to read cursor for stream '%s'", stream)
		return nil, errors.NewTransientError("cursor read", err)
	}

	var cur Cursor
	if err := json.Unmarshal([]byte(val), &cur); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cursor for stream '%s': %w", stream, err)
	}

	return &cur, nil
}

// Commit writes the cursor with a version CAS. A lost race returns
// errors.ErrConflict and writes nothing.
func (s *RedisStore) Commit(ctx context.Context, cur *Cursor) error {
	ctx, span := tracing.StartSpan(ctx, "cursor.RedisStore.Commit")
	defer span.End()

	expected := cur.Version
	next := *cur
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor for stream '%s': %w", cur.Stream, err)
	}

	result, err := commitScript.Run(ctx, s.client.Redis(), []string{cursorKeyPrefix + cur.Stream}, expected, string(payload)).Int64()
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to commit cursor for stream '%s'", cur.Stream)
		return errors.NewTransientError("cursor commit", err)
	}

	if result == 0 {
		s.logger.WithContext(ctx).Warnf("Cursor commit conflict for stream '%s' at version %d", cur.Stream, expected)
		return errors.ErrConflict
	}

	cur.Version = next.Version
	cur.UpdatedAt = next.UpdatedAt
	s.logger.WithContext(ctx).Debugf("Committed cursor for stream '%s': skip=%d status=%s version=%d", cur.Stream, cur.Skip, cur.Status, cur.Version)
	return nil
}
