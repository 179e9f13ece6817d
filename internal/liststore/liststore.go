package liststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	wbfredis "github.com/wb-go/wbf/redis"
	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps every failure of the backing Redis client.
var ErrStoreUnavailable = errors.New("list store unavailable")

// Store keeps ordered, newest-first reference lists in Redis.
// Each method issues a single atomic command, except Replace which runs in MULTI/EXEC.
type Store struct {
	rdb redis.Cmdable
	log *zap.Logger
}

func NewStore(rdb redis.Cmdable, log *zap.Logger) *Store {
	return &Store{rdb: rdb, log: log.Named("liststore")}
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := wbfredis.New(addr, password, db).Client
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrStoreUnavailable, addr, err)
	}
	return rdb, nil
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, op, key, err)
}

func (s *Store) PushFront(ctx context.Context, key, ref string) error {
	if err := s.rdb.LPush(ctx, key, ref).Err(); err != nil {
		s.log.Error("LPUSH failed", zap.String("key", key), zap.String("ref", ref), zap.Error(err))
		return unavailable("push", key, err)
	}
	return nil
}

// Remove strips every occurrence of ref and reports how many were removed.
// A missing key removes nothing.
func (s *Store) Remove(ctx context.Context, key, ref string) (int64, error) {
	n, err := s.rdb.LRem(ctx, key, 0, ref).Result()
	if err != nil {
		s.log.Error("LREM failed", zap.String("key", key), zap.String("ref", ref), zap.Error(err))
		return 0, unavailable("remove", key, err)
	}
	return n, nil
}

func (s *Store) Length(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		s.log.Error("LLEN failed", zap.String("key", key), zap.Error(err))
		return 0, unavailable("length", key, err)
	}
	return n, nil
}

// Range returns the elements at stored positions [start, stop).
// Negative bounds are clamped to zero; a stop past the end returns what exists.
func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if start < 0 {
		start = 0
	}
	if stop <= start {
		return []string{}, nil
	}
	refs, err := s.rdb.LRange(ctx, key, start, stop-1).Result()
	if err != nil {
		s.log.Error("LRANGE failed", zap.String("key", key), zap.Int64("start", start), zap.Int64("stop", stop), zap.Error(err))
		return nil, unavailable("range", key, err)
	}
	return refs, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		s.log.Error("EXISTS failed", zap.String("key", key), zap.Error(err))
		return false, unavailable("exists", key, err)
	}
	return n > 0, nil
}

// SetLock marks key as present. A zero ttl never expires.
func (s *Store) SetLock(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, 1, ttl).Err(); err != nil {
		s.log.Error("SET failed", zap.String("key", key), zap.Error(err))
		return unavailable("lock", key, err)
	}
	return nil
}

func (s *Store) ClearLock(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Error("DEL failed", zap.String("key", key), zap.Error(err))
		return unavailable("unlock", key, err)
	}
	return nil
}

// Replace swaps the whole list for refs, given oldest first, so refs[len-1] ends up at the front.
func (s *Store) Replace(ctx context.Context, key string, refs []string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(refs) > 0 {
			values := make([]interface{}, len(refs))
			for i, ref := range refs {
				values[i] = ref
			}
			pipe.LPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Error("replace failed", zap.String("key", key), zap.Int("refs", len(refs)), zap.Error(err))
		return unavailable("replace", key, err)
	}
	return nil
}
