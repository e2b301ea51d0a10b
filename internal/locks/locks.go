package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SourceLocker serializes crawls per data source so a scheduler and a
// worker pool never process the same source at once.
type SourceLocker interface {
	TryLock(ctx context.Context, sourceID int64) (bool, error)
	Unlock(ctx context.Context, sourceID int64) error
	Close() error
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

// NewMemoryLocker is the single-process default.
func NewMemoryLocker() SourceLocker {
	return &memoryLocker{held: make(map[int64]bool)}
}

func (m *memoryLocker) TryLock(_ context.Context, sourceID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[sourceID] {
		return false, nil
	}
	m.held[sourceID] = true
	return true, nil
}

func (m *memoryLocker) Unlock(_ context.Context, sourceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, sourceID)
	return nil
}

func (m *memoryLocker) Close() error { return nil }

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker coordinates across processes with SET NX and a TTL so a
// crashed worker cannot hold a source forever.
func NewRedisLocker(addr, password string, db int, ttl time.Duration, prefix string) (SourceLocker, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if prefix == "" {
		prefix = "crawl_lock"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLocker{client: client, ttl: ttl, prefix: prefix}, nil
}

func (l *redisLocker) key(sourceID int64) string {
	return fmt.Sprintf("%s:%d", l.prefix, sourceID)
}

func (l *redisLocker) TryLock(ctx context.Context, sourceID int64) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, l.key(sourceID), "1", l.ttl).Result()
}

func (l *redisLocker) Unlock(ctx context.Context, sourceID int64) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(sourceID)).Err()
}

func (l *redisLocker) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
