package locks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/safetrack/ehs-training-backend/internal/logger"
)

// AttemptLocker serializes attempt starts per (user, component) pair.
// TryAcquire returns false when another request currently holds the key;
// the caller maps that to an attempt-already-active failure instead of
// racing the partial unique index.
type AttemptLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedisLocker(log *logger.Logger, addr string) (AttemptLocker, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisLocker{
		log:    log.With("component", "RedisLocker"),
		rdb:    rdb,
		prefix: "attempt_lock:",
	}, nil
}

func (l *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *redisLocker) Release(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.prefix+key).Err()
}

// MemoryLocker is the in-process fallback used when no redis address is
// configured, and by tests. Correct for a single instance only.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if deadline, ok := l.held[key]; ok && time.Now().Before(deadline) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
