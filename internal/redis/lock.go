package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker is used by the appointment service to guard check-then-write sections
// per doctor slot.
type Locker interface {
	WithSlotLock(ctx context.Context, doctorID string, start time.Time, fn func(ctx context.Context) error) error
}

// SlotKey names the lock for one doctor's slot. The key carries the start in
// UTC nanoseconds, so equal instants in different zones share a key and
// sub-second starts never collapse onto one.
func SlotKey(doctorID string, start time.Time) string {
	return fmt.Sprintf("lock:doctor:%s:slot:%d", doctorID, start.UTC().UnixNano())
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, doctorID string, start time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(doctorID, start)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// localSlotLocker serialises callers per slot within one process. It waits for
// the slot instead of failing fast, since contention is in-process and short.
type localSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*slotMutex
}

type slotMutex struct {
	mu   sync.Mutex
	refs int
}

// NewLocalLocker returns an in-process Locker for single-instance deployments
// and tests.
func NewLocalLocker() Locker {
	return &localSlotLocker{slots: make(map[string]*slotMutex)}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, doctorID string, start time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(doctorID, start)

	l.mu.Lock()
	m, ok := l.slots[key]
	if !ok {
		m = &slotMutex{}
		l.slots[key] = m
	}
	m.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.slots, key)
		}
		l.mu.Unlock()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
