package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"turfhub/internal/domain"
	"turfhub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

const defaultLockPoll = 20 * time.Millisecond

func lockTimeout(key string, cause error) error {
	return fmt.Errorf("lock %s: %w: %w", key, domain.ErrLockTimeout, cause)
}

// RedisLocker implements domain.Locker with SET NX PX and token-checked release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = models.DefaultLockTTL
	}
	if wait <= 0 {
		wait = models.DefaultLockWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, poll: defaultLockPoll}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, storeError("lock "+key, errNilClient)
	}
	lockKey := models.LockKeyPrefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, lockKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, lockTimeout(key, waitCtx.Err())
			}
			return nil, storeError("lock "+key, err)
		}
		if ok {
			return l.releaser(lockKey, token), nil
		}

		select {
		case <-waitCtx.Done():
			return nil, lockTimeout(key, waitCtx.Err())
		case <-time.After(l.poll):
		}
	}
}

func (l *RedisLocker) releaser(lockKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// An expired lock is already released; nothing to report.
			_ = unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
		})
	}
}

// MemoryLocker serializes holders of the same key inside one process.
// A slot lives only while someone holds or waits for its key.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
	wait  time.Duration
}

type memorySlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	if wait <= 0 {
		wait = models.DefaultLockWait
	}
	return &MemoryLocker{slots: make(map[string]*memorySlot), wait: wait}
}

func (l *MemoryLocker) acquireSlot(key string) *memorySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &memorySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *MemoryLocker) releaseSlot(key string, slot *memorySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	slot := l.acquireSlot(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.releaseSlot(key, slot)
			})
		}, nil
	case <-waitCtx.Done():
		l.releaseSlot(key, slot)
		return nil, lockTimeout(key, waitCtx.Err())
	}
}

// isLockContention reports errors that must not trigger a failover.
func isLockContention(err error) bool {
	return errors.Is(err, domain.ErrLockTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
