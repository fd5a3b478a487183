// Package lock serialises read-modify-write work on a tenant's warehouse.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// ErrNotAcquired is returned when the lock could not be taken before the wait expired
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks by key. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker serialises callers inside one process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock blocks until the key is free or ctx is done
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
}

// redisStore defines the operations used by RedisLocker
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// CompareAndDelete deletes key only while it still holds value
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// releaseScript deletes the key in one step only if the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisClientStore struct {
	client *redis.Client
}

func (s redisClientStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s redisClientStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RedisLocker serialises callers across API replicas with SETNX + TTL
type RedisLocker struct {
	store  redisStore
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	onFail func(key string, err error)
}

// RedisOptions tune the distributed lock
type RedisOptions struct {
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
	// OnReleaseError is called when unlocking fails; the key then expires by TTL
	OnReleaseError func(key string, err error)
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client, opts RedisOptions) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return newRedisLocker(redisClientStore{client: client}, opts), nil
}

func newRedisLocker(store redisStore, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "foamops:lock"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 25 * time.Millisecond
	}
	return &RedisLocker{
		store:  store,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		wait:   opts.Wait,
		poll:   opts.Poll,
		onFail: opts.OnReleaseError,
	}
}

var errBusy = errors.New("lock busy")

// Lock polls SETNX until it owns the key or the wait expires
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + ":" + key
	owner := uuid.NewString()

	backoff := retry.WithMaxDuration(l.wait, retry.WithCappedDuration(250*time.Millisecond, retry.NewExponential(l.poll)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.store.SetNX(ctx, fullKey, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("setnx: %w", err)
		}
		if !ok {
			return retry.RetryableError(errBusy)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errBusy) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must not be skipped because the request context ended
			if err := l.release(context.Background(), fullKey, owner); err != nil && l.onFail != nil {
				l.onFail(fullKey, err)
			}
		})
	}, nil
}

// release frees the lock only if the owner value still matches. A key that
// expired or was taken over by another owner is left alone.
func (l *RedisLocker) release(ctx context.Context, key, owner string) error {
	if _, err := l.store.CompareAndDelete(ctx, key, owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// CompanyKey is the lock key guarding a tenant's warehouse
func CompanyKey(companyID string) string {
	return "warehouse:" + companyID
}
