package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Serialises(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "acme")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestLocalLocker_HonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// other tenants are independent
	other, err := l.Lock(context.Background(), "globex")
	require.NoError(t, err)
	other()
}

func TestLocalLocker_UnlockIsIdempotent(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "acme")
	require.NoError(t, err)
	again()
}

type fakeRedis struct {
	mu       sync.Mutex
	data     map[string]string
	releases int
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if v, ok := f.data[key]; !ok || v != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	store := &fakeRedis{data: map[string]string{}}
	l := newRedisLocker(store, RedisOptions{Wait: 30 * time.Millisecond, Poll: time.Millisecond})

	unlock, err := l.Lock(context.Background(), CompanyKey("acme"))
	require.NoError(t, err)
	assert.Contains(t, store.data, "foamops:lock:warehouse:acme")

	_, err = l.Lock(context.Background(), CompanyKey("acme"))
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.Empty(t, store.data)

	unlock2, err := l.Lock(context.Background(), CompanyKey("acme"))
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_DoesNotReleaseForeignOwner(t *testing.T) {
	store := &fakeRedis{data: map[string]string{}}
	l := newRedisLocker(store, RedisOptions{Wait: 30 * time.Millisecond, Poll: time.Millisecond})

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	// simulate TTL expiry and takeover by another replica
	store.data["foamops:lock:k"] = "someone-else"
	unlock()
	assert.Equal(t, "someone-else", store.data["foamops:lock:k"])
	assert.Equal(t, 1, store.releases)
}

func TestRedisLocker_ReleaseAfterExpiryIsNoop(t *testing.T) {
	store := &fakeRedis{data: map[string]string{}}
	l := newRedisLocker(store, RedisOptions{Wait: 30 * time.Millisecond, Poll: time.Millisecond})

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	delete(store.data, "foamops:lock:k")

	unlock()
	unlock()
	assert.Empty(t, store.data)
	assert.Equal(t, 1, store.releases)
}
