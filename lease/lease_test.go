package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func (f *fakeStore) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "seo:lease:clinica:4:ansiedade tem cura", Key("clinica", 4, " Ansiedade Tem Cura "))
}

func TestRedisClaimRelease(t *testing.T) {
	store := &fakeStore{keys: map[string]time.Duration{}}
	l := newRedis(store, time.Hour)
	ctx := context.Background()
	key := Key("t", 2, "kw")

	require.NoError(t, l.Ping(ctx))
	require.NoError(t, l.Claim(ctx, key))
	assert.Equal(t, time.Hour, store.keys[key])

	err := l.Claim(ctx, key)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, l.Release(ctx, key))
	require.NoError(t, l.Claim(ctx, key))
}

func TestRedisErrors(t *testing.T) {
	boom := errors.New("connection refused")
	l := newRedis(&fakeStore{keys: map[string]time.Duration{}, err: boom}, time.Minute)

	err := l.Claim(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrHeld)
	assert.ErrorIs(t, l.Release(context.Background(), "k"), boom)
}

func TestNoop(t *testing.T) {
	var c Claimer = Noop{}
	assert.NoError(t, c.Claim(context.Background(), "k"))
	assert.NoError(t, c.Claim(context.Background(), "k"))
	assert.NoError(t, c.Release(context.Background(), "k"))
}
