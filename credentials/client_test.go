package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errQuota = errors.New("quota exceeded")

func isQuota(err error) bool { return errors.Is(err, errQuota) }

// keyBackend is the key the backend was built with.
type keyBackend string

func keyFactory(built *[]string) Factory[keyBackend] {
	return func(_ context.Context, key string) (keyBackend, error) {
		*built = append(*built, key)
		return keyBackend(key), nil
	}
}

func newTestClient(t *testing.T, keys []string) (*Client[keyBackend], *[]string) {
	t.Helper()
	pool, err := NewPool(keys)
	require.NoError(t, err)
	var built []string
	c, err := NewClient(pool, keyFactory(&built), isQuota, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, &built
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	_, err := NewPool([]string{"", "  "})
	require.Error(t, err)

	p, err := NewPool([]string{" a ", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())
	_, key := p.Current()
	assert.Equal(t, "a", key)
}

func TestPoolRotateWraps(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Rotate())
	assert.Equal(t, 2, p.Rotate())
	assert.Equal(t, 0, p.Rotate())
}

func TestPoolRotateFromIsCompareAndRotate(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, 1, p.RotateFrom(0))
	// stale caller still thinks it failed on key 0
	assert.Equal(t, 1, p.RotateFrom(0))
	idx, _ := p.Current()
	assert.Equal(t, 1, idx)
}

func TestExecuteRotatesUntilSuccess(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("pool_%d", n), func(t *testing.T) {
			keys := make([]string, n)
			for i := range keys {
				keys[i] = fmt.Sprintf("key-%d", i)
			}
			c, _ := newTestClient(t, keys)

			var used []keyBackend
			err := c.Execute(context.Background(), func(_ context.Context, b keyBackend) error {
				used = append(used, b)
				if len(used) < n {
					return errQuota
				}
				return nil
			})
			require.NoError(t, err)
			require.Len(t, used, n)
			assert.Equal(t, keyBackend(keys[n-1]), used[n-1])

			idx, key := c.Pool().Current()
			assert.Equal(t, n-1, idx)
			assert.Equal(t, keys[n-1], key)
		})
	}
}

func TestExecuteSingleKeyFailsImmediately(t *testing.T) {
	c, _ := newTestClient(t, []string{"only"})
	rotated := false
	c.OnRotate = func(int, int) { rotated = true }

	calls := 0
	err := c.Execute(context.Background(), func(context.Context, keyBackend) error {
		calls++
		return errQuota
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errQuota)
	assert.Equal(t, 1, calls)
	assert.False(t, rotated)
}

func TestExecuteExhaustsPool(t *testing.T) {
	c, _ := newTestClient(t, []string{"a", "b", "c"})
	var rotations int
	c.OnRotate = func(int, int) { rotations++ }

	calls := 0
	err := c.Execute(context.Background(), func(context.Context, keyBackend) error {
		calls++
		return errQuota
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, rotations)
}

func TestExecuteNonRotatablePropagates(t *testing.T) {
	c, _ := newTestClient(t, []string{"a", "b"})
	boom := errors.New("bad request")

	calls := 0
	err := c.Execute(context.Background(), func(context.Context, keyBackend) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
	idx, _ := c.Pool().Current()
	assert.Equal(t, 0, idx)
}

func TestExecuteCachesBackendsPerKey(t *testing.T) {
	c, built := newTestClient(t, []string{"a", "b"})
	ok := func(context.Context, keyBackend) error { return nil }

	require.NoError(t, c.Execute(context.Background(), ok))
	require.NoError(t, c.Execute(context.Background(), ok))
	assert.Equal(t, []string{"a"}, *built)
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	c, _ := newTestClient(t, []string{"a", "b", "c"})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := c.Execute(ctx, func(context.Context, keyBackend) error {
		calls++
		cancel()
		return errQuota
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecuteConcurrentFailuresRotateOnce(t *testing.T) {
	c, _ := newTestClient(t, []string{"a", "b", "c", "d"})

	var (
		wg    sync.WaitGroup
		gate  sync.WaitGroup
		mu    sync.Mutex
		first = map[keyBackend]int{}
	)
	gate.Add(2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := 0
			_ = c.Execute(context.Background(), func(_ context.Context, b keyBackend) error {
				attempt++
				if attempt == 1 {
					mu.Lock()
					first[b]++
					mu.Unlock()
					gate.Done()
					gate.Wait()
					return errQuota
				}
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, first["a"])
	idx, _ := c.Pool().Current()
	assert.Equal(t, 1, idx)
}
