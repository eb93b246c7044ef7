package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrExhausted is matched by every error returned after all keys failed with a rotatable error.
var ErrExhausted = errors.New("all credentials exhausted")

// ExhaustedError carries the last backend error seen before giving up.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Factory builds a backend bound to one API key.
type Factory[T any] func(ctx context.Context, key string) (T, error)

// Classifier reports whether err is worth retrying under another key.
type Classifier func(err error) bool

// Client runs operations against a backend configured with the pool's current
// key, rotating to the next key on rotatable failures. It knows nothing about
// what the operation does.
type Client[T any] struct {
	pool      *Pool
	factory   Factory[T]
	rotatable Classifier
	logger    *zap.Logger

	// OnRotate is called after each rotation, if set.
	OnRotate func(from, to int)

	mu       sync.Mutex
	backends map[int]T
}

func NewClient[T any](pool *Pool, factory Factory[T], rotatable Classifier, logger *zap.Logger) (*Client[T], error) {
	if pool == nil {
		return nil, errors.New("credential pool is required")
	}
	if factory == nil {
		return nil, errors.New("backend factory is required")
	}
	if rotatable == nil {
		rotatable = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client[T]{
		pool:      pool,
		factory:   factory,
		rotatable: rotatable,
		logger:    logger,
		backends:  make(map[int]T),
	}, nil
}

// Pool exposes the underlying pool (read-only use).
func (c *Client[T]) Pool() *Pool { return c.pool }

// Execute runs op at most pool-size times. Non-rotatable errors are returned as is.
// With a single key a rotatable error fails immediately with ErrExhausted.
func (c *Client[T]) Execute(ctx context.Context, op func(ctx context.Context, backend T) error) error {
	attempts := c.pool.Size()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		idx, key := c.pool.Current()
		backend, err := c.backend(ctx, idx, key)
		if err != nil {
			return fmt.Errorf("build backend for credential #%d: %w", idx, err)
		}

		err = op(ctx, backend)
		if err == nil {
			return nil
		}
		if !c.rotatable(err) {
			return err
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt == attempts {
			break
		}

		next := c.pool.RotateFrom(idx)
		c.logger.Warn("credential rejected, rotating",
			zap.Int("from", idx),
			zap.Int("to", next),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if c.OnRotate != nil {
			c.OnRotate(idx, next)
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func (c *Client[T]) backend(ctx context.Context, idx int, key string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.backends[idx]; ok {
		return b, nil
	}
	b, err := c.factory(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	c.backends[idx] = b
	return b, nil
}
