// Package lease marks a keyword task as in progress so a crashed or
// concurrent run does not publish it twice.
package lease

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Claim when another run holds the task.
var ErrHeld = errors.New("lease held")

// Claimer claims a task before work starts and releases it on failure.
type Claimer interface {
	Claim(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// Key builds the lease key for one worksheet row.
func Key(tenant string, row int, keyword string) string {
	return fmt.Sprintf("seo:lease:%s:%d:%s", tenant, row, strings.ToLower(strings.TrimSpace(keyword)))
}

// Noop never blocks a task.
type Noop struct{}

func (Noop) Claim(context.Context, string) error   { return nil }
func (Noop) Release(context.Context, string) error { return nil }

type store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis keeps leases as keys with a TTL. A lease outlives a successful task
// until the TTL expires; by then the row is no longer pending.
type Redis struct {
	client store
	ttl    time.Duration
	owner  string
}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return newRedis(rdb, ttl)
}

func newRedis(client store, ttl time.Duration) *Redis {
	host, _ := os.Hostname()
	return &Redis{
		client: client,
		ttl:    ttl,
		owner:  fmt.Sprintf("%s/%d", host, os.Getpid()),
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Claim(ctx context.Context, key string) error {
	ok, err := r.client.SetNX(ctx, key, r.owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrHeld)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
