// Package rate limita requests HTTP con una ventana fija por clave.
// Es throttling de transporte; el bloqueo por intentos fallidos vive en limiter.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE)
type RedisLimiter struct {
	Client rdb.Cmdable
	Prefix string
	Max    int64
	Window time.Duration
	Now    func() time.Time
}

func NewRedisLimiter(client rdb.Cmdable, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
		Now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// La clave incluye el inicio de ventana: refrescar el TTL no la extiende más allá de 2 ventanas.
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	return fixedWindow(incr.Val(), l.Max, winStart.Add(l.Window).Sub(now)), nil
}

func fixedWindow(hits, limit int64, left time.Duration) Result {
	res := Result{
		Allowed:     hits <= limit,
		Remaining:   max(0, limit-hits),
		CurrentHits: hits,
		WindowTTL:   left,
	}
	if !res.Allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = left
	}
	return res
}
