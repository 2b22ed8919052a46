package rate

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es la misma ventana fija sobre go-cache, para un solo proceso.
type MemoryLimiter struct {
	c      *gocache.Cache
	mu     sync.Mutex
	Max    int64
	Window time.Duration
	Now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
		Now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := strings.ReplaceAll(key, " ", "_") + ":" + winStart.Format(time.RFC3339Nano)

	l.mu.Lock()
	hits := int64(1)
	if v, ok := l.c.Get(k); ok {
		hits = v.(int64) + 1
	}
	l.c.Set(k, hits, l.Window)
	l.mu.Unlock()

	return fixedWindow(hits, l.Max, winStart.Add(l.Window).Sub(now)), nil
}
