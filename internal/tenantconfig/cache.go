package tenantconfig

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/patrickmn/go-cache"
)

// Cache es el almacenamiento in-process de resoluciones.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, v any, ttl time.Duration)
	Delete(key string)
}

// NewCache crea el backend indicado: gocache (default) | ristretto | none.
func NewCache(driver string, defaultTTL time.Duration) (Cache, error) {
	switch driver {
	case "", "gocache":
		return NewGoCache(defaultTTL), nil
	case "ristretto":
		return NewRistretto(10_000)
	case "none":
		return noCache{}, nil
	default:
		return nil, fmt.Errorf("tenantconfig: unknown cache driver %q", driver)
	}
}

type goCache struct{ c *gocache.Cache }

func NewGoCache(defaultTTL time.Duration) Cache {
	return &goCache{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *goCache) Get(k string) (any, bool)               { return m.c.Get(k) }
func (m *goCache) Set(k string, v any, ttl time.Duration) { m.c.Set(k, v, ttl) }
func (m *goCache) Delete(k string)                        { m.c.Delete(k) }

type ristrettoCache struct{ c *ristretto.Cache }

// NewRistretto crea un cache acotado por cantidad de entradas (costo 1 por entrada).
func NewRistretto(maxEntries int64) (Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache{c: c}, nil
}

func (r *ristrettoCache) Get(k string) (any, bool) { return r.c.Get(k) }

func (r *ristrettoCache) Set(k string, v any, ttl time.Duration) {
	r.c.SetWithTTL(k, v, 1, ttl)
	// los Set de ristretto son asíncronos; Wait hace visible la entrada al próximo Get
	r.c.Wait()
}

func (r *ristrettoCache) Delete(k string) { r.c.Del(k) }

type noCache struct{}

func (noCache) Get(string) (any, bool)         { return nil, false }
func (noCache) Set(string, any, time.Duration) {}
func (noCache) Delete(string)                  {}
