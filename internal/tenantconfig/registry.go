package tenantconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Options configura el Registry.
type Options struct {
	Source repository.FeatureConfigRepository
	Cache  Cache         // nil ⇒ go-cache con TTL
	TTL    time.Duration // default 5m
	// Timeout acota cada lectura de la fuente. Default 2s.
	Timeout time.Duration
}

// Registry es el read-through cache de configs por tenant.
type Registry struct {
	source  repository.FeatureConfigRepository
	cache   Cache
	ttl     time.Duration
	timeout time.Duration

	sf singleflight.Group

	// gens versiona las entradas por tenant y por (tenant, feature):
	// invalidar sube la generación y las claves viejas quedan inalcanzables
	// hasta su TTL, incluso si una carga en vuelo las escribe después.
	mu       sync.RWMutex
	gens     map[string]uint64
	featGens map[string]uint64
}

// entry es lo que se cachea. found=false es una entrada negativa.
type entry struct {
	found bool
	value any
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.Source == nil {
		return nil, errors.New("tenantconfig: source is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = NewGoCache(opts.TTL)
	}
	return &Registry{
		source:   opts.Source,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		timeout:  opts.Timeout,
		gens:     make(map[string]uint64),
		featGens: make(map[string]uint64),
	}, nil
}

func featureGenKey(tenantID string, key FeatureKey) string {
	return tenantID + "|" + string(key)
}

func (r *Registry) cacheKey(tenantID string, key FeatureKey) string {
	r.mu.RLock()
	gen := r.gens[tenantID]
	fgen := r.featGens[featureGenKey(tenantID, key)]
	r.mu.RUnlock()
	return fmt.Sprintf("%s|%d.%d|%s", tenantID, gen, fgen, key)
}

// Invalidate descarta la entrada cacheada de (tenant, feature).
// Lo llama el path de administración externo tras un update.
func (r *Registry) Invalidate(tenantID string, key FeatureKey) {
	old := r.cacheKey(tenantID, key)
	r.mu.Lock()
	r.featGens[featureGenKey(tenantID, key)]++
	r.mu.Unlock()
	r.cache.Delete(old)
	r.sf.Forget(old)
	logger.L().Debug("feature config invalidated",
		logger.Component("tenantconfig"), logger.TenantID(tenantID), logger.Feature(string(key)))
}

// InvalidateTenant descarta todas las features del tenant.
func (r *Registry) InvalidateTenant(tenantID string) {
	r.mu.Lock()
	r.gens[tenantID]++
	r.mu.Unlock()
	logger.L().Debug("tenant config invalidated",
		logger.Component("tenantconfig"), logger.TenantID(tenantID))
}

// lookup resuelve (tenant, feature) usando decode para el documento crudo.
func (r *Registry) lookup(ctx context.Context, tenantID string, key FeatureKey, decode func([]byte) (any, error)) (entry, error) {
	ck := r.cacheKey(tenantID, key)
	if v, ok := r.cache.Get(ck); ok {
		if e, ok := v.(entry); ok {
			metrics.FeatureLookups.WithLabelValues(string(key), "hit").Inc()
			return e, nil
		}
	}

	// La carga es compartida: no depende de la cancelación del primer caller.
	fctx := context.WithoutCancel(ctx)
	v, err, _ := r.sf.Do(ck, func() (any, error) {
		e, err := r.load(fctx, tenantID, key, decode)
		if err != nil {
			return nil, err
		}
		// una invalidación durante la carga deja esta entrada sin cachear
		if r.cacheKey(tenantID, key) == ck {
			r.cache.Set(ck, e, r.ttl)
		}
		return e, nil
	})
	if err != nil {
		metrics.FeatureLookups.WithLabelValues(string(key), "error").Inc()
		return entry{}, err
	}
	return v.(entry), nil
}

func (r *Registry) load(ctx context.Context, tenantID string, key FeatureKey, decode func([]byte) (any, error)) (entry, error) {
	log := logger.From(ctx).With(
		logger.Component("tenantconfig"),
		logger.TenantID(tenantID),
		logger.Feature(string(key)),
	)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.source.GetConfig(cctx, tenantID, string(key))
	metrics.StoreLatency.WithLabelValues("features", "get").Observe(float64(time.Since(start).Microseconds()) / 1000)
	switch {
	case repository.IsNotFound(err):
		metrics.FeatureLookups.WithLabelValues(string(key), "absent").Inc()
		return entry{found: false}, nil
	case err != nil:
		log.Warn("feature config source failed", logger.Err(err))
		return entry{}, apperrors.FromStore(err)
	}

	v, err := decode(raw)
	if err != nil {
		// fail closed: un config que no valida se trata como ausente
		log.Error("stored feature config is invalid; treating as not configured", logger.Err(err))
		metrics.FeatureLookups.WithLabelValues(string(key), "invalid").Inc()
		return entry{found: false}, nil
	}
	metrics.FeatureLookups.WithLabelValues(string(key), "loaded").Inc()
	return entry{found: true, value: v}, nil
}

// Optional resuelve una feature que puede faltar. Nunca falla por ausencia;
// solo por errores de la fuente (InternalError reintentable).
func Optional[T any](ctx context.Context, r *Registry, tenantID string, f Feature[T]) (Result[T], error) {
	e, err := r.lookup(ctx, tenantID, f.Key, func(raw []byte) (any, error) {
		return f.decode(raw)
	})
	if err != nil {
		return Result[T]{}, err
	}
	if !e.found {
		return Result[T]{}, nil
	}
	cfg, ok := e.value.(T)
	if !ok {
		return Result[T]{}, apperrors.ErrInternal.WithDetail("feature type mismatch")
	}
	return Result[T]{Found: true, Config: cfg}, nil
}

// Required resuelve una feature obligatoria. Ausente ⇒ FeatureNotConfigured.
func Required[T any](ctx context.Context, r *Registry, tenantID string, f Feature[T]) (T, error) {
	res, err := Optional(ctx, r, tenantID, f)
	if err != nil {
		var zero T
		return zero, err
	}
	if !res.Found {
		var zero T
		return zero, apperrors.ErrFeatureNotConfigured.
			WithMeta("tenant_id", tenantID).
			WithMeta("feature", string(f.Key))
	}
	return res.Config, nil
}
