// Package app arma el servicio a partir de config.Config: stores, registry,
// limiter, fachada biométrica, auditoría y el handler HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/audit"
	"github.com/dropDatabas3/trustcore/internal/biometric"
	"github.com/dropDatabas3/trustcore/internal/challenge"
	"github.com/dropDatabas3/trustcore/internal/config"
	"github.com/dropDatabas3/trustcore/internal/credential"
	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	"github.com/dropDatabas3/trustcore/internal/http/controllers"
	mw "github.com/dropDatabas3/trustcore/internal/http/middlewares"
	"github.com/dropDatabas3/trustcore/internal/http/router"
	"github.com/dropDatabas3/trustcore/internal/limiter"
	"github.com/dropDatabas3/trustcore/internal/login"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/rate"
	"github.com/dropDatabas3/trustcore/internal/security/password"
	fsstore "github.com/dropDatabas3/trustcore/internal/store/fs"
	"github.com/dropDatabas3/trustcore/internal/store/memory"
	"github.com/dropDatabas3/trustcore/internal/store/pg"
	redisstore "github.com/dropDatabas3/trustcore/internal/store/redis"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
	migrations "github.com/dropDatabas3/trustcore/migrations/postgres"
)

// Deps permite inyectar piezas externas al core.
type Deps struct {
	// Issuer recibe los veredictos biométricos y emite tokens. Opcional.
	Issuer biometric.TokenIssuer
	// Now reemplaza el reloj (tests).
	Now     func() time.Time
	Version string
}

// App es el servicio cableado.
type App struct {
	Handler   http.Handler
	Registry  *tenantconfig.Registry
	Limiter   *limiter.Limiter
	Biometric *biometric.Service

	closers []func() error
}

// New construye todo el grafo. Ante error libera lo que ya se abrió.
func New(ctx context.Context, cfg *config.Config, deps Deps) (_ *App, err error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	log := logger.L().With(logger.Component("app"))
	timeout := cfg.StorageTimeout()
	checks := map[string]controllers.Check{}

	// ─── Postgres ───
	var pgs *pg.Store
	if needsPostgres(cfg) {
		pgs, err = pg.New(ctx, pg.Config{
			DSN:             cfg.Storage.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.PGConnMaxLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pgs.Close(); return nil })
		checks["postgres"] = pgs.Ping

		if cfg.Flags.Migrate {
			res, err := Migrate(ctx, pgs)
			if err != nil {
				return nil, err
			}
			log.Info("migrations applied", logger.Int("applied", len(res.Applied)), logger.Int("skipped", len(res.Skipped)))
		}
	}

	// ─── Redis (solo si algún backend lo usa) ───
	var rc *rdb.Client
	if usesRedis(cfg) {
		rc, err = redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	// ─── Registry ───
	source, err := featureSource(cfg, pgs)
	if err != nil {
		return nil, err
	}
	cache, err := tenantconfig.NewCache(cfg.Features.Cache.Driver, cfg.FeatureCacheTTL())
	if err != nil {
		return nil, err
	}
	reg, err := tenantconfig.NewRegistry(tenantconfig.Options{
		Source:  source,
		Cache:   cache,
		TTL:     cfg.FeatureCacheTTL(),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	a.Registry = reg

	// ─── Auditoría ───
	rec, err := auditRecorder(cfg, a)
	if err != nil {
		return nil, err
	}

	// ─── Limiter de intentos ───
	var attempts repository.AttemptRepository
	switch cfg.Limiter.Backend {
	case "postgres":
		attempts = pgs.Attempts()
	case "redis":
		attempts = redisstore.NewAttempts(rc, cfg.Redis.Prefix)
	default:
		attempts = memory.NewAttempts()
	}
	lim, err := limiter.New(limiter.Options{Registry: reg, Store: attempts, Timeout: timeout, Now: deps.Now})
	if err != nil {
		return nil, err
	}
	a.Limiter = lim
	audited := &auditedLimiter{Limiter: lim, rec: rec, now: deps.Now}

	// ─── Challenges ───
	var chRepo repository.ChallengeRepository
	switch cfg.Challenge.Backend {
	case "postgres":
		chRepo = pgs.Challenges()
	case "redis":
		chRepo = redisstore.NewChallenges(rc, cfg.Redis.Prefix)
	default:
		chRepo = memory.NewChallenges()
	}
	chals, err := challenge.NewStore(challenge.Options{Repo: chRepo, Timeout: timeout, Now: deps.Now})
	if err != nil {
		return nil, err
	}

	// ─── Credenciales + refresh tokens ───
	var credRepo repository.CredentialRepository = memory.NewCredentials()
	var rtRepo repository.RefreshTokenRepository = memory.NewRefreshTokens()
	if cfg.Storage.Driver == "postgres" {
		credRepo = pgs.Credentials()
		rtRepo = pgs.RefreshTokens()
	}
	creds := credential.NewStore(credRepo, timeout, deps.Now)

	bio, err := biometric.NewService(biometric.Options{
		Registry:      reg,
		Challenges:    chals,
		Credentials:   creds,
		Verifier:      credential.NewVerifier(chals, creds, deps.Now),
		RefreshTokens: rtRepo,
		Issuer:        deps.Issuer,
		Audit:         rec,
		Timeout:       timeout,
		Now:           deps.Now,
	})
	if err != nil {
		return nil, err
	}
	a.Biometric = bio

	// ─── HTTP ───
	var rl rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Rate.Backend == "redis" {
			rl = rate.NewRedisLimiter(rc, cfg.Redis.Prefix+"rl:", cfg.Rate.Requests, cfg.RateWindow())
		} else {
			rl = rate.NewMemoryLimiter(cfg.Rate.Requests, cfg.RateWindow())
		}
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		if err := metrics.Register(nil); err != nil {
			return nil, err
		}
		if err := mw.RegisterHTTPMetrics(nil); err != nil {
			return nil, err
		}
		metricsHandler = promhttp.Handler()
	}

	if cfg.Server.AdminAPIKey == "" {
		log.Warn("server.admin_api_key vacío: rutas /v1/admin deshabilitadas")
	}

	a.Handler = router.New(router.Deps{
		Biometric:   controllers.NewBiometricController(bio),
		Attempts:    controllers.NewAttemptsController(audited, login.NewGuard(audited, password.Default)),
		Admin:       controllers.NewAdminController(reg, bio),
		Health:      controllers.NewHealthController(checks, deps.Version),
		AdminAPIKey: cfg.Server.AdminAPIKey,
		RateLimiter: rl,
		Metrics:     metricsHandler,
	})

	log.Info("app wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("features", cfg.Features.Source),
		logger.String("limiter", cfg.Limiter.Backend),
		logger.String("challenge", cfg.Challenge.Backend),
		logger.String("audit", cfg.Audit.Sink),
	)
	return a, nil
}

// Close libera conexiones en orden inverso de apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate aplica las migraciones embebidas.
func Migrate(ctx context.Context, s *pg.Store) (*pg.MigrationResult, error) {
	res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, s.Pool())
	if err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}
	return res, nil
}

func needsPostgres(cfg *config.Config) bool {
	return cfg.Storage.Driver == "postgres" ||
		cfg.Features.Source == "postgres" ||
		cfg.Challenge.Backend == "postgres" ||
		cfg.Limiter.Backend == "postgres"
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Limiter.Backend == "redis" ||
		cfg.Challenge.Backend == "redis" ||
		(cfg.Rate.Enabled && cfg.Rate.Backend == "redis")
}

func featureSource(cfg *config.Config, pgs *pg.Store) (repository.FeatureConfigRepository, error) {
	switch cfg.Features.Source {
	case "postgres":
		return pgs.FeatureConfigs(), nil
	case "fs":
		return fsstore.NewFeatureConfigs(cfg.Features.FSRoot)
	default:
		// Fuente vacía: todo tenant queda sin features (fail-closed).
		return memory.NewFeatureConfigs(), nil
	}
}

func auditRecorder(cfg *config.Config, a *App) (audit.Recorder, error) {
	logRec := audit.NewLogRecorder(logger.L())
	if cfg.Audit.Sink == "log" {
		return logRec, nil
	}
	pub, err := audit.DialAMQP(audit.AMQPConfig{
		URL:        cfg.Audit.AMQP.URL,
		Exchange:   cfg.Audit.AMQP.Exchange,
		RoutingKey: cfg.Audit.AMQP.RoutingKey,

		ReconnectInterval: cfg.AMQPReconnect(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: amqp: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	if cfg.Audit.Sink == "amqp" {
		return pub, nil
	}
	return audit.Multi{logRec, pub}, nil
}
