package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env  string `yaml:"app_env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// AdminAPIKey protege /v1/admin/*. Vacío ⇒ rutas admin deshabilitadas.
		AdminAPIKey     string `yaml:"admin_api_key"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Timeout  string `yaml:"timeout"` // timeout por operación de store
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Features struct {
		// postgres | fs | memory
		Source string `yaml:"source"`
		FSRoot string `yaml:"fs_root"`
		Cache  struct {
			// gocache | ristretto | none
			Driver string `yaml:"driver"`
			TTL    string `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"features"`

	Challenge struct {
		// postgres | redis | memory
		Backend string `yaml:"backend"`
	} `yaml:"challenge"`

	Limiter struct {
		// postgres | redis | memory
		Backend string `yaml:"backend"`
	} `yaml:"limiter"`

	// Rate acota requests HTTP por IP+ruta+client (no confundir con el limiter de intentos).
	Rate struct {
		Enabled bool `yaml:"enabled"`
		// redis | memory
		Backend  string `yaml:"backend"`
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
	} `yaml:"rate"`

	Audit struct {
		// log | amqp | both
		Sink string `yaml:"sink"`
		AMQP struct {
			URL        string `yaml:"url"`
			Exchange   string `yaml:"exchange"`
			RoutingKey string `yaml:"routing_key"`
			// espera mínima entre reintentos de conexión tras una caída
			ReconnectInterval string `yaml:"reconnect_interval"`
		} `yaml:"amqp"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.revealSecrets(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// fs_root relativo ⇒ relativo al directorio del YAML
	if p := strings.TrimSpace(c.Features.FSRoot); p != "" && path != "" && !filepath.IsAbs(p) {
		c.Features.FSRoot = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "trustcore"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Timeout == "" {
		c.Storage.Timeout = "2s"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "trustcore:"
	}
	if c.Features.Source == "" {
		c.Features.Source = c.Storage.Driver
	}
	if c.Features.FSRoot == "" {
		c.Features.FSRoot = "./data/tenants"
	}
	if c.Features.Cache.Driver == "" {
		c.Features.Cache.Driver = "gocache"
	}
	if c.Features.Cache.TTL == "" {
		c.Features.Cache.TTL = "5m"
	}
	if c.Challenge.Backend == "" {
		c.Challenge.Backend = c.Storage.Driver
	}
	if c.Limiter.Backend == "" {
		c.Limiter.Backend = c.Storage.Driver
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
		if c.Redis.Addr != "" {
			c.Rate.Backend = "redis"
		}
	}
	if c.Rate.Requests == 0 {
		c.Rate.Requests = 60
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "log"
	}
	if c.Audit.AMQP.Exchange == "" {
		c.Audit.AMQP.Exchange = "trustcore.audit"
	}
	if c.Audit.AMQP.RoutingKey == "" {
		c.Audit.AMQP.RoutingKey = "credential.verdict"
	}
	if c.Audit.AMQP.ReconnectInterval == "" {
		c.Audit.AMQP.ReconnectInterval = "5s"
	}
}

// revealSecrets descifra los valores "enc:..." con SECRETBOX_MASTER_KEY.
func (c *Config) revealSecrets() error {
	fields := map[string]*string{
		"storage.dsn":          &c.Storage.DSN,
		"redis.password":       &c.Redis.Password,
		"audit.amqp.url":       &c.Audit.AMQP.URL,
		"server.admin_api_key": &c.Server.AdminAPIKey,
	}
	for name, ptr := range fields {
		v, err := secretbox.Reveal(*ptr)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*ptr = v
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (string, bool) {
	if s, ok := getEnvStr(key); ok {
		s = strings.TrimSpace(s)
		if _, err := time.ParseDuration(s); err == nil {
			return s, true
		}
	}
	return "", false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Server.AdminAPIKey = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvDur("STORAGE_TIMEOUT"); ok {
		c.Storage.Timeout = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvDur("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// FEATURES
	if v, ok := getEnvStr("FEATURES_SOURCE"); ok {
		c.Features.Source = v
	}
	if v, ok := getEnvStr("FEATURES_FS_ROOT"); ok {
		c.Features.FSRoot = v
	}
	if v, ok := getEnvStr("FEATURES_CACHE_DRIVER"); ok {
		c.Features.Cache.Driver = v
	}
	if v, ok := getEnvDur("FEATURES_CACHE_TTL"); ok {
		c.Features.Cache.TTL = v
	}

	// BACKENDS
	if v, ok := getEnvStr("CHALLENGE_BACKEND"); ok {
		c.Challenge.Backend = v
	}
	if v, ok := getEnvStr("LIMITER_BACKEND"); ok {
		c.Limiter.Backend = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
	if v, ok := getEnvInt("RATE_REQUESTS"); ok {
		c.Rate.Requests = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	// AUDIT
	if v, ok := getEnvStr("AUDIT_SINK"); ok {
		c.Audit.Sink = v
	}
	if v, ok := getEnvStr("AUDIT_AMQP_URL"); ok {
		c.Audit.AMQP.URL = v
	}
	if v, ok := getEnvStr("AUDIT_AMQP_EXCHANGE"); ok {
		c.Audit.AMQP.Exchange = v
	}
	if v, ok := getEnvStr("AUDIT_AMQP_ROUTING_KEY"); ok {
		c.Audit.AMQP.RoutingKey = v
	}
	if v, ok := getEnvDur("AUDIT_AMQP_RECONNECT_INTERVAL"); ok {
		c.Audit.AMQP.ReconnectInterval = v
	}

	// METRICS / FLAGS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s=%q (esperado uno de %s)", field, v, strings.Join(allowed, ", "))
}

// Validate revisa enums, duraciones y dependencias entre secciones.
func (c *Config) Validate() error {
	var errs []error

	for field, v := range map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"storage.timeout":                    c.Storage.Timeout,
		"features.cache.ttl":                 c.Features.Cache.TTL,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"rate.window":                        c.Rate.Window,
		"audit.amqp.reconnect_interval":      c.Audit.AMQP.ReconnectInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", field, err))
		}
	}

	if err := oneOf("storage.driver", c.Storage.Driver, "postgres", "memory"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("features.source", c.Features.Source, "postgres", "fs", "memory"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("features.cache.driver", c.Features.Cache.Driver, "gocache", "ristretto", "none"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("challenge.backend", c.Challenge.Backend, "postgres", "redis", "memory"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("limiter.backend", c.Limiter.Backend, "postgres", "redis", "memory"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("audit.sink", c.Audit.Sink, "log", "amqp", "both"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("rate.backend", c.Rate.Backend, "redis", "memory"); err != nil {
		errs = append(errs, err)
	}
	if c.Rate.Enabled && c.Rate.Requests <= 0 {
		errs = append(errs, errors.New("config: rate.requests debe ser > 0"))
	}

	needsPG := c.Storage.Driver == "postgres" || c.Features.Source == "postgres" ||
		c.Challenge.Backend == "postgres" || c.Limiter.Backend == "postgres"
	if needsPG && strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("config: storage.dsn requerido para backends postgres"))
	}
	usesRedis := c.Challenge.Backend == "redis" || c.Limiter.Backend == "redis" ||
		(c.Rate.Enabled && c.Rate.Backend == "redis")
	if usesRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("config: redis.addr requerido para backends redis"))
	}
	if c.Audit.Sink != "log" && strings.TrimSpace(c.Audit.AMQP.URL) == "" {
		errs = append(errs, errors.New("config: audit.amqp.url requerido para sink amqp"))
	}
	if strings.EqualFold(c.App.Env, "prod") && c.Storage.Driver == "memory" {
		errs = append(errs, errors.New("config: storage.driver=memory no permitido en prod"))
	}

	return errors.Join(errs...)
}

// dur parsea una duración ya validada.
func dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) StorageTimeout() time.Duration     { return dur(c.Storage.Timeout) }
func (c *Config) FeatureCacheTTL() time.Duration    { return dur(c.Features.Cache.TTL) }
func (c *Config) ServerReadTimeout() time.Duration  { return dur(c.Server.ReadTimeout) }
func (c *Config) ServerWriteTimeout() time.Duration { return dur(c.Server.WriteTimeout) }
func (c *Config) ShutdownTimeout() time.Duration    { return dur(c.Server.ShutdownTimeout) }
func (c *Config) PGConnMaxLifetime() time.Duration  { return dur(c.Storage.Postgres.ConnMaxLifetime) }
func (c *Config) RateWindow() time.Duration         { return dur(c.Rate.Window) }
func (c *Config) AMQPReconnect() time.Duration      { return dur(c.Audit.AMQP.ReconnectInterval) }
func (c *Config) IsProd() bool                      { return strings.EqualFold(c.App.Env, "prod") }
