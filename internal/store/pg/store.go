// Package pg implementa los repositorios sobre PostgreSQL (pgxpool).
//
// Las mutaciones concurrentes se resuelven en la base: upserts, DELETE … RETURNING,
// UPDATE condicional (compare-and-set) o una transacción de una sola fila con
// SELECT … FOR UPDATE. Nunca read-modify-write en dos round trips sueltos.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno para usos avanzados (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Ping verifica la conexión (readiness).
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) FeatureConfigs() *FeatureConfigs { return &FeatureConfigs{pool: s.pool} }
func (s *Store) Attempts() *Attempts             { return &Attempts{pool: s.pool} }
func (s *Store) Challenges() *Challenges         { return &Challenges{pool: s.pool} }
func (s *Store) Credentials() *Credentials       { return &Credentials{pool: s.pool} }
func (s *Store) RefreshTokens() *RefreshTokens   { return &RefreshTokens{pool: s.pool} }
