package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/trustcore/internal/app"
	"github.com/dropDatabas3/trustcore/internal/config"
	"github.com/dropDatabas3/trustcore/internal/store/pg"
)

func openPG(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, errors.New("storage.dsn requerido (env STORAGE_DSN)")
	}
	return pg.New(ctx, pg.Config{
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.PGConnMaxLifetime(),
	})
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres pendientes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			s, err := openPG(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := app.Migrate(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Printf("applied=%v skipped=%v duration=%s\n", res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}
}
