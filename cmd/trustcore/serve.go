package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/trustcore/internal/app"
	httpserver "github.com/dropDatabas3/trustcore/internal/http"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

func serveCmd(load loader) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if migrate {
				cfg.Flags.Migrate = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Deps{Version: version})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.L().Warn("close failed", logger.Err(err))
				}
			}()

			return httpserver.Start(ctx, a.Handler, httpserver.ServerOptions{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.ServerReadTimeout(),
				WriteTimeout:    cfg.ServerWriteTimeout(),
				ShutdownTimeout: cfg.ShutdownTimeout(),
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Aplicar migraciones antes de servir")
	return cmd
}
