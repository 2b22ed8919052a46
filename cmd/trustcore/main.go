package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/trustcore/internal/config"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// version se setea con -ldflags "-X main.version=..."
var version = "dev"

type loader func() (*config.Config, error)

func main() {
	// .env es opcional
	_ = godotenv.Load()

	cfgPath := envOr("TRUSTCORE_CONFIG", "")

	root := &cobra.Command{
		Use:           "trustcore",
		Short:         "Núcleo de confianza de credenciales (biometría, intentos, configs por tenant)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Ruta al YAML de configuración (env TRUSTCORE_CONFIG)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: cfg.App.Name,
			Version:     version,
		})
		return cfg, nil
	}

	root.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		featureCmd(load),
		hashSecretCmd(),
		sealSecretCmd(),
		adminCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Imprime la versión",
			Run:   func(*cobra.Command, []string) { fmt.Println(version) },
		},
	)

	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
