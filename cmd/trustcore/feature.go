package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/trustcore/internal/config"
	fsstore "github.com/dropDatabas3/trustcore/internal/store/fs"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

// featureCmd escribe configs de features en la fuente configurada
// (features.source postgres o fs). Después de un put, las instancias en
// marcha ven el cambio al expirar su cache o vía `admin invalidate`.
func featureCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "feature",
		Short: "Gestión de configs de features por tenant",
	}

	var tenant, key, file string
	put := &cobra.Command{
		Use:   "put",
		Short: "Valida y guarda el config de una feature (JSON o YAML)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenant == "" || key == "" || file == "" {
				return errors.New("--tenant, --key y --file son requeridos")
			}
			fk, ok := tenantconfig.ParseKey(key)
			if !ok {
				return fmt.Errorf("feature desconocida %q", key)
			}
			raw, err := readConfigFile(file)
			if err != nil {
				return err
			}
			if err := tenantconfig.Validate(fk, raw); err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			if err := putFeature(cmd.Context(), cfg, tenant, fk, raw); err != nil {
				return err
			}
			fmt.Printf("ok tenant=%s feature=%s\n", tenant, fk)
			return nil
		},
	}
	put.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	put.Flags().StringVar(&key, "key", "", "Feature: "+keyList())
	put.Flags().StringVar(&file, "file", "", "Archivo .json/.yaml con el config")

	root.AddCommand(put)
	return root
}

func putFeature(ctx context.Context, cfg *config.Config, tenant string, key tenantconfig.FeatureKey, raw []byte) error {
	switch cfg.Features.Source {
	case "postgres":
		s, err := openPG(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.FeatureConfigs().PutConfig(ctx, tenant, string(key), raw)
	case "fs":
		s, err := fsstore.NewFeatureConfigs(cfg.Features.FSRoot)
		if err != nil {
			return err
		}
		return s.PutConfig(ctx, tenant, string(key), raw)
	default:
		return fmt.Errorf("features.source=%s no es persistente", cfg.Features.Source)
	}
}

// readConfigFile devuelve el contenido como JSON; YAML se convierte.
func readConfigFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v map[string]any
		if err := yaml.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		return json.Marshal(v)
	default:
		if !json.Valid(b) {
			return nil, errors.New("json inválido")
		}
		return b, nil
	}
}

func keyList() string {
	ks := make([]string, 0, len(tenantconfig.Keys))
	for _, k := range tenantconfig.Keys {
		ks = append(ks, string(k))
	}
	return strings.Join(ks, "|")
}
