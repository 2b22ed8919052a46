// Package fs implementa la fuente de feature configs sobre archivos YAML.
//
// Un archivo por tenant, <root>/<tenant>.yaml:
//
//	features:
//	  password_pin_block:
//	    attempts_allowed: 3
//	    attempts_window_seconds: 60
//	    block_interval_seconds: 300
//	  biometric:
//	    challenge_ttl_seconds: 120
//
// Cada sección se entrega como JSON al Registry, que valida y aplica defaults.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	"github.com/dropDatabas3/trustcore/internal/util"
	"github.com/dropDatabas3/trustcore/internal/validation"
)

type tenantFile struct {
	Features map[string]any `yaml:"features"`
}

// FeatureConfigs lee <root>/<tenant>.yaml en cada carga; el cache vive en el Registry.
type FeatureConfigs struct {
	root string
	mu   sync.Mutex // serializa PutConfig dentro del proceso
}

func NewFeatureConfigs(root string) (*FeatureConfigs, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("fs: root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fs: root path is not a directory: %s", root)
	}
	return &FeatureConfigs{root: root}, nil
}

func (s *FeatureConfigs) path(tenantID string) string {
	return filepath.Join(s.root, tenantID+".yaml")
}

func (s *FeatureConfigs) GetConfig(ctx context.Context, tenantID, key string) ([]byte, error) {
	if !validation.ValidTenantID(tenantID) {
		return nil, repository.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(tenantID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var tf tenantFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("fs: parse %s.yaml: %w", tenantID, err)
	}
	section, ok := tf.Features[key]
	if !ok || section == nil {
		return nil, repository.ErrNotFound
	}
	return json.Marshal(section)
}

// PutConfig reemplaza la sección key del archivo del tenant (lo crea si no
// existe). Las demás secciones quedan intactas.
func (s *FeatureConfigs) PutConfig(ctx context.Context, tenantID, key string, raw []byte) error {
	if !validation.ValidTenantID(tenantID) {
		return repository.ErrInvalidInput
	}
	var section any
	if err := json.Unmarshal(raw, &section); err != nil {
		return fmt.Errorf("fs: %w: %v", repository.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tf tenantFile
	b, err := os.ReadFile(s.path(tenantID))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := yaml.Unmarshal(b, &tf); err != nil {
			return fmt.Errorf("fs: parse %s.yaml: %w", tenantID, err)
		}
	}
	if tf.Features == nil {
		tf.Features = map[string]any{}
	}
	tf.Features[key] = section

	out, err := yaml.Marshal(tf)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(s.path(tenantID), out, 0o644)
}

var _ repository.FeatureConfigRepository = (*FeatureConfigs)(nil)
