package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// FeatureConfigs guarda documentos JSON por (tenant, feature).
type FeatureConfigs struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewFeatureConfigs() *FeatureConfigs {
	return &FeatureConfigs{docs: make(map[string][]byte)}
}

func featureKey(tenantID, key string) string { return tenantID + "\x00" + key }

// Put guarda el documento crudo.
func (s *FeatureConfigs) Put(tenantID, key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[featureKey(tenantID, key)] = append([]byte(nil), raw...)
}

// PutValue serializa v como JSON y lo guarda.
func (s *FeatureConfigs) PutValue(tenantID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Put(tenantID, key, raw)
	return nil
}

func (s *FeatureConfigs) Delete(tenantID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, featureKey(tenantID, key))
}

func (s *FeatureConfigs) GetConfig(_ context.Context, tenantID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[featureKey(tenantID, key)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

var _ repository.FeatureConfigRepository = (*FeatureConfigs)(nil)
