package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// RefreshTokens es la vista de refresh tokens en memoria.
type RefreshTokens struct {
	mu     sync.RWMutex
	tokens map[string]repository.RefreshToken // tenant + hash
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{tokens: make(map[string]repository.RefreshToken)}
}

// Add registra un token ya hasheado.
func (s *RefreshTokens) Add(t repository.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.TenantID+"\x00"+t.TokenHash] = t
}

func (s *RefreshTokens) GetByHash(_ context.Context, tenantID, tokenHash string) (*repository.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tenantID+"\x00"+tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

var _ repository.RefreshTokenRepository = (*RefreshTokens)(nil)
