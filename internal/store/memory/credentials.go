package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

type credKey struct{ tenant, id string }

// Credentials es el CredentialRepository en memoria.
type Credentials struct {
	mu    sync.Mutex
	creds map[credKey]repository.Credential
}

func NewCredentials() *Credentials {
	return &Credentials{creds: make(map[credKey]repository.Credential)}
}

func (s *Credentials) Create(_ context.Context, c repository.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := credKey{c.TenantID, c.CredentialID}
	if _, ok := s.creds[k]; ok {
		return repository.ErrConflict
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.creds[k] = c
	return nil
}

func (s *Credentials) Get(_ context.Context, tenantID, credentialID string) (*repository.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[credKey{tenantID, credentialID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Credentials) FindActiveByDevice(_ context.Context, tenantID, userID, deviceID string) (*repository.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *repository.Credential
	for k, c := range s.creds {
		if k.tenant != tenantID || c.UserID != userID || c.DeviceID != deviceID || !c.IsActive {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			c := c
			best = &c
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (s *Credentials) CompareAndSetSignCount(_ context.Context, tenantID, credentialID string, expected, next uint64, usedAt time.Time) (*repository.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := credKey{tenantID, credentialID}
	c, ok := s.creds[k]
	if !ok || !c.IsActive || c.SignCount != expected {
		return nil, repository.ErrConflict
	}
	c.SignCount = next
	c.FirstUseComplete = true
	c.UpdatedAt = usedAt
	c.LastUsedAt = &usedAt
	s.creds[k] = c
	return &c, nil
}

func (s *Credentials) Revoke(_ context.Context, tenantID, credentialID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := credKey{tenantID, credentialID}
	c, ok := s.creds[k]
	if !ok {
		return repository.ErrNotFound
	}
	if c.IsActive {
		c.IsActive = false
		c.UpdatedAt = at
		s.creds[k] = c
	}
	return nil
}

var _ repository.CredentialRepository = (*Credentials)(nil)
