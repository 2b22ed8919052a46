package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

type liveKey struct{ tenant, client, user, device string }
type stateKey struct{ tenant, client, state string }

// Challenges guarda challenges con índice por state y por clave viva.
type Challenges struct {
	mu      sync.Mutex
	byState map[stateKey]repository.Challenge
	live    map[liveKey]string // → state
}

func NewChallenges() *Challenges {
	return &Challenges{
		byState: make(map[stateKey]repository.Challenge),
		live:    make(map[liveKey]string),
	}
}

func (s *Challenges) Put(_ context.Context, ch repository.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk := liveKey{ch.TenantID, ch.ClientID, ch.UserID, ch.Device.DeviceID}
	if prev, ok := s.live[lk]; ok {
		delete(s.byState, stateKey{ch.TenantID, ch.ClientID, prev})
	}
	s.live[lk] = ch.State
	s.byState[stateKey{ch.TenantID, ch.ClientID, ch.State}] = ch
	return nil
}

func (s *Challenges) Take(_ context.Context, tenantID, clientID, state string) (*repository.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := stateKey{tenantID, clientID, state}
	ch, ok := s.byState[sk]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.byState, sk)
	lk := liveKey{ch.TenantID, ch.ClientID, ch.UserID, ch.Device.DeviceID}
	if s.live[lk] == state {
		delete(s.live, lk)
	}
	return &ch, nil
}

var _ repository.ChallengeRepository = (*Challenges)(nil)
