package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

type attemptEntry struct {
	rec       repository.AttemptRecord
	expiresAt time.Time
}

// Attempts es el contador del limitador en memoria.
type Attempts struct {
	mu   sync.Mutex
	recs map[repository.AttemptKey]attemptEntry
}

func NewAttempts() *Attempts {
	return &Attempts{recs: make(map[repository.AttemptKey]attemptEntry)}
}

func (s *Attempts) Get(_ context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.recs[key]
	if !ok || !now.Before(e.expiresAt) || !e.rec.Live(p, now) {
		return nil, repository.ErrNotFound
	}
	rec := e.rec
	return &rec, nil
}

func (s *Attempts) RegisterFailure(_ context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur repository.AttemptRecord
	if e, ok := s.recs[key]; ok && now.Before(e.expiresAt) {
		cur = e.rec
	}
	next := repository.ApplyFailure(cur, p, now)
	s.recs[key] = attemptEntry{rec: next, expiresAt: now.Add(repository.AttemptTTL(next, p, now))}
	return &next, nil
}

func (s *Attempts) ResetUnlessBlocked(_ context.Context, key repository.AttemptKey, now time.Time) (*repository.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.recs[key]; ok && e.rec.Blocked(now) {
		rec := e.rec
		return &rec, nil
	}
	delete(s.recs, key)
	return &repository.AttemptRecord{}, nil
}

var _ repository.AttemptRepository = (*Attempts)(nil)
