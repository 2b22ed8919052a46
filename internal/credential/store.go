package credential

import (
	"context"
	"time"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	apperrors "github.com/dropDatabas3/trustcore/internal/errors"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

type Credential = repository.Credential

// Store envuelve el CredentialRepository con timeout por llamada y mapeo de
// errores al set de dominio.
type Store struct {
	repo    repository.CredentialRepository
	timeout time.Duration
	now     func() time.Time
}

func NewStore(repo repository.CredentialRepository, timeout time.Duration, now func() time.Time) *Store {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, timeout: timeout, now: now}
}

// Get devuelve la credencial tal cual está (activa o no).
func (s *Store) Get(ctx context.Context, tenantID, credentialID string) (*Credential, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.Get(cctx, tenantID, credentialID)
	if repository.IsNotFound(err) {
		return nil, apperrors.ErrCredentialNotFound
	}
	if err != nil {
		return nil, s.storeErr(ctx, "get", tenantID, err)
	}
	return c, nil
}

// ActiveForDevice: nil, nil si el device no tiene credencial activa.
func (s *Store) ActiveForDevice(ctx context.Context, tenantID, userID, deviceID string) (*Credential, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.FindActiveByDevice(cctx, tenantID, userID, deviceID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeErr(ctx, "find_active_by_device", tenantID, err)
	}
	return c, nil
}

func (s *Store) create(ctx context.Context, c Credential) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.repo.Create(cctx, c)
	if repository.IsConflict(err) {
		return apperrors.ErrCredentialAlreadyExists
	}
	if err != nil {
		return s.storeErr(ctx, "create", c.TenantID, err)
	}
	return nil
}

func (s *Store) compareAndSet(ctx context.Context, tenantID, credentialID string, expected, next uint64) (*Credential, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.CompareAndSetSignCount(cctx, tenantID, credentialID, expected, next, s.now().UTC())
	if err != nil {
		if repository.IsConflict(err) {
			return nil, err
		}
		return nil, s.storeErr(ctx, "compare_and_set", tenantID, err)
	}
	return c, nil
}

// Revoke desactiva la credencial. Idempotente; nunca reactiva.
func (s *Store) Revoke(ctx context.Context, tenantID, credentialID string) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.repo.Revoke(cctx, tenantID, credentialID, s.now().UTC())
	if repository.IsNotFound(err) {
		return apperrors.ErrCredentialNotFound
	}
	if err != nil {
		return s.storeErr(ctx, "revoke", tenantID, err)
	}
	logger.From(ctx).Info("credential revoked",
		logger.TenantID(tenantID), logger.CredentialID(credentialID))
	return nil
}

func (s *Store) storeErr(ctx context.Context, op, tenantID string, err error) error {
	logger.From(ctx).Error("credential store failed",
		logger.Component("credential"), logger.Op(op), logger.TenantID(tenantID), logger.Err(err))
	return apperrors.FromStore(err)
}
