package errors

import (
	"context"
	stderrors "errors"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// FromStore clasifica un error de la capa de persistencia.
//
//   - repository.ErrConflict        → ErrConflict (reintentable)
//   - timeout / cancelación / driver → ErrInternal (reintentable)
//
// ErrNotFound no se mapea acá: cada caller decide qué significa "no existe".
func FromStore(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, repository.ErrConflict) {
		return ErrConflict.WithCause(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrInternal.WithDetail("store timeout").WithCause(err)
	}
	return ErrInternal.WithCause(err)
}
