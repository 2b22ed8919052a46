package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
)

// querier lo cumplen *pgxpool.Pool y pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// table describe el mapeo fila ↔ struct como datos: nombre, columnas y scan.
// Los repos arman su SQL con estas piezas en lugar de heredar un DAO genérico.
type table[T any] struct {
	name    string
	columns []string
	scan    func(row pgx.Row) (*T, error)
}

func (t table[T]) cols() string { return strings.Join(t.columns, ", ") }

// selectWhere arma "SELECT <cols> FROM <name> WHERE <cond>".
func (t table[T]) selectWhere(cond string) string {
	return "SELECT " + t.cols() + " FROM " + t.name + " WHERE " + cond
}

// one ejecuta la query y mapea pgx.ErrNoRows → repository.ErrNotFound.
func (t table[T]) one(ctx context.Context, q querier, sql string, args ...any) (*T, error) {
	v, err := t.scan(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

const uniqueViolation = "23505"

// mapErr traduce violaciones de unicidad a repository.ErrConflict.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}
