package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/trustcore/internal/domain/repository"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

// Attempts guarda una fila por (tenant, tipo, hash del identificador).
// expires_at = max(fin de ventana, fin de bloqueo); una fila vencida equivale a no tener fila.
type Attempts struct{ pool *pgxpool.Pool }

var attemptTable = table[repository.AttemptRecord]{
	name:    "login_attempt",
	columns: []string{"attempt_count", "window_start", "blocked_until", "expires_at"},
	scan: func(row pgx.Row) (*repository.AttemptRecord, error) {
		var (
			rec       repository.AttemptRecord
			blocked   *time.Time
			expiresAt time.Time
		)
		if err := row.Scan(&rec.Count, &rec.WindowStart, &blocked, &expiresAt); err != nil {
			return nil, err
		}
		if blocked != nil {
			rec.BlockedUntil = blocked.UTC()
		}
		rec.WindowStart = rec.WindowStart.UTC()
		return &rec, nil
	},
}

const attemptPK = "tenant_id = $1 AND identifier_type = $2 AND identifier_hash = $3"

func attemptArgs(k repository.AttemptKey) []any {
	return []any{k.TenantID, k.Type, tokens.SHA256Base64URL(k.Identifier)}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *Attempts) Get(ctx context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	args := append(attemptArgs(key), now)
	rec, err := attemptTable.one(ctx, r.pool, attemptTable.selectWhere(attemptPK+" AND expires_at > $4"), args...)
	if err != nil {
		return nil, err
	}
	if !rec.Live(p, now) {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

// RegisterFailure: fila asegurada con INSERT … ON CONFLICT DO NOTHING, luego
// SELECT … FOR UPDATE, transición en Go y UPDATE, todo en una transacción.
func (r *Attempts) RegisterFailure(ctx context.Context, key repository.AttemptKey, p repository.AttemptPolicy, now time.Time) (*repository.AttemptRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	args := attemptArgs(key)
	const ensure = `
		INSERT INTO login_attempt (tenant_id, identifier_type, identifier_hash, attempt_count, window_start, blocked_until, expires_at)
		VALUES ($1, $2, $3, 0, $4, NULL, $4)
		ON CONFLICT (tenant_id, identifier_type, identifier_hash) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ensure, append(args, now)...); err != nil {
		return nil, err
	}

	var (
		cur       repository.AttemptRecord
		blocked   *time.Time
		expiresAt time.Time
	)
	err = tx.QueryRow(ctx, attemptTable.selectWhere(attemptPK)+" FOR UPDATE", args...).
		Scan(&cur.Count, &cur.WindowStart, &blocked, &expiresAt)
	if err != nil {
		return nil, err
	}
	if blocked != nil {
		cur.BlockedUntil = *blocked
	}
	if !now.Before(expiresAt) {
		cur = repository.AttemptRecord{}
	}

	next := repository.ApplyFailure(cur, p, now)
	const update = `
		UPDATE login_attempt
		SET attempt_count = $4, window_start = $5, blocked_until = $6, expires_at = $7
		WHERE ` + attemptPK
	_, err = tx.Exec(ctx, update, append(args,
		next.Count, next.WindowStart, nullTime(next.BlockedUntil), now.Add(repository.AttemptTTL(next, p, now)))...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	next.WindowStart = next.WindowStart.UTC()
	if !next.BlockedUntil.IsZero() {
		next.BlockedUntil = next.BlockedUntil.UTC()
	}
	return &next, nil
}

func (r *Attempts) ResetUnlessBlocked(ctx context.Context, key repository.AttemptKey, now time.Time) (*repository.AttemptRecord, error) {
	args := append(attemptArgs(key), now)
	const del = `DELETE FROM login_attempt WHERE ` + attemptPK + ` AND (blocked_until IS NULL OR blocked_until <= $4)`
	tag, err := r.pool.Exec(ctx, del, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() > 0 {
		return &repository.AttemptRecord{}, nil
	}
	rec, err := attemptTable.one(ctx, r.pool, attemptTable.selectWhere(attemptPK+" AND blocked_until > $4"), args...)
	if repository.IsNotFound(err) {
		return &repository.AttemptRecord{}, nil
	}
	return rec, err
}

var _ repository.AttemptRepository = (*Attempts)(nil)
