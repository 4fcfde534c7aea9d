package quota

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB       *sql.DB
	defaults Defaults
}

// NewPGStore constructs a Postgres-backed quota store.
func NewPGStore(db *sql.DB, defaults Defaults) *pgStore {
	return &pgStore{DB: db, defaults: defaults.normalized()}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Quota, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) EnsurePeriod(ctx context.Context, userID string) (Quota, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) ensure(ctx context.Context, userID string) (Quota, error) {
	now := time.Now().UTC()
	seed := s.defaults.newQuota(now)

	const upsert = `
INSERT INTO quotas (user_id, plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at)
VALUES ($1, $2, $3, 0, $4, 0, $5)
ON CONFLICT (user_id) DO UPDATE SET
    docs_used = CASE WHEN quotas.resets_at <= $6 THEN 0 ELSE quotas.docs_used END,
    bytes_used = CASE WHEN quotas.resets_at <= $6 THEN 0 ELSE quotas.bytes_used END,
    resets_at = CASE WHEN quotas.resets_at <= $6 THEN $5 ELSE quotas.resets_at END
RETURNING plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at`

	var q Quota
	err := s.DB.QueryRowContext(ctx, upsert, userID, seed.Plan, seed.DocLimit, seed.BytesLimit, seed.ResetsAt, now).
		Scan(&q.Plan, &q.DocLimit, &q.DocsUsed, &q.BytesLimit, &q.BytesUsed, &q.ResetsAt)
	if err != nil {
		return Quota{}, err
	}
	return q, nil
}

func (s *pgStore) Consume(ctx context.Context, userID string, docs int, bytes int64) (Quota, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Quota{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	q, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Quota{}, err
	}

	if q.DocsUsed+docs > q.DocLimit || (bytes > 0 && q.BytesUsed+bytes > q.BytesLimit) {
		err = ErrLimitReached
		return Quota{}, err
	}
	q.DocsUsed += docs
	q.BytesUsed += bytes
	if _, err = tx.ExecContext(ctx, `
UPDATE quotas SET docs_used = $1, bytes_used = $2 WHERE user_id = $3`, q.DocsUsed, q.BytesUsed, userID); err != nil {
		return Quota{}, err
	}
	if err = tx.Commit(); err != nil {
		return Quota{}, err
	}
	return q, nil
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string) (Quota, error) {
	now := time.Now().UTC()

	var q Quota
	err := tx.QueryRowContext(ctx, `
SELECT plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at
FROM quotas WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&q.Plan, &q.DocLimit, &q.DocsUsed, &q.BytesLimit, &q.BytesUsed, &q.ResetsAt)
	if errors.Is(err, sql.ErrNoRows) {
		q = s.defaults.newQuota(now)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO quotas (user_id, plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at)
VALUES ($1, $2, $3, 0, $4, 0, $5)`, userID, q.Plan, q.DocLimit, q.BytesLimit, q.ResetsAt); err != nil {
			return Quota{}, err
		}
		return q, nil
	}
	if err != nil {
		return Quota{}, err
	}
	if !now.Before(q.ResetsAt) {
		q.DocsUsed = 0
		q.BytesUsed = 0
		q.ResetsAt = nextPeriod(now)
		if _, err := tx.ExecContext(ctx, `
UPDATE quotas SET docs_used = 0, bytes_used = 0, resets_at = $1 WHERE user_id = $2`, q.ResetsAt, userID); err != nil {
			return Quota{}, err
		}
	}
	return q, nil
}

func (s *pgStore) Reset(ctx context.Context, userID string) (Quota, error) {
	now := time.Now().UTC()
	seed := s.defaults.newQuota(now)

	const query = `
INSERT INTO quotas (user_id, plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at)
VALUES ($1, $2, $3, 0, $4, 0, $5)
ON CONFLICT (user_id) DO UPDATE SET docs_used = 0, bytes_used = 0, resets_at = EXCLUDED.resets_at
RETURNING plan, doc_limit, docs_used, bytes_limit, bytes_used, resets_at`

	var q Quota
	err := s.DB.QueryRowContext(ctx, query, userID, seed.Plan, seed.DocLimit, seed.BytesLimit, seed.ResetsAt).
		Scan(&q.Plan, &q.DocLimit, &q.DocsUsed, &q.BytesLimit, &q.BytesUsed, &q.ResetsAt)
	if err != nil {
		return Quota{}, err
	}
	return q, nil
}
