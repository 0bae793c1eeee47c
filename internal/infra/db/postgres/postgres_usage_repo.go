// File: internal/infra/db/postgres/postgres_usage_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*UsageRepo)(nil)

// UsageRepo persists the per-user token ledger.
type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) FindOrCreate(ctx context.Context, tx repository.Tx, userID string, defaultLimit int64) (*model.UserUsage, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	// Lazy init: insert the zero row if missing, then read. The upsert keeps
	// concurrent first references from racing.
	const ins = `
INSERT INTO user_usage (user_id, tokens_used, token_limit, last_reset_at)
VALUES ($1, 0, $2, NOW())
ON CONFLICT (user_id) DO NOTHING;`
	if _, err := ex.Exec(ctx, ins, userID, defaultLimit); err != nil {
		return nil, fmt.Errorf("init usage: %w", err)
	}

	const q = `SELECT user_id, tokens_used, token_limit, last_reset_at FROM user_usage WHERE user_id=$1;`
	var u model.UserUsage
	if err := ex.QueryRow(ctx, q, userID).Scan(&u.UserID, &u.TokensUsed, &u.TokenLimit, &u.LastResetAt); err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	return &u, nil
}

func (r *UsageRepo) AddTokens(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `UPDATE user_usage SET tokens_used = tokens_used + $2 WHERE user_id=$1;`
	tag, err := ex.Exec(ctx, q, userID, tokens)
	if err != nil {
		return fmt.Errorf("add tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
