package repository

import (
	"context"

	"ai-chat-backend/internal/domain/model"
)

// UsageRepository persists the per-user token ledger.
type UsageRepository interface {
	// FindOrCreate returns the ledger row for userID, inserting one with
	// zero usage and defaultLimit when none exists.
	FindOrCreate(ctx context.Context, tx Tx, userID string, defaultLimit int64) (*model.UserUsage, error)
	// AddTokens increments the cumulative counter atomically.
	AddTokens(ctx context.Context, tx Tx, userID string, tokens int64) error
}
