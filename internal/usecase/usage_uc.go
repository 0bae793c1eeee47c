// File: internal/usecase/usage_uc.go
package usecase

import (
	"context"
	"fmt"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ UsageUseCase = (*usageUC)(nil)

// UsageUseCase is the per-user token ledger. Quota is checked once at the
// start of an exchange and committed once at the end; two concurrent sends
// from the same user can both pass the check before either commits, so the
// limit can be overshot by one in-flight exchange.
type UsageUseCase interface {
	// HasQuota reports whether any token budget remains, lazily creating
	// the ledger row with the default limit.
	HasQuota(ctx context.Context, userID string) (bool, error)
	// Commit adds tokens to the ledger. No-op when tokens <= 0. The caller
	// logs a returned error instead of failing the delivered response.
	Commit(ctx context.Context, userID string, tokens int64) error
	Summary(ctx context.Context, userID string) (*model.UserUsage, error)
}

type usageUC struct {
	usage        repository.UsageRepository
	defaultLimit int64
}

func NewUsageUseCase(usage repository.UsageRepository, defaultLimit int64) *usageUC {
	return &usageUC{usage: usage, defaultLimit: defaultLimit}
}

func (u *usageUC) HasQuota(ctx context.Context, userID string) (bool, error) {
	row, err := u.usage.FindOrCreate(ctx, nil, userID, u.defaultLimit)
	if err != nil {
		return false, fmt.Errorf("usage lookup: %w", err)
	}
	return row.HasQuota(), nil
}

func (u *usageUC) Commit(ctx context.Context, userID string, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	if _, err := u.usage.FindOrCreate(ctx, nil, userID, u.defaultLimit); err != nil {
		return fmt.Errorf("usage init: %w", err)
	}
	if err := u.usage.AddTokens(ctx, nil, userID, tokens); err != nil {
		return fmt.Errorf("usage commit: %w", err)
	}
	return nil
}

func (u *usageUC) Summary(ctx context.Context, userID string) (*model.UserUsage, error) {
	return u.usage.FindOrCreate(ctx, nil, userID, u.defaultLimit)
}
