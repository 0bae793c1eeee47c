package ai

import (
	"context"

	"ai-chat-backend/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIProvider = (*limitedAI)(nil)

// limitedAI caps concurrent provider calls with a semaphore.
type limitedAI struct {
	inner adapter.AIProvider
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.AIProvider, maxConcurrent int) adapter.AIProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) CountTokens(ctx context.Context, model, text string) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { <-l.sem }()
	return l.inner.CountTokens(ctx, model, text)
}

func (l *limitedAI) StreamChat(ctx context.Context, model string, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { <-l.sem }()
	return l.inner.StreamChat(ctx, model, turns, onFragment)
}
