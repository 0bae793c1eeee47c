package ai

import (
	"context"
	"strings"
	"time"

	"ai-chat-backend/internal/domain/ports/adapter"
)

var _ adapter.AIProvider = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements the provider port for local/dev runs: it echoes a
// canned reply word by word instead of calling a real provider.
type NoopAIAdapter struct {
	Reply string
	Delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{
		Reply: "This is a canned development response.",
		Delay: 20 * time.Millisecond,
	}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-model"}, nil
}

// CountTokens approximates one token per whitespace-separated word.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model, text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (a *NoopAIAdapter) StreamChat(ctx context.Context, model string, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error) {
	fragments := 0
	for _, word := range strings.Fields(a.Reply) {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return fragments, ctx.Err()
		}
		if err := onFragment(word + " "); err != nil {
			return fragments, err
		}
		fragments++
	}
	return fragments, nil
}
