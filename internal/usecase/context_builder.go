// File: internal/usecase/context_builder.go
package usecase

import (
	"context"
	"fmt"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ ContextBuilder = (*contextBuilder)(nil)

// ContextBuilder assembles the provider-facing conversation window. It never
// mutates the store.
type ContextBuilder interface {
	// Build returns the system instruction, the most recent window of stored
	// turns mapped to the provider role vocabulary, and the new user turn
	// appended last.
	Build(ctx context.Context, chatID, newUserText string) ([]adapter.Turn, error)
}

type contextBuilder struct {
	chats        repository.ChatRepository
	window       int
	systemPrompt string
}

func NewContextBuilder(chats repository.ChatRepository, window int, systemPrompt string) *contextBuilder {
	if window <= 0 {
		window = 10
	}
	return &contextBuilder{chats: chats, window: window, systemPrompt: systemPrompt}
}

func (b *contextBuilder) Build(ctx context.Context, chatID, newUserText string) ([]adapter.Turn, error) {
	recent, err := b.chats.RecentMessages(ctx, nil, chatID, b.window)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	turns := make([]adapter.Turn, 0, len(recent)+2)
	if b.systemPrompt != "" {
		turns = append(turns, adapter.Turn{Role: adapter.RoleSystem, Content: b.systemPrompt})
	}
	for _, m := range recent {
		turns = append(turns, adapter.Turn{Role: providerRole(m.Role), Content: m.Content})
	}
	turns = append(turns, adapter.Turn{Role: adapter.RoleUser, Content: newUserText})
	return turns, nil
}

// providerRole maps stored roles to the provider vocabulary; stored
// assistant turns become "model".
func providerRole(stored string) string {
	switch stored {
	case model.RoleAssistant:
		return adapter.RoleModel
	case model.RoleSystem:
		return adapter.RoleSystem
	default:
		return adapter.RoleUser
	}
}
