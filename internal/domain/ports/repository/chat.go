package repository

import (
	"context"

	"ai-chat-backend/internal/domain/model"
)

// ChatRepository is durable storage for chats and their messages.
//
// Ownership checks live here: FindOwned treats an inactive chat exactly like
// an absent one (domain.ErrNotFound) and a foreign chat as domain.ErrForbidden,
// so callers cannot distinguish deleted from never-existing.
type ChatRepository interface {
	Create(ctx context.Context, tx Tx, chat *model.Chat) error
	CountActive(ctx context.Context, tx Tx, userID string) (int, error)
	// ListActive returns active chats newest first plus the total active
	// count irrespective of pagination.
	ListActive(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.Chat, int, error)
	FindOwned(ctx context.Context, tx Tx, chatID, userID string) (*model.Chat, error)
	// Deactivate is an idempotent soft delete.
	Deactivate(ctx context.Context, tx Tx, chatID string) error

	// AppendMessage is append-only; existing rows are never rewritten except
	// via UpdateMessageTokens.
	AppendMessage(ctx context.Context, tx Tx, msg *model.Message) error
	// ListMessages returns messages oldest first plus the total count.
	ListMessages(ctx context.Context, tx Tx, chatID string, limit, offset int) ([]*model.Message, int, error)
	// RecentMessages returns the newest n messages in conversational
	// (oldest-first) order, for context assembly.
	RecentMessages(ctx context.Context, tx Tx, chatID string, n int) ([]*model.Message, error)
	// UpdateMessageTokens back-fills the consumed-token count on one row.
	// The chat id scopes the update and lets caching layers drop the chat's
	// entry, which a read may have repopulated since the row was appended.
	UpdateMessageTokens(ctx context.Context, tx Tx, chatID, messageID string, tokens int) error
}
