// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	CreateChat(ctx context.Context, userID, title string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string, limit, offset int) ([]*model.Chat, int, error)
	GetChat(ctx context.Context, chatID, userID string, limit, offset int) (*model.Chat, []*model.Message, int, error)
	DeleteChat(ctx context.Context, chatID, userID string) (time.Time, error)
}

type chatUC struct {
	chats          repository.ChatRepository
	tm             repository.TransactionManager
	maxActiveChats int
}

func NewChatUseCase(chats repository.ChatRepository, tm repository.TransactionManager, maxActiveChats int) *chatUC {
	if maxActiveChats <= 0 {
		maxActiveChats = 5
	}
	return &chatUC{chats: chats, tm: tm, maxActiveChats: maxActiveChats}
}

func (c *chatUC) CreateChat(ctx context.Context, userID, title string) (*model.Chat, error) {
	chat, err := model.NewChat(userID, title)
	if err != nil {
		return nil, err
	}

	// Count and insert in one serializable transaction so two racing
	// creations cannot both slip under the cap.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err = c.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		active, err := c.chats.CountActive(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("count active chats: %w", err)
		}
		// Creation beyond the cap is rejected, not queued.
		if active >= c.maxActiveChats {
			return domain.ErrChatQuotaExceeded
		}
		if err := c.chats.Create(ctx, tx, chat); err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (c *chatUC) ListChats(ctx context.Context, userID string, limit, offset int) ([]*model.Chat, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return c.chats.ListActive(ctx, nil, userID, limit, offset)
}

func (c *chatUC) GetChat(ctx context.Context, chatID, userID string, limit, offset int) (*model.Chat, []*model.Message, int, error) {
	// Re-validate ownership on every read; chats can be deactivated between
	// a listing call and this one.
	chat, err := c.chats.FindOwned(ctx, nil, chatID, userID)
	if err != nil {
		return nil, nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	msgs, total, err := c.chats.ListMessages(ctx, nil, chatID, limit, offset)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("list messages: %w", err)
	}
	return chat, msgs, total, nil
}

func (c *chatUC) DeleteChat(ctx context.Context, chatID, userID string) (time.Time, error) {
	if _, err := c.chats.FindOwned(ctx, nil, chatID, userID); err != nil {
		return time.Time{}, err
	}
	if err := c.chats.Deactivate(ctx, nil, chatID); err != nil {
		return time.Time{}, fmt.Errorf("deactivate chat: %w", err)
	}
	return time.Now(), nil
}
