// File: internal/infra/db/postgres/postgres_chat_repo_cache.go
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
	"ai-chat-backend/internal/infra/metrics"
	red "ai-chat-backend/internal/infra/redis"
)

var _ repository.ChatRepository = (*chatRepoCacheDecorator)(nil)

// chatRepoCacheDecorator keeps a best-effort Redis copy of a chat's complete
// message list. Every write to a chat's messages invalidates its entry,
// including the token back-fill, which rewrites a row that a concurrent read
// may already have re-cached. A miss or a Redis outage just falls through
// to Postgres.
type chatRepoCacheDecorator struct {
	inner repository.ChatRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewChatRepoCacheDecorator(inner repository.ChatRepository, cache red.RedisClient, ttl time.Duration) repository.ChatRepository {
	return &chatRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

type cachedMessages struct {
	Messages []*model.Message `json:"messages"`
	Total    int              `json:"total"`
}

func chatDetailKey(chatID string) string { return "chat_detail:" + chatID }

func (d *chatRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, chat *model.Chat) error {
	return d.inner.Create(ctx, tx, chat)
}

func (d *chatRepoCacheDecorator) CountActive(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	return d.inner.CountActive(ctx, tx, userID)
}

func (d *chatRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Chat, int, error) {
	return d.inner.ListActive(ctx, tx, userID, limit, offset)
}

// FindOwned always hits the store: a cached chat could have been deactivated
// between listing and sending.
func (d *chatRepoCacheDecorator) FindOwned(ctx context.Context, tx repository.Tx, chatID, userID string) (*model.Chat, error) {
	return d.inner.FindOwned(ctx, tx, chatID, userID)
}

func (d *chatRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, chatID string) error {
	if err := d.inner.Deactivate(ctx, tx, chatID); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, chatDetailKey(chatID))
	return nil
}

func (d *chatRepoCacheDecorator) AppendMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	if err := d.inner.AppendMessage(ctx, tx, msg); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, chatDetailKey(msg.ChatID))
	return nil
}

func (d *chatRepoCacheDecorator) ListMessages(ctx context.Context, tx repository.Tx, chatID string, limit, offset int) ([]*model.Message, int, error) {
	// Only complete conversations are cached, so any page can be cut from
	// the cached list. Transactional reads always hit the database.
	if tx == nil {
		if msgs, total, ok := d.lookup(ctx, chatID); ok {
			return pageOf(msgs, limit, offset), total, nil
		}
	}

	msgs, total, err := d.inner.ListMessages(ctx, tx, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if tx == nil && offset == 0 && len(msgs) == total {
		if data, err := json.Marshal(cachedMessages{Messages: msgs, Total: total}); err == nil {
			_ = d.cache.Set(ctx, chatDetailKey(chatID), data, d.ttl)
		}
	}
	return msgs, total, nil
}

func (d *chatRepoCacheDecorator) lookup(ctx context.Context, chatID string) ([]*model.Message, int, bool) {
	val, err := d.cache.Get(ctx, chatDetailKey(chatID))
	if err != nil {
		// Only a real miss is counted; an outage is not a miss.
		if red.Nil(err) {
			metrics.ChatCacheMiss()
		}
		return nil, 0, false
	}
	var cached cachedMessages
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		metrics.ChatCacheMiss()
		return nil, 0, false
	}
	if len(cached.Messages) != cached.Total {
		metrics.ChatCacheMiss()
		return nil, 0, false
	}
	metrics.ChatCacheHit()
	return cached.Messages, cached.Total, true
}

func pageOf(msgs []*model.Message, limit, offset int) []*model.Message {
	if offset >= len(msgs) {
		return nil
	}
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs
}

// RecentMessages feeds context assembly on the send path and always reads the
// store, so a fresh user turn is never missing from the prompt.
func (d *chatRepoCacheDecorator) RecentMessages(ctx context.Context, tx repository.Tx, chatID string, n int) ([]*model.Message, error) {
	return d.inner.RecentMessages(ctx, tx, chatID, n)
}

func (d *chatRepoCacheDecorator) UpdateMessageTokens(ctx context.Context, tx repository.Tx, chatID, messageID string, tokens int) error {
	if err := d.inner.UpdateMessageTokens(ctx, tx, chatID, messageID, tokens); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, chatDetailKey(chatID))
	return nil
}
