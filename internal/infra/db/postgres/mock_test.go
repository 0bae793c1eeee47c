//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
	red "ai-chat-backend/internal/infra/redis"
)

// mockInnerChatRepo mocks the database repository the cache decorator wraps.
type mockInnerChatRepo struct {
	CreateFunc              func(ctx context.Context, tx repository.Tx, chat *model.Chat) error
	CountActiveFunc         func(ctx context.Context, tx repository.Tx, userID string) (int, error)
	ListActiveFunc          func(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Chat, int, error)
	FindOwnedFunc           func(ctx context.Context, tx repository.Tx, chatID, userID string) (*model.Chat, error)
	DeactivateFunc          func(ctx context.Context, tx repository.Tx, chatID string) error
	AppendMessageFunc       func(ctx context.Context, tx repository.Tx, msg *model.Message) error
	ListMessagesFunc        func(ctx context.Context, tx repository.Tx, chatID string, limit, offset int) ([]*model.Message, int, error)
	RecentMessagesFunc      func(ctx context.Context, tx repository.Tx, chatID string, n int) ([]*model.Message, error)
	UpdateMessageTokensFunc func(ctx context.Context, tx repository.Tx, chatID, messageID string, tokens int) error
}

var _ repository.ChatRepository = &mockInnerChatRepo{}

func (m *mockInnerChatRepo) Create(ctx context.Context, tx repository.Tx, chat *model.Chat) error {
	return m.CreateFunc(ctx, tx, chat)
}
func (m *mockInnerChatRepo) CountActive(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	return m.CountActiveFunc(ctx, tx, userID)
}
func (m *mockInnerChatRepo) ListActive(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Chat, int, error) {
	return m.ListActiveFunc(ctx, tx, userID, limit, offset)
}
func (m *mockInnerChatRepo) FindOwned(ctx context.Context, tx repository.Tx, chatID, userID string) (*model.Chat, error) {
	return m.FindOwnedFunc(ctx, tx, chatID, userID)
}
func (m *mockInnerChatRepo) Deactivate(ctx context.Context, tx repository.Tx, chatID string) error {
	return m.DeactivateFunc(ctx, tx, chatID)
}
func (m *mockInnerChatRepo) AppendMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	return m.AppendMessageFunc(ctx, tx, msg)
}
func (m *mockInnerChatRepo) ListMessages(ctx context.Context, tx repository.Tx, chatID string, limit, offset int) ([]*model.Message, int, error) {
	return m.ListMessagesFunc(ctx, tx, chatID, limit, offset)
}
func (m *mockInnerChatRepo) RecentMessages(ctx context.Context, tx repository.Tx, chatID string, n int) ([]*model.Message, error) {
	return m.RecentMessagesFunc(ctx, tx, chatID, n)
}
func (m *mockInnerChatRepo) UpdateMessageTokens(ctx context.Context, tx repository.Tx, chatID, messageID string, tokens int) error {
	return m.UpdateMessageTokensFunc(ctx, tx, chatID, messageID, tokens)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// fakeRedisStore is an in-memory key space for tests that exercise a full
// cache round trip rather than a single call.
func fakeRedisStore() (*mockRedisClient, map[string]string) {
	store := make(map[string]string)
	cli := &mockRedisClient{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			v, ok := store[key]
			if !ok {
				return "", redis.Nil
			}
			return v, nil
		},
		SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
			switch v := value.(type) {
			case []byte:
				store[key] = string(v)
			case string:
				store[key] = v
			}
			return nil
		},
		DelFunc: func(ctx context.Context, keys ...string) error {
			for _, k := range keys {
				delete(store, k)
			}
			return nil
		},
	}
	return cli, store
}
