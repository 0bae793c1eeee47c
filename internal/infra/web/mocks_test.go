package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// stubChatUC lets each test script exactly the behavior it needs.
type stubChatUC struct {
	createFn func(ctx context.Context, userID, title string) (*model.Chat, error)
	listFn   func(ctx context.Context, userID string, limit, offset int) ([]*model.Chat, int, error)
	getFn    func(ctx context.Context, chatID, userID string, limit, offset int) (*model.Chat, []*model.Message, int, error)
	deleteFn func(ctx context.Context, chatID, userID string) (time.Time, error)
}

var _ usecase.ChatUseCase = (*stubChatUC)(nil)

func (s *stubChatUC) CreateChat(ctx context.Context, userID, title string) (*model.Chat, error) {
	return s.createFn(ctx, userID, title)
}

func (s *stubChatUC) ListChats(ctx context.Context, userID string, limit, offset int) ([]*model.Chat, int, error) {
	return s.listFn(ctx, userID, limit, offset)
}

func (s *stubChatUC) GetChat(ctx context.Context, chatID, userID string, limit, offset int) (*model.Chat, []*model.Message, int, error) {
	return s.getFn(ctx, chatID, userID, limit, offset)
}

func (s *stubChatUC) DeleteChat(ctx context.Context, chatID, userID string) (time.Time, error) {
	return s.deleteFn(ctx, chatID, userID)
}

type stubStreamUC struct {
	sendFn func(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error)
}

var _ usecase.StreamUseCase = (*stubStreamUC)(nil)

func (s *stubStreamUC) SendMessage(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error) {
	return s.sendFn(ctx, userID, chatID, text, onFragment)
}

type stubUsageUC struct {
	summaryFn func(ctx context.Context, userID string) (*model.UserUsage, error)
}

var _ usecase.UsageUseCase = (*stubUsageUC)(nil)

func (s *stubUsageUC) HasQuota(ctx context.Context, userID string) (bool, error) { return true, nil }

func (s *stubUsageUC) Commit(ctx context.Context, userID string, tokens int64) error { return nil }

func (s *stubUsageUC) Summary(ctx context.Context, userID string) (*model.UserUsage, error) {
	return s.summaryFn(ctx, userID)
}

type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.calls++
	return s.allow, s.err
}
