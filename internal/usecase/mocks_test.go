// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memChatRepo is a small in-memory implementation used by unit tests.
type memChatRepo struct {
	mu       sync.Mutex
	chats    map[string]*model.Chat
	messages map[string][]*model.Message // chatID -> append order

	createErr error
	appendErr error
	recentErr error
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{
		chats:    map[string]*model.Chat{},
		messages: map[string][]*model.Message{},
	}
}

func (m *memChatRepo) Create(ctx context.Context, tx repository.Tx, chat *model.Chat) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *memChatRepo) CountActive(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chats {
		if c.UserID == userID && c.Active {
			n++
		}
	}
	return n, nil
}

func (m *memChatRepo) ListActive(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Chat, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Chat
	for _, c := range m.chats {
		if c.UserID == userID && c.Active {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *memChatRepo) FindOwned(ctx context.Context, tx repository.Tx, chatID, userID string) (*model.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !c.Active {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChatRepo) Deactivate(ctx context.Context, tx repository.Tx, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		c.Active = false
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memChatRepo) AppendMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], &cp)
	return nil
}

func (m *memChatRepo) ListMessages(ctx context.Context, tx repository.Tx, chatID string, limit, offset int) ([]*model.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	total := len(msgs)
	if offset >= len(msgs) {
		return nil, total, nil
	}
	msgs = msgs[offset:]
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	out := make([]*model.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, total, nil
}

func (m *memChatRepo) RecentMessages(ctx context.Context, tx repository.Tx, chatID string, n int) ([]*model.Message, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]*model.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memChatRepo) UpdateMessageTokens(ctx context.Context, tx repository.Tx, chatID, messageID string, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[chatID] {
		if msg.ID == messageID {
			msg.Tokens = tokens
			return nil
		}
	}
	return domain.ErrNotFound
}

// allMessages returns every message of a chat in append order.
func (m *memChatRepo) allMessages(chatID string) []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Message, 0, len(m.messages[chatID]))
	for _, msg := range m.messages[chatID] {
		cp := *msg
		out = append(out, &cp)
	}
	return out
}

// fakeTxManager runs the callback without a real transaction; repositories
// accept a nil tx. Assign withTxFn to script transactional failures.
type fakeTxManager struct {
	withTxFn func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *fakeTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// memUsageRepo provides the in-memory ledger for tests.
type memUsageRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.UserUsage
	addEr error
}

func newMemUsageRepo() *memUsageRepo {
	return &memUsageRepo{rows: map[string]*model.UserUsage{}}
}

func (m *memUsageRepo) FindOrCreate(ctx context.Context, tx repository.Tx, userID string, defaultLimit int64) (*model.UserUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[userID]; ok {
		cp := *u
		return &cp, nil
	}
	u := model.NewUserUsage(userID, defaultLimit)
	m.rows[userID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsageRepo) AddTokens(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	if m.addEr != nil {
		return m.addEr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TokensUsed += tokens
	return nil
}

func (m *memUsageRepo) set(userID string, used, limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = &model.UserUsage{UserID: userID, TokensUsed: used, TokenLimit: limit, LastResetAt: time.Now()}
}

func (m *memUsageRepo) used(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[userID]; ok {
		return u.TokensUsed
	}
	return 0
}

// fakeAI is a scriptable provider.
type fakeAI struct {
	mu          sync.Mutex
	fragments   []string
	streamErr   error
	countErr    error
	countFn     func(text string) int
	streamFn    func(ctx context.Context, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error)
	streamCalls int
	countCalls  int
	lastTurns   []adapter.Turn
}

func newFakeAI(fragments ...string) *fakeAI {
	return &fakeAI{fragments: fragments}
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model, text string) (int, error) {
	f.mu.Lock()
	f.countCalls++
	f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.countFn != nil {
		return f.countFn(text), nil
	}
	return len(text), nil
}

func (f *fakeAI) StreamChat(ctx context.Context, model string, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error) {
	f.mu.Lock()
	f.streamCalls++
	f.lastTurns = turns
	f.mu.Unlock()
	if f.streamFn != nil {
		return f.streamFn(ctx, turns, onFragment)
	}
	if f.streamErr != nil {
		return 0, f.streamErr
	}
	n := 0
	for _, fr := range f.fragments {
		if err := onFragment(fr); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *fakeAI) calls() (stream, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls, f.countCalls
}

// memLocker is an in-process stand-in for the Redis chat lock.
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (m *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrChatBusy
	}
	token := key + "-token"
	m.held[key] = token
	return token, nil
}

func (m *memLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}
