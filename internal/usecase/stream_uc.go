// File: internal/usecase/stream_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/domain/ports/repository"
)

const (
	chatLockTTL     = 3 * time.Minute
	persistTimeout  = 5 * time.Second
	chatLockPrefix  = "chat_stream:"
	metaKeyModel    = "model"
	metaKeyFrags    = "fragment_count"
	metaKeyStreamed = "streamed_at"
	metaKeyTrunc    = "truncated"
)

// ChatLocker serializes exchanges per chat so message order within one chat
// can never interleave across concurrent sends. Satisfied by the Redis locker.
type ChatLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// StreamResult is the terminal payload of a successful send. Estimated is
// set when the billed total came from the heuristic fallback rather than the
// provider's counting call.
type StreamResult struct {
	AssistantMessageID string
	TokensUsed         int
	Fragments          int
	Truncated          bool
	Estimated          bool
}

// Compile-time check
var _ StreamUseCase = (*streamUC)(nil)

// StreamUseCase drives one message exchange end to end: ownership check,
// quota gate, context assembly, user-turn persistence, provider streaming,
// assistant-turn persistence, token accounting, and ledger commit. Each step
// maps to exactly one externally visible error kind, and nothing is ever
// retried here.
type StreamUseCase interface {
	SendMessage(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*StreamResult, error)
}

type streamUC struct {
	chats         repository.ChatRepository
	usage         UsageUseCase
	builder       ContextBuilder
	ai            adapter.AIProvider
	estimator     TokenEstimator
	locks         ChatLocker
	model         string
	streamTimeout time.Duration
	log           *zerolog.Logger
}

func NewStreamUseCase(
	chats repository.ChatRepository,
	usage UsageUseCase,
	builder ContextBuilder,
	ai adapter.AIProvider,
	estimator TokenEstimator,
	locks ChatLocker,
	modelName string,
	streamTimeout time.Duration,
	logger *zerolog.Logger,
) *streamUC {
	if streamTimeout <= 0 {
		streamTimeout = 120 * time.Second
	}
	return &streamUC{
		chats:         chats,
		usage:         usage,
		builder:       builder,
		ai:            ai,
		estimator:     estimator,
		locks:         locks,
		model:         modelName,
		streamTimeout: streamTimeout,
		log:           logger,
	}
}

func (s *streamUC) SendMessage(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*StreamResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrInvalidArgument
	}

	// One exchange per chat at a time; unlock on a fresh context because the
	// request context may already be canceled by then.
	lockKey := chatLockPrefix + chatID
	lockToken, err := s.locks.TryLock(ctx, lockKey, chatLockTTL)
	if err != nil {
		return nil, domain.ErrChatBusy
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.locks.Unlock(unlockCtx, lockKey, lockToken); err != nil {
			s.log.Warn().Err(err).Str("chat_id", chatID).Msg("chat lock release failed")
		}
	}()

	// 1. AuthorizeOwnership. Never trust a cached chat; it can be deactivated
	// between listing and sending.
	if _, err := s.chats.FindOwned(ctx, nil, chatID, userID); err != nil {
		return nil, err
	}

	// 2. CheckQuota. Binary availability gate before any provider call.
	ok, err := s.usage.HasQuota(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !ok {
		return nil, domain.ErrTokenQuotaExceeded
	}

	// 3. LoadContext.
	turns, err := s.builder.Build(ctx, chatID, text)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	// 4. PersistUserTurn. Committed before the provider is called so the
	// user's input survives any generation failure.
	userMsg := model.NewMessage(chatID, model.RoleUser, text)
	if err := s.chats.AppendMessage(ctx, nil, userMsg); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	// 5. StreamGeneration. Fragments go straight to the caller; the only
	// buffering is the accumulator for the full text.
	var acc strings.Builder
	streamCtx, cancelStream := context.WithTimeout(ctx, s.streamTimeout)
	defer cancelStream()

	fragments, streamErr := s.ai.StreamChat(streamCtx, s.model, turns, func(fragment string) error {
		acc.WriteString(fragment)
		return onFragment(fragment)
	})
	if streamErr != nil {
		if ctx.Err() != nil {
			// Client went away mid-stream. The user turn is already durable;
			// the partial assistant text is persisted too, marked truncated.
			res := s.persistPartial(chatID, userID, text, acc.String(), fragments)
			return res, ctx.Err()
		}
		s.log.Error().Err(streamErr).Str("chat_id", chatID).Msg("completion stream failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, streamErr)
	}

	// 6. PersistAssistantTurn.
	assistant := model.NewMessage(chatID, model.RoleAssistant, acc.String())
	assistant.Metadata = map[string]any{
		metaKeyModel:    s.model,
		metaKeyFrags:    fragments,
		metaKeyStreamed: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.chats.AppendMessage(ctx, nil, assistant); err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}

	// 7-8. ComputeTokens and CommitUsage. The response has already streamed,
	// so accounting failures are logged, never surfaced.
	total := s.settleUsage(ctx, userID, chatID, text, acc.String(), assistant.ID)

	// 9. Completed.
	return &StreamResult{
		AssistantMessageID: assistant.ID,
		TokensUsed:         total.Tokens,
		Fragments:          fragments,
		Estimated:          total.Estimated(),
	}, nil
}

// settleUsage computes the exchange total, back-fills the assistant row, and
// commits the ledger. Returns the computed total.
func (s *streamUC) settleUsage(ctx context.Context, userID, chatID, userText, assistantText, assistantMsgID string) TokenCount {
	tc := s.estimator.ExchangeTokens(ctx, userText, assistantText, s.model)
	if err := s.chats.UpdateMessageTokens(ctx, nil, chatID, assistantMsgID, tc.Tokens); err != nil {
		s.log.Error().Err(err).Str("message_id", assistantMsgID).Msg("token back-fill failed")
	}
	if err := s.usage.Commit(ctx, userID, int64(tc.Tokens)); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("usage commit failed")
	}
	return tc
}

// persistPartial saves whatever assistant text accumulated before a client
// disconnect and settles usage for it, on a detached context.
func (s *streamUC) persistPartial(chatID, userID, userText, partial string, fragments int) *StreamResult {
	bg, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	res := &StreamResult{Fragments: fragments, Truncated: true}
	if partial == "" {
		return res
	}
	assistant := model.NewMessage(chatID, model.RoleAssistant, partial)
	assistant.Metadata = map[string]any{
		metaKeyModel:    s.model,
		metaKeyFrags:    fragments,
		metaKeyStreamed: time.Now().UTC().Format(time.RFC3339),
		metaKeyTrunc:    true,
	}
	if err := s.chats.AppendMessage(bg, nil, assistant); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("partial assistant persist failed")
		return res
	}
	res.AssistantMessageID = assistant.ID
	tc := s.settleUsage(bg, userID, chatID, userText, partial, assistant.ID)
	res.TokensUsed = tc.Tokens
	res.Estimated = tc.Estimated()
	return res
}

// IsTerminal reports whether err is one of the externally visible error
// kinds rather than an internal failure.
func IsTerminal(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrChatQuotaExceeded) ||
		errors.Is(err, domain.ErrTokenQuotaExceeded) ||
		errors.Is(err, domain.ErrGenerationFailed) ||
		errors.Is(err, domain.ErrChatBusy) ||
		errors.Is(err, domain.ErrInvalidArgument)
}
