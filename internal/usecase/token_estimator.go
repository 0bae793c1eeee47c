// File: internal/usecase/token_estimator.go
package usecase

import (
	"context"
	"math"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ai-chat-backend/internal/domain/ports/adapter"
)

type TokenCountMethod string

const (
	// TokenCountProvider means the provider's counting call supplied the value.
	TokenCountProvider TokenCountMethod = "provider"
	// TokenCountHeuristic means the availability fallback supplied the value.
	TokenCountHeuristic TokenCountMethod = "heuristic"
)

// TokenCount is a token total plus how it was obtained, so billing paths can
// tell exact counts from estimates.
type TokenCount struct {
	Tokens int
	Method TokenCountMethod
}

func (t TokenCount) Estimated() bool { return t.Method == TokenCountHeuristic }

// TokenCountCache is a per-model, exact-text cache of counting results.
// It is an explicit injected object so tests can reset it between cases.
// Stale or duplicate entries are harmless; entries are never evicted within
// a process lifetime.
type TokenCountCache struct {
	mu      sync.RWMutex
	byModel map[string]map[string]TokenCount
}

func NewTokenCountCache() *TokenCountCache {
	return &TokenCountCache{byModel: make(map[string]map[string]TokenCount)}
}

func (c *TokenCountCache) Get(model, text string) (TokenCount, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tc, ok := c.byModel[model][text]
	return tc, ok
}

func (c *TokenCountCache) Put(model, text string, tc TokenCount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byModel[model]
	if !ok {
		m = make(map[string]TokenCount)
		c.byModel[model] = m
	}
	m[text] = tc
}

func (c *TokenCountCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byModel = make(map[string]map[string]TokenCount)
}

// Compile-time check
var _ TokenEstimator = (*tokenEstimator)(nil)

type TokenEstimator interface {
	// CountTokens never fails: on provider error it falls back to the
	// heuristic and flags the result as estimated.
	CountTokens(ctx context.Context, text, model string) TokenCount
	// SystemPromptTokens is cached once per model for the process lifetime;
	// the system instruction text is constant.
	SystemPromptTokens(ctx context.Context, model string) int
	// ExchangeTokens totals both texts, the system prompt, and a fixed
	// per-exchange overhead for role markers and framing.
	ExchangeTokens(ctx context.Context, userText, assistantText, model string) TokenCount
}

type tokenEstimator struct {
	ai           adapter.AIProvider
	cache        *TokenCountCache
	systemPrompt string
	overhead     int

	sysMu     sync.Mutex
	sysTokens map[string]int

	log *zerolog.Logger
}

func NewTokenEstimator(ai adapter.AIProvider, cache *TokenCountCache, systemPrompt string, exchangeOverhead int, logger *zerolog.Logger) *tokenEstimator {
	return &tokenEstimator{
		ai:           ai,
		cache:        cache,
		systemPrompt: systemPrompt,
		overhead:     exchangeOverhead,
		sysTokens:    make(map[string]int),
		log:          logger,
	}
}

func (e *tokenEstimator) CountTokens(ctx context.Context, text, model string) TokenCount {
	if text == "" {
		return TokenCount{Tokens: 0, Method: TokenCountProvider}
	}
	if tc, ok := e.cache.Get(model, text); ok {
		return tc
	}

	tc := TokenCount{}
	if n, err := e.ai.CountTokens(ctx, model, text); err == nil {
		tc = TokenCount{Tokens: n, Method: TokenCountProvider}
	} else {
		e.log.Warn().Err(err).Str("model", model).Msg("provider token counting unavailable, using heuristic")
		tc = TokenCount{Tokens: HeuristicTokens(text), Method: TokenCountHeuristic}
	}
	e.cache.Put(model, text, tc)
	return tc
}

func (e *tokenEstimator) SystemPromptTokens(ctx context.Context, model string) int {
	e.sysMu.Lock()
	defer e.sysMu.Unlock()
	if n, ok := e.sysTokens[model]; ok {
		return n
	}
	n := e.CountTokens(ctx, e.systemPrompt, model).Tokens
	e.sysTokens[model] = n
	return n
}

func (e *tokenEstimator) ExchangeTokens(ctx context.Context, userText, assistantText, model string) TokenCount {
	userTC := e.CountTokens(ctx, userText, model)
	asstTC := e.CountTokens(ctx, assistantText, model)
	total := userTC.Tokens + asstTC.Tokens + e.SystemPromptTokens(ctx, model) + e.overhead

	method := TokenCountProvider
	if userTC.Estimated() || asstTC.Estimated() {
		method = TokenCountHeuristic
	}
	return TokenCount{Tokens: total, Method: method}
}

// HeuristicTokens is the deterministic availability fallback: one token per
// four runes, inflated 2% per non-word character, plus a flat 3% safety
// margin. It deliberately overestimates so billing never undercounts.
func HeuristicTokens(text string) int {
	if text == "" {
		return 0
	}
	base := math.Ceil(float64(utf8.RuneCountInString(text)) / 4.0)

	nonWord := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			continue
		}
		nonWord++
	}

	est := base * (1.0 + 0.02*float64(nonWord)) * 1.03
	return int(math.Ceil(est))
}
