package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/infra/logging"
	"ai-chat-backend/internal/infra/metrics"
	"ai-chat-backend/internal/usecase"
)

// sendMessage drives one exchange over Server-Sent Events. The response is
// committed as an SSE stream before the orchestrator runs, so every outcome
// — success or failure — ends with a terminal event rather than a bare
// status code or a silent close.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	chatID := chi.URLParam(r, "chatID")

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "message is required")
		return
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), rateKey(userID), s.sendRateLimit, s.sendRateWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many messages, slow down")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := logging.WithChatID(logging.WithUserID(r.Context(), userID), chatID)
	log := logging.With(ctx, s.log)

	start := time.Now()
	res, err := s.streamUC.SendMessage(ctx, userID, chatID, req.Message, func(fragment string) error {
		return writeSSE(w, flusher, "message", map[string]any{"content": fragment})
	})
	s.observeExchange(res, err, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			// Client is gone; nothing left to write.
			log.Debug().Msg("client disconnected mid-stream")
			return
		}
		_, code := errorCode(err)
		if werr := writeSSE(w, flusher, "error", map[string]any{"error": code, "message": err.Error()}); werr != nil {
			log.Warn().Err(werr).Msg("terminal error event write failed")
		}
		return
	}

	_ = writeSSE(w, flusher, "done", map[string]any{
		"done":        true,
		"tokens_used": res.TokensUsed,
		"message_id":  res.AssistantMessageID,
	})
}

// observeExchange records stream metrics for one send. res can be non-nil
// alongside an error when a disconnect left a billed partial turn behind.
func (s *Server) observeExchange(res *usecase.StreamResult, err error, elapsed time.Duration) {
	metrics.ObserveStreamDuration(s.model, elapsed)
	if errors.Is(err, domain.ErrTokenQuotaExceeded) {
		metrics.QuotaBlocked(s.model)
	}
	if res == nil {
		return
	}
	metrics.AddStreamFragments(s.model, res.Fragments)
	if res.TokensUsed > 0 {
		metrics.ObserveExchangeTokens(s.model, res.TokensUsed, res.Estimated)
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func rateKey(userID string) string {
	return "rate_limit:" + userID + ":send_message"
}
