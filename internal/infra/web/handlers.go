package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
)

type chatJSON struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageJSON struct {
	MessageID      string         `json:"message_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	TokensConsumed int            `json:"tokens_consumed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toChatJSON(c *model.Chat) chatJSON {
	return chatJSON{ChatID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func toMessageJSON(m *model.Message) messageJSON {
	return messageJSON{
		MessageID:      m.ID,
		Role:           m.Role,
		Content:        m.Content,
		TokensConsumed: m.Tokens,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	limit, offset := pageParams(r, 20)

	chats, total, err := s.chatUC.ListChats(r.Context(), userID, limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]chatJSON, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chats":  out,
		"total":  total,
		"active": total,
	})
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	var req struct {
		Title string `json:"title"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means default title
	}

	chat, err := s.chatUC.CreateChat(r.Context(), userID, req.Title)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"chat_id":    chat.ID,
		"title":      chat.Title,
		"created_at": chat.CreatedAt,
	})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	chatID := chi.URLParam(r, "chatID")
	limit, offset := pageParams(r, 50)

	chat, msgs, total, err := s.chatUC.GetChat(r.Context(), chatID, userID, limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":        chat.ID,
		"title":          chat.Title,
		"messages":       out,
		"total_messages": total,
	})
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	chatID := chi.URLParam(r, "chatID")

	deletedAt, err := s.chatUC.DeleteChat(r.Context(), chatID, userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":    chatID,
		"deleted_at": deletedAt,
	})
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.usageUC.Summary(r.Context(), UserID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens_used":   usage.TokensUsed,
		"token_limit":   usage.TokenLimit,
		"remaining":     usage.Remaining(),
		"last_reset_at": usage.LastResetAt,
	})
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// errorCode maps a domain error to its HTTP status and stable machine code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrChatQuotaExceeded):
		return http.StatusForbidden, "MAX_CHATS_EXCEEDED"
	case errors.Is(err, domain.ErrTokenQuotaExceeded):
		return http.StatusTooManyRequests, "TOKEN_QUOTA_EXCEEDED"
	case errors.Is(err, domain.ErrChatBusy):
		return http.StatusConflict, "CHAT_BUSY"
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway, "GENERATION_FAILED"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSONError(w, status, code, err.Error())
}
