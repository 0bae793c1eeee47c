package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"ai-chat-backend/internal/domain"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DefaultChatTitle = "New Chat"
	maxTitleLen      = 255
)

// Chat is a conversation thread owned by one user. Deletion is a soft
// transition: Active flips to false and the messages are retained.
type Chat struct {
	ID        string
	UserID    string
	Title     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewChat(userID, title string) (*Chat, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultChatTitle
	}
	if len(title) > maxTitleLen {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Message is one turn in a chat. IDs are ULIDs, so within a chat the
// lexicographic order of IDs matches creation order.
type Message struct {
	ID        string
	ChatID    string
	Role      string // "user" | "assistant" | "system"
	Content   string
	Metadata  map[string]any
	Tokens    int
	CreatedAt time.Time
}

func NewMessage(chatID, role, content string) *Message {
	return &Message{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
