// File: internal/infra/db/postgres/postgres_chat_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
)

var _ repository.ChatRepository = (*ChatRepo)(nil)

// ChatRepo persists chats and messages. Message IDs are ULIDs, so ordering by
// id matches creation order; every read path orders by id to keep a user turn
// ahead of its assistant turn.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, tx repository.Tx, chat *model.Chat) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO chats (id, user_id, title, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := ex.Exec(ctx, q, chat.ID, chat.UserID, chat.Title, chat.Active, chat.CreatedAt, chat.UpdatedAt); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) CountActive(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	const q = `SELECT COUNT(*) FROM chats WHERE user_id=$1 AND active;`
	var n int
	if err := ex.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active chats: %w", err)
	}
	return n, nil
}

func (r *ChatRepo) ListActive(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Chat, int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.CountActive(ctx, tx, userID)
	if err != nil {
		return nil, 0, err
	}
	const q = `
SELECT id, user_id, title, active, created_at, updated_at
  FROM chats
 WHERE user_id=$1 AND active
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3;`
	rows, err := ex.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []*model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, &c)
	}
	return out, total, rows.Err()
}

func (r *ChatRepo) FindOwned(ctx context.Context, tx repository.Tx, chatID, userID string) (*model.Chat, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, user_id, title, active, created_at, updated_at FROM chats WHERE id=$1;`
	var c model.Chat
	if err := ex.QueryRow(ctx, q, chatID).Scan(&c.ID, &c.UserID, &c.Title, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if c.UserID != userID {
		return nil, domain.ErrForbidden
	}
	// Inactive chats are indistinguishable from absent ones to callers.
	if !c.Active {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *ChatRepo) Deactivate(ctx context.Context, tx repository.Tx, chatID string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `UPDATE chats SET active=FALSE, updated_at=NOW() WHERE id=$1;`
	if _, err := ex.Exec(ctx, q, chatID); err != nil {
		return fmt.Errorf("deactivate chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) AppendMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	var meta []byte
	if msg.Metadata != nil {
		meta, err = json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	const q = `
INSERT INTO messages (id, chat_id, role, content, metadata, tokens, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := ex.Exec(ctx, q, msg.ID, msg.ChatID, msg.Role, msg.Content, meta, msg.Tokens, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	const touch = `UPDATE chats SET updated_at=NOW() WHERE id=$1;`
	_, _ = ex.Exec(ctx, touch, msg.ChatID)
	return nil
}

func (r *ChatRepo) ListMessages(ctx context.Context, tx repository.Tx, chatID string, limit, offset int) ([]*model.Message, int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id=$1;`, chatID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	const q = `
SELECT id, chat_id, role, content, metadata, tokens, created_at
  FROM messages
 WHERE chat_id=$1
 ORDER BY id ASC
 LIMIT $2 OFFSET $3;`
	rows, err := ex.Query(ctx, q, chatID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (r *ChatRepo) RecentMessages(ctx context.Context, tx repository.Tx, chatID string, n int) ([]*model.Message, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT id, chat_id, role, content, metadata, tokens, created_at
  FROM messages
 WHERE chat_id=$1
 ORDER BY id DESC
 LIMIT $2;`
	rows, err := ex.Query(ctx, q, chatID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Newest-first from the query; flip back to conversational order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatRepo) UpdateMessageTokens(ctx context.Context, tx repository.Tx, chatID, messageID string, tokens int) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `UPDATE messages SET tokens=$3 WHERE id=$1 AND chat_id=$2;`
	tag, err := ex.Exec(ctx, q, messageID, chatID, tokens)
	if err != nil {
		return fmt.Errorf("update message tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMessages(rows pgx.Rows) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		var m model.Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &meta, &m.Tokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
