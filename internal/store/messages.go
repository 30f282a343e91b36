package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/p-blackswan/tally/internal/models"
)

const messageColumns = `id, user_id, user_name, content, timestamp, parsed_data, related_task_ids`

// AppendMessage stores m, assigning an id when empty and the timestamp.
func (r *Repo) AppendMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := r.nowMs()
	m.Timestamp = fromMs(now)
	if m.RelatedTaskIDs == nil {
		m.RelatedTaskIDs = []string{}
	}

	var parsed sql.NullString
	if m.ParsedData != nil {
		raw, err := json.Marshal(m.ParsedData)
		if err != nil {
			return models.Message{}, fmt.Errorf("encode parsed data: %w", err)
		}
		parsed = sql.NullString{String: string(raw), Valid: true}
	}
	related, err := json.Marshal(m.RelatedTaskIDs)
	if err != nil {
		return models.Message{}, fmt.Errorf("encode related task ids: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
	INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.UserName, m.Content, now, parsed, string(related))
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return m, nil
}

// GetMessage returns the message with id, or nil when it does not exist.
func (r *Repo) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := scanMessage(r.q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// RecentMessages returns the newest limit messages, newest first.
func (r *Repo) RecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	return r.ListMessages(ctx, limit, 0)
}

// ListMessages returns a page of messages, newest first.
func (r *Repo) ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m       models.Message
		ts      int64
		parsed  sql.NullString
		related string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.UserName, &m.Content, &ts, &parsed, &related); err != nil {
		return nil, err
	}
	m.Timestamp = fromMs(ts)
	if parsed.Valid {
		var ex models.Extraction
		if err := json.Unmarshal([]byte(parsed.String), &ex); err != nil {
			return nil, fmt.Errorf("decode parsed data: %w", err)
		}
		if ex.Metadata != nil {
			ex.Metadata = models.Sanitize(ex.Metadata)
		}
		m.ParsedData = &ex
	}
	if err := json.Unmarshal([]byte(related), &m.RelatedTaskIDs); err != nil {
		return nil, fmt.Errorf("decode related task ids: %w", err)
	}
	if m.RelatedTaskIDs == nil {
		m.RelatedTaskIDs = []string{}
	}
	return &m, nil
}
