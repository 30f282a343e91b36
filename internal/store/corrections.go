package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/p-blackswan/tally/internal/models"
)

// SaveCorrection appends a naming correction.
func (r *Repo) SaveCorrection(ctx context.Context, c models.TaskNameCorrection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	createdAt := c.CreatedAt.UnixMilli()
	if c.CreatedAt.IsZero() {
		createdAt = r.nowMs()
	}
	if c.OriginalTags == nil {
		c.OriginalTags = []string{}
	}
	if c.CorrectedTags == nil {
		c.CorrectedTags = []string{}
	}
	orig, err := json.Marshal(c.OriginalTags)
	if err != nil {
		return fmt.Errorf("encode original tags: %w", err)
	}
	corr, err := json.Marshal(c.CorrectedTags)
	if err != nil {
		return fmt.Errorf("encode corrected tags: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
	INSERT INTO task_name_corrections (
		id, original_title, corrected_title, workflow_type,
		original_tags, corrected_tags, user_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OriginalTitle, c.CorrectedTitle, c.WorkflowType, string(orig), string(corr), c.UserMessage, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	return nil
}

// RecentCorrections returns up to limit corrections, newest first. An empty
// workflowType returns corrections of every type.
func (r *Repo) RecentCorrections(ctx context.Context, workflowType string, limit int) ([]models.TaskNameCorrection, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, original_title, corrected_title, workflow_type,
	       original_tags, corrected_tags, user_message, created_at
	FROM task_name_corrections`
	var args []any
	if workflowType != "" {
		query += ` WHERE workflow_type = ?`
		args = append(args, workflowType)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer rows.Close()

	var out []models.TaskNameCorrection
	for rows.Next() {
		var (
			c          models.TaskNameCorrection
			orig, corr string
			createdAt  int64
		)
		if err := rows.Scan(&c.ID, &c.OriginalTitle, &c.CorrectedTitle, &c.WorkflowType,
			&orig, &corr, &c.UserMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		if err := json.Unmarshal([]byte(orig), &c.OriginalTags); err != nil {
			return nil, fmt.Errorf("decode original tags: %w", err)
		}
		if err := json.Unmarshal([]byte(corr), &c.CorrectedTags); err != nil {
			return nil, fmt.Errorf("decode corrected tags: %w", err)
		}
		c.CreatedAt = fromMs(createdAt)
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corrections: %w", err)
	}
	return out, nil
}
