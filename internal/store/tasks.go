package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/p-blackswan/tally/internal/models"
)

const taskColumns = `id, title, description, status, priority, workflow_type, assignees, tags,
	       deadline, blocked_by, metadata, created_by, created_at, updated_at`

// CreateTask inserts t, assigning an id when empty and both timestamps.
func (r *Repo) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.nowMs()
	t.CreatedAt, t.UpdatedAt = fromMs(now), fromMs(now)
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Metadata == nil {
		t.Metadata = models.Metadata{}
	}

	assignees, tags, md, err := encodeTaskJSON(t)
	if err != nil {
		return models.Task{}, err
	}

	query := `
	INSERT INTO tasks (
		id, title, description, status, priority, workflow_type, assignees, tags,
		deadline, blocked_by, metadata, created_by, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.ExecContext(ctx, query,
		t.ID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority), t.WorkflowType,
		assignees, tags, deadlineMs(t), nullString(t.BlockedBy), md, t.CreatedBy, now, now,
	)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// GetTask returns the task with id, or nil when it does not exist.
func (r *Repo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks newest first. Rows created in the same millisecond
// keep reverse insertion order.
func (r *Repo) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.WorkflowType != "" {
		where = append(where, "workflow_type = ?")
		args = append(args, f.WorkflowType)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Assignee != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(tasks.assignees) WHERE json_each.value = ?)")
		args = append(args, f.Assignee)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies patch to the task with id and bumps updated_at. It
// returns nil when the task does not exist.
func (r *Repo) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	current, err := r.GetTask(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	t := patch.Apply(*current)
	now := r.nowMs()
	t.UpdatedAt = fromMs(now)
	if t.Metadata == nil {
		t.Metadata = models.Metadata{}
	}

	assignees, tags, md, err := encodeTaskJSON(t)
	if err != nil {
		return nil, err
	}

	query := `
	UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, workflow_type = ?,
		assignees = ?, tags = ?, deadline = ?, blocked_by = ?, metadata = ?, updated_at = ?
	WHERE id = ?
	`
	_, err = r.q.ExecContext(ctx, query,
		t.Title, nullString(t.Description), string(t.Status), string(t.Priority), t.WorkflowType,
		assignees, tags, deadlineMs(t), nullString(t.BlockedBy), md, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &t, nil
}

// DeleteTask removes the task with id and reports whether it existed.
func (r *Repo) DeleteTask(ctx context.Context, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                      models.Task
		status, priority       string
		description, blockedBy sql.NullString
		deadline               sql.NullInt64
		assignees, tags, md    string
		createdAt, updatedAt   int64
	)
	err := row.Scan(
		&t.ID, &t.Title, &description, &status, &priority, &t.WorkflowType, &assignees, &tags,
		&deadline, &blockedBy, &md, &t.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.Status(status)
	t.Priority = models.Priority(priority)
	t.Description = description.String
	t.BlockedBy = blockedBy.String
	t.CreatedAt = fromMs(createdAt)
	t.UpdatedAt = fromMs(updatedAt)
	if deadline.Valid {
		d := fromMs(deadline.Int64)
		t.Deadline = &d
	}

	if err := json.Unmarshal([]byte(assignees), &t.Assignees); err != nil {
		return nil, fmt.Errorf("decode assignees: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(md), &raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	t.Metadata = models.Sanitize(raw)
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func encodeTaskJSON(t models.Task) (assignees, tags, md string, err error) {
	a, err := json.Marshal(t.Assignees)
	if err != nil {
		return "", "", "", fmt.Errorf("encode assignees: %w", err)
	}
	g, err := json.Marshal(t.Tags)
	if err != nil {
		return "", "", "", fmt.Errorf("encode tags: %w", err)
	}
	m, err := json.Marshal(t.Metadata)
	if err != nil {
		return "", "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(a), string(g), string(m), nil
}

func deadlineMs(t models.Task) sql.NullInt64 {
	if t.Deadline == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Deadline.UnixMilli(), Valid: true}
}
