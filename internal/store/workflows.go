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

const workflowColumns = `id, name, slug, description, stages, fields, created_at, updated_at`

// CreateWorkflow inserts w. Missing ids on the workflow, its stages and its
// fields are generated; a missing slug is derived from the name.
func (r *Repo) CreateWorkflow(ctx context.Context, w models.Workflow) (models.Workflow, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Slug == "" {
		w.Slug = models.SlugOf(w.Name)
	}
	for i := range w.Stages {
		if w.Stages[i].ID == "" {
			w.Stages[i].ID = uuid.NewString()
		}
	}
	for i := range w.Fields {
		if w.Fields[i].ID == "" {
			w.Fields[i].ID = uuid.NewString()
		}
	}
	if w.Stages == nil {
		w.Stages = []models.WorkflowStage{}
	}
	if w.Fields == nil {
		w.Fields = []models.WorkflowField{}
	}
	now := r.nowMs()
	w.CreatedAt, w.UpdatedAt = fromMs(now), fromMs(now)

	stages, err := json.Marshal(w.Stages)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("encode stages: %w", err)
	}
	fields, err := json.Marshal(w.Fields)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("encode fields: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
	INSERT INTO workflows (`+workflowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Name, w.Slug, w.Description, string(stages), string(fields), now, now)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("failed to create workflow: %w", err)
	}
	return w, nil
}

// GetWorkflow returns the workflow with id, or nil when it does not exist.
func (r *Repo) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getWorkflow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
}

// WorkflowByName returns the workflow named name, or nil.
func (r *Repo) WorkflowByName(ctx context.Context, name string) (*models.Workflow, error) {
	return r.getWorkflow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE name = ?`, name)
}

func (r *Repo) getWorkflow(ctx context.Context, query, arg string) (*models.Workflow, error) {
	w, err := scanWorkflow(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return w, nil
}

// ListWorkflows returns all workflows ordered by name.
func (r *Repo) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, *w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}
	return out, nil
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		w                    models.Workflow
		stages, fields       string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Slug, &w.Description, &stages, &fields, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stages), &w.Stages); err != nil {
		return nil, fmt.Errorf("decode stages: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &w.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	w.CreatedAt = fromMs(createdAt)
	w.UpdatedAt = fromMs(updatedAt)
	return &w, nil
}
