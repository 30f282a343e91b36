// Package models holds the domain types shared by the classifier, the
// orchestrator and the store.
package models

import "time"

// Status is the lifecycle state of a tracked task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether work on the task is still open and not stalled.
func (s Status) Active() bool {
	return s == StatusTodo || s == StatusInProgress
}

// Open reports whether the task is neither completed nor cancelled.
func (s Status) Open() bool {
	return s != StatusCompleted && s != StatusCancelled
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// WorkflowGeneral is the workflow type of tasks that match no known workflow.
const WorkflowGeneral = "general"

// Known workflow types, in the order the deterministic classifier tries them.
const (
	WorkflowInvoiceGeneration     = "invoice-generation"
	WorkflowPaymentReconciliation = "payment-reconciliation"
	WorkflowMonthlyClose          = "monthly-close"
	WorkflowVendorOnboarding      = "vendor-onboarding"
	WorkflowModelChange           = "model-change"
	WorkflowAnnualPlanning        = "annual-planning"
)

// Task is a unit of tracked work.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	WorkflowType string     `json:"workflowType"`
	Assignees    []string   `json:"assignees"`
	Tags         []string   `json:"tags"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	BlockedBy    string     `json:"blockedBy,omitempty"`
	Metadata     Metadata   `json:"metadata"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasAssignee reports whether userID is among the task's assignees.
func (t *Task) HasAssignee(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// TaskFilter narrows a task listing. Zero values mean "any".
type TaskFilter struct {
	WorkflowType string
	Status       Status
	Assignee     string
	Limit        int
}

// TaskPatch carries the fields of a partial task update. Nil fields are left
// untouched; Metadata, when non-nil, replaces the stored map.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *Status
	Priority     *Priority
	WorkflowType *string
	Assignees    *[]string
	Tags         *[]string
	Deadline     *time.Time
	BlockedBy    *string
	Metadata     Metadata
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.WorkflowType == nil && p.Assignees == nil &&
		p.Tags == nil && p.Deadline == nil && p.BlockedBy == nil && p.Metadata == nil
}

// Apply returns a copy of t with the patch applied. UpdatedAt is not touched.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.WorkflowType != nil {
		t.WorkflowType = *p.WorkflowType
	}
	if p.Assignees != nil {
		t.Assignees = append([]string(nil), (*p.Assignees)...)
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	if p.BlockedBy != nil {
		t.BlockedBy = *p.BlockedBy
	}
	if p.Metadata != nil {
		t.Metadata = p.Metadata.Clone()
	}
	return t
}
