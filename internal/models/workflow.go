package models

import (
	"strings"
	"time"
)

// FieldType is the kind of a workflow field.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
)

// WorkflowStage is one ordered step of a workflow.
type WorkflowStage struct {
	ID    string `json:"id" yaml:"-"`
	Name  string `json:"name" yaml:"name"`
	Order int    `json:"order" yaml:"order"`
}

// WorkflowField describes one typed field of a workflow.
type WorkflowField struct {
	ID       string    `json:"id" yaml:"-"`
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Required bool      `json:"required" yaml:"required"`
}

// Workflow is an administrative workflow definition. The core only reads its
// Slug as workflow-type vocabulary.
type Workflow struct {
	ID          string          `json:"id" yaml:"-"`
	Name        string          `json:"name" yaml:"name"`
	Slug        string          `json:"slug" yaml:"slug"`
	Description string          `json:"description" yaml:"description"`
	Stages      []WorkflowStage `json:"stages" yaml:"stages"`
	Fields      []WorkflowField `json:"fields" yaml:"fields"`
	CreatedAt   time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time       `json:"updatedAt" yaml:"-"`
}

// SlugOf derives a workflow-type slug from a display name:
// "Model Change Control" → "model-change-control".
func SlugOf(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
