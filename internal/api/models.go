package api

import (
	"time"

	"github.com/p-blackswan/tally/internal/models"
)

// Envelope wraps every successful response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProblemDetail follows RFC 7807 for error responses. Success and Error keep
// error bodies readable by clients that only understand the envelope.
type ProblemDetail struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ProcessMessageRequest is the body of POST /api/messages.
type ProcessMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// ClassifyRequest is the body of POST /api/messages/classify.
type ClassifyRequest struct {
	Content string `json:"content"`
}

// MessagePage is a page of the message history.
type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// TaskPatchRequest is the body of PATCH /api/tasks/:id. Absent fields are
// left untouched; metadata is merged into the stored map.
type TaskPatchRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Status       *models.Status   `json:"status"`
	Priority     *models.Priority `json:"priority"`
	WorkflowType *string          `json:"workflowType"`
	Assignees    *[]string        `json:"assignees"`
	Tags         *[]string        `json:"tags"`
	Deadline     *time.Time       `json:"deadline"`
	BlockedBy    *string          `json:"blockedBy"`
	Metadata     map[string]any   `json:"metadata"`
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// CorrectionRequest is the body of POST /api/corrections.
type CorrectionRequest struct {
	OriginalTitle  string   `json:"originalTitle"`
	CorrectedTitle string   `json:"correctedTitle"`
	WorkflowType   string   `json:"workflowType"`
	OriginalTags   []string `json:"originalTags"`
	CorrectedTags  []string `json:"correctedTags"`
	UserMessage    string   `json:"userMessage"`
}
