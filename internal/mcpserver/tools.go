package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tally/internal/errors"
	"github.com/p-blackswan/tally/internal/matcher"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/naming"
)

// Tools holds the collaborators of the tool handlers.
type Tools struct {
	Processor Processor
	Tasks     TaskLister
	Names     Suggester
	logger    zerolog.Logger
}

// --- Input types ---

type ClassifyInput struct {
	Content string `json:"content" jsonschema:"The chat message text"`
}

type ProcessInput struct {
	UserID  string `json:"userId" jsonschema:"Id of the team member who sent the message"`
	Content string `json:"content" jsonschema:"The chat message text"`
}

type SearchInput struct {
	Reference string `json:"reference" jsonschema:"Free-text reference such as a customer, invoice number or title words"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of matches (default 10)"`
}

type ListInput struct {
	WorkflowType string `json:"workflowType,omitempty" jsonschema:"Filter by workflow type slug"`
	Status       string `json:"status,omitempty" jsonschema:"Filter by status: todo, in_progress, blocked, completed, cancelled"`
	Assignee     string `json:"assignee,omitempty" jsonschema:"Filter by assignee user id"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum number of tasks (default 50)"`
}

type SuggestInput struct {
	Title        string `json:"title" jsonschema:"Draft task title"`
	WorkflowType string `json:"workflowType,omitempty" jsonschema:"Workflow type slug"`
}

// SuggestOutput is the result of suggest_task_names.
type SuggestOutput struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
}

// --- Handlers ---

func (t *Tools) ClassifyMessage(ctx context.Context, _ *mcp.CallToolRequest, in ClassifyInput) (*mcp.CallToolResult, any, error) {
	ext, err := t.Processor.Classify(ctx, in.Content)
	if err != nil {
		return t.failure("classify", err), nil, nil
	}
	return toolJSON(ext)
}

func (t *Tools) ProcessMessage(ctx context.Context, _ *mcp.CallToolRequest, in ProcessInput) (*mcp.CallToolResult, any, error) {
	if in.UserID == "" {
		return toolError("userId is required"), nil, nil
	}
	res, err := t.Processor.Process(ctx, in.UserID, in.Content)
	if err != nil {
		return t.failure("process", err), nil, nil
	}
	return toolJSON(res)
}

func (t *Tools) SearchTasks(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Reference) == "" {
		return toolError("reference is required"), nil, nil
	}
	pool, err := t.Tasks.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return t.failure("search", err), nil, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	ranked := matcher.Rank(in.Reference, pool)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []matcher.Scored{}
	}
	return toolJSON(ranked)
}

func (t *Tools) ListTasks(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
	f := models.TaskFilter{
		WorkflowType: in.WorkflowType,
		Status:       models.Status(in.Status),
		Assignee:     in.Assignee,
		Limit:        in.Limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		return toolError("unknown status %q", in.Status), nil, nil
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	tasks, err := t.Tasks.ListTasks(ctx, f)
	if err != nil {
		return t.failure("list", err), nil, nil
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return toolJSON(tasks)
}

func (t *Tools) SuggestTaskNames(ctx context.Context, _ *mcp.CallToolRequest, in SuggestInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Title) == "" {
		return toolError("title is required"), nil, nil
	}
	out := SuggestOutput{
		Prefix:      naming.Prefix(in.WorkflowType),
		Suggestions: t.Names.Suggestions(ctx, in.Title, in.WorkflowType),
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return toolJSON(out)
}

// failure turns err into a tool error. Caller mistakes are reported as they
// are; anything else is logged and summarized.
func (t *Tools) failure(op string, err error) *mcp.CallToolResult {
	if errors.Is(err, perrors.ErrUserNotFound) || errors.Is(err, perrors.ErrInvalidInput) {
		return toolError("%v", err)
	}
	t.logger.Error().Err(err).Str("op", op).Msg("tool call failed")
	return toolError("failed to %s: %v", op, err)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
