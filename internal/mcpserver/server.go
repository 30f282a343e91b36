// Package mcpserver exposes the intake pipeline and the task pool as MCP
// tools.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Processor runs the intake pipeline.
type Processor interface {
	Process(ctx context.Context, userID, text string) (*intake.Result, error)
	Classify(ctx context.Context, text string) (*models.Extraction, error)
}

// TaskLister reads the task pool.
type TaskLister interface {
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
}

// Suggester proposes titles from past naming corrections.
type Suggester interface {
	Suggestions(ctx context.Context, title, workflowType string) []string
}

// New creates an MCP server with every tool registered.
func New(p Processor, tasks TaskLister, names Suggester, logger zerolog.Logger) *mcp.Server {
	t := &Tools{
		Processor: p,
		Tasks:     tasks,
		Names:     names,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "tally",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "classify_message",
		Description: "Extract the task intent of a chat message without storing anything",
	}, t.ClassifyMessage)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "process_message",
		Description: "Process a chat message from a team member: create, update or link tasks and store the message",
	}, t.ProcessMessage)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_tasks",
		Description: "Find tasks matching a free-text reference, best match first, with scores",
	}, t.SearchTasks)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks, newest first, optionally filtered by workflow type, status or assignee",
	}, t.ListTasks)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "suggest_task_names",
		Description: "Suggest task titles learned from past naming corrections of the same workflow type",
	}, t.SuggestTaskNames)

	return srv
}
