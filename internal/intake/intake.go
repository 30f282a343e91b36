// Package intake turns one chat message into task mutations: it gathers
// context, extracts, resolves referenced tasks, writes the changes and the
// annotated message in one transaction, then notifies listeners.
package intake

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/metrics"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/naming"
	"github.com/p-blackswan/tally/internal/parser"
)

// UntitledTask titles tasks created from an extraction without a title.
const UntitledTask = "Untitled task"

// Repositories are the user, task and message collaborators.
type Repositories interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)

	AppendMessage(ctx context.Context, m models.Message) (models.Message, error)
	RecentMessages(ctx context.Context, limit int) ([]models.Message, error)
}

// Store is Repositories plus a unit of work. Everything fn writes commits
// together or not at all.
type Store interface {
	Repositories
	Atomically(ctx context.Context, fn func(Repositories) error) error
}

// Extractor reads a message. It must always return an extraction.
type Extractor interface {
	Extract(ctx context.Context, req parser.Request) *models.Extraction
}

// Namer enriches new tasks and keeps the naming correction log.
type Namer interface {
	Enhance(ctx context.Context, rawTitle, workflowType string, md models.Metadata) (naming.Result, error)
	RecordCorrection(ctx context.Context, c models.TaskNameCorrection)
	Suggestions(ctx context.Context, title, workflowType string) []string
}

// Notifier receives every processed message after it commits.
type Notifier interface {
	Notify(ctx context.Context, res *Result)
}

// Result is the outcome of processing one message.
type Result struct {
	Message    models.Message     `json:"message"`
	Created    []models.Task      `json:"createdTasks"`
	Updated    []models.Task      `json:"updatedTasks"`
	Extraction *models.Extraction `json:"parseResult"`
}

// Tasks returns the created tasks followed by the updated ones.
func (r *Result) Tasks() []models.Task {
	out := make([]models.Task, 0, len(r.Created)+len(r.Updated))
	out = append(out, r.Created...)
	return append(out, r.Updated...)
}

// Orchestrator processes chat messages.
type Orchestrator struct {
	store       Store
	extractor   Extractor
	namer       Namer
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	ctxMessages int
	ctxTasks    int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the listener for processed messages.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "intake").Logger() }
}

// WithContextLimits sets how many recent messages and open tasks are shown to
// the extractor. Non-positive values keep the defaults.
func WithContextLimits(messages, tasks int) Option {
	return func(o *Orchestrator) {
		if messages > 0 {
			o.ctxMessages = messages
		}
		if tasks > 0 {
			o.ctxTasks = tasks
		}
	}
}

// New creates an Orchestrator. A nil namer creates tasks without naming
// enrichment.
func New(store Store, extractor Extractor, namer Namer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		extractor:   extractor,
		namer:       namer,
		logger:      zerolog.Nop(),
		ctxMessages: 10,
		ctxTasks:    10,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
