package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/dates"
	perrors "github.com/p-blackswan/tally/internal/errors"
	"github.com/p-blackswan/tally/internal/llm"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/retry"
)

// DefaultWorkflows is the workflow vocabulary used when no catalog is loaded.
var DefaultWorkflows = []Workflow{
	{Slug: models.WorkflowInvoiceGeneration, Name: "Invoice Generation"},
	{Slug: models.WorkflowPaymentReconciliation, Name: "Payment Reconciliation"},
	{Slug: models.WorkflowMonthlyClose, Name: "Monthly Close"},
	{Slug: models.WorkflowAnnualPlanning, Name: "Annual Planning"},
	{Slug: models.WorkflowModelChange, Name: "Model Change Control"},
	{Slug: models.WorkflowVendorOnboarding, Name: "Vendor Onboarding"},
}

// Workflow is one entry of the workflow vocabulary shown to the model.
type Workflow struct {
	Slug string
	Name string
}

// Structured classifies with an external structured-generation backend. It
// fails whenever the backend does; NewChain supplies the fallback.
type Structured struct {
	gen       llm.StructuredGenerator
	dates     *dates.Resolver
	workflows []Workflow
	threshold float64
	timeout   time.Duration
	retry     retry.Config
	logger    zerolog.Logger
}

// StructuredOption configures a Structured extractor.
type StructuredOption func(*Structured)

// WithWorkflows replaces the workflow vocabulary.
func WithWorkflows(w []Workflow) StructuredOption {
	return func(s *Structured) {
		if len(w) > 0 {
			s.workflows = w
		}
	}
}

// WithTimeout bounds a whole extraction, retries included.
func WithTimeout(d time.Duration) StructuredOption {
	return func(s *Structured) { s.timeout = d }
}

// WithRetry sets the retry policy for transient backend errors.
func WithRetry(cfg retry.Config) StructuredOption {
	return func(s *Structured) { s.retry = cfg }
}

// WithStructuredThreshold overrides DefaultThreshold.
func WithStructuredThreshold(t float64) StructuredOption {
	return func(s *Structured) { s.threshold = t }
}

// WithStructuredLogger sets the logger.
func WithStructuredLogger(l zerolog.Logger) StructuredOption {
	return func(s *Structured) { s.logger = l.With().Str("component", "parser.structured").Logger() }
}

// NewStructured returns an extractor backed by gen.
func NewStructured(gen llm.StructuredGenerator, r *dates.Resolver, opts ...StructuredOption) *Structured {
	s := &Structured{
		gen:       gen,
		dates:     r,
		workflows: DefaultWorkflows,
		threshold: DefaultThreshold,
		timeout:   20 * time.Second,
		retry:     retry.Config{MaxAttempts: 1},
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ModelID reports the backend model.
func (s *Structured) ModelID() string {
	if s.gen == nil {
		return ""
	}
	return s.gen.ModelID()
}

// toolOutput mirrors the tool schema. Pointers mark required fields.
type toolOutput struct {
	IsTask        *bool          `json:"isTask"`
	Confidence    *float64       `json:"confidence"`
	MessageType   string         `json:"messageType"`
	Action        string         `json:"action"`
	TaskTitle     string         `json:"taskTitle"`
	TaskReference string         `json:"taskReference"`
	CommentText   string         `json:"commentText"`
	NewTaskTitle  string         `json:"newTaskTitle"`
	NewTags       []string       `json:"newTags"`
	AssigneeNames []string       `json:"assigneeNames"`
	Deadline      string         `json:"deadline"`
	Status        string         `json:"status"`
	Priority      string         `json:"priority"`
	WorkflowType  string         `json:"workflowType"`
	BlockedBy     string         `json:"blockedBy"`
	BatchItems    []string       `json:"batchItems"`
	Metadata      map[string]any `json:"metadata"`
	Reasoning     *string        `json:"reasoning"`
}

// Classify implements Classifier.
func (s *Structured) Classify(ctx context.Context, req Request) (*models.Extraction, error) {
	if s.gen == nil {
		return nil, perrors.ErrNoProvider
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	slugs := make([]string, 0, len(s.workflows))
	names := make([]string, 0, len(s.workflows))
	for _, w := range s.workflows {
		slugs = append(slugs, w.Slug)
		names = append(names, strings.ToLower(w.Name))
	}

	sreq := llm.StructuredRequest{
		System:      systemPrompt,
		Instruction: buildInstruction(req, names),
		Tool:        extractionTool(slugs),
	}

	cfg := s.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			s.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying extraction")
		}
	}
	raw, err := retry.Value(ctx, cfg, func(ctx context.Context) (json.RawMessage, error) {
		return s.gen.GenerateStructured(ctx, sreq)
	})
	if err != nil {
		return nil, fmt.Errorf("structured extraction: %w", err)
	}
	return s.decode(raw, req.Users)
}

func (s *Structured) decode(raw json.RawMessage, users []models.User) (*models.Extraction, error) {
	var out toolOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, perrors.Malformed("decode %s: %v", extractionToolName, err)
	}
	if out.IsTask == nil || out.Confidence == nil || out.Reasoning == nil || out.MessageType == "" {
		return nil, perrors.Malformed("missing required fields")
	}
	mt := models.MessageType(out.MessageType)
	if !mt.Valid() {
		return nil, perrors.Malformed("unknown messageType %q", out.MessageType)
	}

	confidence := clamp01(*out.Confidence)
	ext := &models.Extraction{
		Confidence:    confidence,
		IsTaskWorthy:  *out.IsTask && confidence >= s.threshold,
		MessageType:   mt,
		TaskTitle:     strings.TrimSpace(out.TaskTitle),
		TaskReference: strings.TrimSpace(out.TaskReference),
		CommentText:   strings.TrimSpace(out.CommentText),
		NewTaskTitle:  strings.TrimSpace(out.NewTaskTitle),
		NewTags:       nonEmpty(out.NewTags),
		Assignees:     resolveAssignees(out.AssigneeNames, users),
		BlockedBy:     strings.TrimSpace(out.BlockedBy),
		BatchItems:    nonEmpty(out.BatchItems),
		Metadata:      models.Sanitize(out.Metadata),
		Reasoning:     *out.Reasoning,
		Source:        models.SourceStructured,
	}
	if a := models.Action(out.Action); a.Valid() {
		ext.Action = a
	}
	if st := models.Status(out.Status); st.Valid() {
		ext.Status = st
	}
	if p := models.Priority(out.Priority); p.Valid() {
		ext.Priority = p
	}
	if wf := strings.TrimSpace(out.WorkflowType); wf != "" {
		ext.WorkflowType = models.SlugOf(wf)
	}
	if out.Deadline != "" {
		ext.Deadline = s.dates.ResolvePtr(out.Deadline)
	}
	ext.Suggestions = batchSuggestions(ext.BatchItems)
	return ext, nil
}

// resolveAssignees maps names to user ids by case-insensitive containment in
// either direction. The first directory match wins for each name.
func resolveAssignees(names []string, users []models.User) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		for _, u := range users {
			un := strings.ToLower(u.Name)
			if un == "" {
				continue
			}
			if strings.Contains(un, n) || strings.Contains(n, un) {
				if !seen[u.ID] {
					seen[u.ID] = true
					ids = append(ids, u.ID)
				}
				break
			}
		}
	}
	return ids
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
