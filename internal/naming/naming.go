// Package naming turns extracted task titles into short-id display names and
// tag sets, and keeps the correction log users feed back into it.
package naming

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/models"
)

const (
	// HighValueAmount is the invoice amount above which "high-value" is tagged.
	HighValueAmount = 50000

	suggestionCorrections = 10
	suggestionThreshold   = 0.5
	maxSuggestions        = 3
)

var prefixes = map[string]string{
	models.WorkflowInvoiceGeneration:     "INV",
	models.WorkflowPaymentReconciliation: "PAY",
	models.WorkflowMonthlyClose:          "CLOSE",
	models.WorkflowAnnualPlanning:        "PLAN",
	models.WorkflowModelChange:           "MODEL",
	models.WorkflowVendorOnboarding:      "VENDOR",
	models.WorkflowGeneral:               "TASK",
}

// Prefix returns the short-id prefix for a workflow type.
func Prefix(workflowType string) string {
	if p, ok := prefixes[workflowType]; ok {
		return p
	}
	return "TASK"
}

// CorrectionStore persists the correction log.
type CorrectionStore interface {
	SaveCorrection(ctx context.Context, c models.TaskNameCorrection) error
	RecentCorrections(ctx context.Context, workflowType string, limit int) ([]models.TaskNameCorrection, error)
}

// Result is the outcome of Enhance.
type Result struct {
	EnhancedTitle string   `json:"enhancedTitle"`
	ShortID       string   `json:"shortId"`
	Tags          []string `json:"tags"`
	Reasoning     string   `json:"reasoning"`
}

// Engine generates task names and tags.
type Engine struct {
	seq         Sequence
	corrections CorrectionStore
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for default years and correction timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l.With().Str("component", "naming").Logger() }
}

// New creates an Engine. A nil seq uses a MemorySequence; a nil corrections
// store disables the learning hooks.
func New(seq Sequence, corrections CorrectionStore, opts ...Option) *Engine {
	if seq == nil {
		seq = NewMemorySequence()
	}
	e := &Engine{
		seq:         seq,
		corrections: corrections,
		now:         time.Now,
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enhance allocates the next short id for workflowType and renders the
// workflow's title template and tags. Only a sequence failure is an error.
func (e *Engine) Enhance(ctx context.Context, rawTitle, workflowType string, md models.Metadata) (Result, error) {
	key := workflowType
	if _, ok := prefixes[key]; !ok {
		key = models.WorkflowGeneral
	}
	n, err := e.seq.Next(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("next %s sequence: %w", key, err)
	}
	id := fmt.Sprintf("%s-%04d", Prefix(key), n)

	title, tags := e.render(id, rawTitle, key, md)
	if tag, ok := monthTag(rawTitle, md); ok {
		tags = append(tags, tag)
	}
	tags = dedupe(tags)

	return Result{
		EnhancedTitle: title,
		ShortID:       id,
		Tags:          tags,
		Reasoning:     fmt.Sprintf("Auto-enhanced with %s and %d tags based on %s workflow", id, len(tags), workflowTypeLabel(workflowType)),
	}, nil
}

func (e *Engine) render(id, raw, workflowType string, md models.Metadata) (string, []string) {
	str := func(key string) string {
		s, _ := md.String(key)
		return s
	}
	amount := ""
	amt, hasAmount := md.Float(models.MetaAmount)
	if hasAmount && amt != 0 {
		amount = "$" + formatAmount(amt)
	}

	switch workflowType {
	case models.WorkflowInvoiceGeneration:
		customer := str(models.MetaCustomerName)
		tags := []string{"invoice", "billing"}
		if customer != "" {
			tags = append(tags, strings.ToLower(customer))
		} else {
			customer = "Unknown"
		}
		if hasAmount && amt > HighValueAmount {
			tags = append(tags, "high-value")
		}
		if inv := str(models.MetaInvoiceNumber); inv != "" {
			return strings.TrimSpace(fmt.Sprintf("%s: %s - %s %s", id, inv, customer, amount)), tags
		}
		return strings.TrimSpace(fmt.Sprintf("%s: %s Invoice %s", id, customer, amount)), tags

	case models.WorkflowPaymentReconciliation:
		tags := []string{"payment", "reconciliation"}
		if inv := str(models.MetaInvoiceNumber); inv != "" {
			tags = append(tags, strings.ToLower(inv))
			return strings.TrimSpace(fmt.Sprintf("%s: Reconcile %s %s", id, inv, amount)), tags
		}
		return fmt.Sprintf("%s: %s", id, raw), tags

	case models.WorkflowMonthlyClose:
		tags := []string{"monthly-close", "financial-reporting"}
		month := str(models.MetaMonth)
		if month == "" {
			return fmt.Sprintf("%s: %s", id, raw), tags
		}
		tags = append(tags, strings.ToLower(month))
		year := str(models.MetaYear)
		if year == "" {
			year = strconv.Itoa(e.now().Year())
		}
		return fmt.Sprintf("%s: %s %s Financial Close", id, month, year), tags

	case models.WorkflowAnnualPlanning:
		tags := []string{"planning", "annual", "budgeting"}
		year := str(models.MetaYear)
		if year != "" {
			tags = append(tags, "fy"+year)
		} else {
			year = strconv.Itoa(e.now().Year() + 1)
		}
		if dept := str(models.MetaDepartment); dept != "" {
			return fmt.Sprintf("%s: FY%s %s Budget Planning", id, year, dept), tags
		}
		return fmt.Sprintf("%s: FY%s Annual Plan", id, year), tags

	case models.WorkflowModelChange:
		tags := []string{"model", "change-control"}
		version := str(models.MetaVersion)
		if version != "" {
			tags = append(tags, "v"+version)
		}
		if name := str(models.MetaModelName); version != "" && name != "" {
			return fmt.Sprintf("%s: %s v%s", id, name, version), tags
		}
		return fmt.Sprintf("%s: %s", id, raw), tags

	case models.WorkflowVendorOnboarding:
		tags := []string{"vendor", "onboarding"}
		category := str(models.MetaCategory)
		if category != "" {
			tags = append(tags, strings.ToLower(category))
		}
		vendor := str(models.MetaVendorName)
		if vendor == "" {
			return fmt.Sprintf("%s: %s", id, raw), tags
		}
		if category != "" {
			return fmt.Sprintf("%s: Onboard %s (%s)", id, vendor, category), tags
		}
		return fmt.Sprintf("%s: Onboard %s", id, vendor), tags
	}

	return fmt.Sprintf("%s: %s", id, raw), []string{"general"}
}

func workflowTypeLabel(wf string) string {
	if wf == "" {
		return models.WorkflowGeneral
	}
	return wf
}

// RecordCorrection appends c to the correction log. Storage failures are
// logged and dropped.
func (e *Engine) RecordCorrection(ctx context.Context, c models.TaskNameCorrection) {
	if e.corrections == nil {
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = e.now().UTC()
	}
	c.WorkflowType = workflowTypeLabel(c.WorkflowType)
	if c.OriginalTags == nil {
		c.OriginalTags = []string{}
	}
	if c.CorrectedTags == nil {
		c.CorrectedTags = []string{}
	}
	if err := e.corrections.SaveCorrection(ctx, c); err != nil {
		e.logger.Warn().Err(err).
			Str("workflow_type", c.WorkflowType).
			Msg("failed to record naming correction")
	}
}

// Suggestions proposes up to three corrected titles from past corrections of
// the same workflow type whose original title resembles title. Storage
// failures yield no suggestions.
func (e *Engine) Suggestions(ctx context.Context, title, workflowType string) []string {
	if e.corrections == nil || strings.TrimSpace(title) == "" {
		return nil
	}
	recent, err := e.corrections.RecentCorrections(ctx, workflowTypeLabel(workflowType), suggestionCorrections)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("workflow_type", workflowType).
			Msg("failed to load naming corrections")
		return nil
	}

	var out []string
	for _, c := range recent {
		if wordSimilarity(title, c.OriginalTitle) > suggestionThreshold {
			out = append(out, fmt.Sprintf(`Consider: "%s" (based on similar past correction)`, c.CorrectedTitle))
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}
