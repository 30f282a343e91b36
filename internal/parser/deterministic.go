package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/p-blackswan/tally/internal/dates"
	"github.com/p-blackswan/tally/internal/models"
)

// Deterministic is the rule-based classifier. It never fails.
type Deterministic struct {
	dates     *dates.Resolver
	threshold float64
}

// DeterministicOption configures a Deterministic classifier.
type DeterministicOption func(*Deterministic)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) DeterministicOption {
	return func(d *Deterministic) { d.threshold = t }
}

// NewDeterministic returns a rule-based classifier resolving deadlines with r.
func NewDeterministic(r *dates.Resolver, opts ...DeterministicOption) *Deterministic {
	d := &Deterministic{dates: r, threshold: DefaultThreshold}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Classify implements Classifier. Conversation and open tasks are ignored.
func (d *Deterministic) Classify(_ context.Context, req Request) (*models.Extraction, error) {
	return d.Parse(req.Text, req.Users), nil
}

// Parse classifies text against the rule tables.
func (d *Deterministic) Parse(text string, users []models.User) *models.Extraction {
	trimmed := strings.TrimSpace(text)

	for _, re := range greetingPatterns {
		if re.MatchString(trimmed) {
			return &models.Extraction{
				Confidence:   0.1,
				IsTaskWorthy: false,
				MessageType:  models.MessageConversation,
				Reasoning:    "conversational greeting or acknowledgement",
				Source:       models.SourceDeterministic,
			}
		}
	}

	action, weight, groups := detectAction(trimmed)
	indicators := detectIndicators(trimmed)
	boost := float64(len(indicators)) * indicatorBoost
	if boost > maxBoost {
		boost = maxBoost
	}
	confidence := clamp01(weight + boost)

	ext := &models.Extraction{
		Confidence:   confidence,
		IsTaskWorthy: confidence >= d.threshold,
		Action:       action,
		Source:       models.SourceDeterministic,
	}
	ext.Reasoning = fmt.Sprintf("action %s (weight %.2f)", action, weight)
	if len(indicators) > 0 {
		ext.Reasoning += "; indicators: " + strings.Join(indicators, ", ")
	}

	switch {
	case action == models.ActionComment:
		ext.MessageType = models.MessageComment
		if len(groups) > 1 {
			ext.CommentText = strings.TrimSpace(groups[1])
			ext.TaskReference = ext.CommentText
		}
	case ext.IsTaskWorthy:
		ext.MessageType = models.MessageTask
	case strings.HasSuffix(trimmed, "?"):
		ext.MessageType = models.MessageQuestion
	default:
		ext.MessageType = models.MessageObservation
	}

	if !ext.IsTaskWorthy {
		return ext
	}

	if items := detectBatch(trimmed, users); len(items) >= 2 {
		ext.BatchItems = items
		ext.Suggestions = batchSuggestions(items)
	}

	if action == models.ActionHandoff && len(groups) > 2 {
		ext.TaskTitle = cleanTitle(groups[1], groups[1])
		ext.Assignees = matchAssignees(groups[2], users)
	} else if action != models.ActionComment {
		ext.TaskTitle = cleanTitle(trimmed, trimmed)
		ext.Assignees = matchAssignees(trimmed, users)
	}

	ext.Deadline = d.dates.ResolvePtr(trimmed)
	ext.Status = lookup(trimmed, statusKeywords)
	ext.Priority = lookup(trimmed, priorityKeywords)
	ext.WorkflowType = detectWorkflow(trimmed)

	if action == models.ActionBlock {
		ext.BlockedBy = extractBlocker(trimmed)
	}
	ext.Metadata = extractMetadata(trimmed, ext.WorkflowType, users)

	return ext
}

func detectAction(text string) (models.Action, float64, []string) {
	for _, rule := range actionRules {
		for _, re := range rule.patterns {
			if m := re.FindStringSubmatch(text); m != nil {
				return rule.action, rule.weight, m
			}
		}
	}
	return defaultAction, defaultWeight, nil
}

func detectIndicators(text string) []string {
	var found []string
	for _, fam := range indicatorFamilies {
		for _, re := range fam.patterns {
			if re.MatchString(text) {
				found = append(found, fam.name)
				break
			}
		}
	}
	return found
}

func lookup[T any](text string, table []keywordRule[T]) T {
	lower := strings.ToLower(text)
	for _, rule := range table {
		if strings.Contains(lower, rule.keyword) {
			return rule.value
		}
	}
	var zero T
	return zero
}

func detectWorkflow(text string) string {
	for _, rule := range workflowRules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.workflow
			}
		}
	}
	return ""
}

func extractBlocker(text string) string {
	for _, re := range blockerPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), ".!")
		}
	}
	return ""
}

// cleanTitle strips leading verbs and articles and trailing filler. When
// nothing is left the first characters of fallback are used.
func cleanTitle(text, fallback string) string {
	title := strings.TrimSpace(text)
	for _, re := range titleLeading {
		title = strings.TrimSpace(re.ReplaceAllString(title, ""))
	}
	for _, re := range titleTrailing {
		title = strings.TrimSpace(re.ReplaceAllString(title, ""))
	}

	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen]) + "..."
	}
	if title == "" {
		r := []rune(strings.TrimSpace(fallback))
		if len(r) > fallbackTitleLen {
			r = r[:fallbackTitleLen]
		}
		title = string(r)
	}
	return title
}

// matchAssignees returns, in directory order, every user named in text by
// full name, first name or @mention.
func matchAssignees(text string, users []models.User) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, u := range users {
		if u.Name == "" || seen[u.ID] {
			continue
		}
		if mentions(text, u.Name) {
			ids = append(ids, u.ID)
			seen[u.ID] = true
		}
	}
	return ids
}

func mentions(text, name string) bool {
	alts := []string{regexp.QuoteMeta(name)}
	if first := firstName(name); len(first) >= 3 && first != name {
		alts = append(alts, regexp.QuoteMeta(first))
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\w@])@?(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return strings.Contains(strings.ToLower(text), strings.ToLower(name))
	}
	return re.MatchString(text)
}
