// Package parser turns chat messages into task extractions. A rule-based
// classifier is always available; a model-backed extractor can sit in front
// of it and falls back to the rules on any failure.
package parser

import (
	"context"
	"fmt"

	"github.com/p-blackswan/tally/internal/models"
)

// DefaultThreshold is the confidence at which a message counts as trackable
// work. Both classifiers use the same cut-off.
const DefaultThreshold = 0.6

// ContextTask is the slice of an open task shown to the classifier.
type ContextTask struct {
	ID     string
	Title  string
	Status models.Status
}

// Request is everything a classifier may look at for one message.
type Request struct {
	Text         string
	Users        []models.User
	Conversation []string // "<name>: <content>", oldest first
	OpenTasks    []ContextTask
}

// Classifier reads one message. Implementations other than Deterministic
// may fail; wrap them with NewChain.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*models.Extraction, error)
}

func batchSuggestions(items []string) []string {
	if len(items) < 2 {
		return nil
	}
	return []string{
		fmt.Sprintf("Create %d separate tasks?", len(items)),
		"Create one grouped task?",
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
