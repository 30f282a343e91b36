package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/metrics"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/requestid"
)

// Chain tries a primary classifier and falls back to the rule-based one on
// any error or panic. The fallback sees only the text and the directory.
type Chain struct {
	primary  Classifier
	fallback *Deterministic
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewChain wraps primary. A nil primary means the rules run alone.
func NewChain(primary Classifier, fallback *Deterministic, m *metrics.Metrics, logger zerolog.Logger) *Chain {
	return &Chain{
		primary:  primary,
		fallback: fallback,
		metrics:  m,
		logger:   logger.With().Str("component", "parser.chain").Logger(),
	}
}

// HasPrimary reports whether a structured backend is configured.
func (c *Chain) HasPrimary() bool { return c.primary != nil }

// Classify implements Classifier. It never returns an error.
func (c *Chain) Classify(ctx context.Context, req Request) (*models.Extraction, error) {
	return c.Extract(ctx, req), nil
}

// Extract returns a complete extraction for req.
func (c *Chain) Extract(ctx context.Context, req Request) *models.Extraction {
	if c.primary != nil {
		start := time.Now()
		ext, err := c.tryPrimary(ctx, req)
		if err == nil && ext != nil {
			c.metrics.RecordExtraction(models.SourceStructured, metrics.OutcomeOK, time.Since(start))
			return ext
		}
		if err == nil {
			err = fmt.Errorf("primary classifier returned no extraction")
		}

		l := requestid.Logger(ctx, c.logger)
		log := l.Warn().Err(err)
		if m, ok := c.primary.(interface{ ModelID() string }); ok {
			log = log.Str("model", m.ModelID())
		}
		log.Msg("structured extraction failed, using deterministic classifier")
		c.metrics.RecordExtraction(models.SourceStructured, metrics.OutcomeFallback, time.Since(start))
		c.metrics.RecordError("parser", "structured_extraction")
	}

	start := time.Now()
	ext := c.fallback.Parse(req.Text, req.Users)
	c.metrics.RecordExtraction(models.SourceDeterministic, metrics.OutcomeOK, time.Since(start))
	return ext
}

func (c *Chain) tryPrimary(ctx context.Context, req Request) (ext *models.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("primary classifier panicked: %v", r)
		}
	}()
	return c.primary.Classify(ctx, req)
}
