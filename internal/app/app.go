// Package app assembles the intake pipeline from configuration. Every binary
// builds the same pipeline through Build.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/config"
	"github.com/p-blackswan/tally/internal/dates"
	"github.com/p-blackswan/tally/internal/health"
	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/llm"
	"github.com/p-blackswan/tally/internal/metrics"
	"github.com/p-blackswan/tally/internal/naming"
	"github.com/p-blackswan/tally/internal/parser"
	"github.com/p-blackswan/tally/internal/retry"
	"github.com/p-blackswan/tally/internal/store"
	"github.com/p-blackswan/tally/internal/workflows"
)

// App is an assembled pipeline and the resources it owns.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Catalog *workflows.Catalog
	Metrics *metrics.Metrics
	Health  *health.Checker
	Chain   *parser.Chain
	Namer   *naming.Engine
	Intake  *intake.Orchestrator
}

// NewLogger returns the root logger: JSON to w, or a console writer in
// development. An unparsable level falls back to info.
func NewLogger(environment, level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).With().Timestamp().Caller().Logger()
	if environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// Build opens the store, seeds workflows and demo users, picks the extraction
// backend and wires the orchestrator. Extra intake options (a notifier, for
// instance) are applied after the defaults.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...intake.Option) (*App, error) {
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, db, logger, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *store.Store, logger zerolog.Logger, opts []intake.Option) (*App, error) {
	cat, err := catalog(cfg)
	if err != nil {
		return nil, err
	}
	seeded, err := workflows.Seed(ctx, db, cat, cfg.SeedDemoUsers, logger)
	if err != nil {
		return nil, fmt.Errorf("seeding: %w", err)
	}
	logger.Info().Int("workflows", seeded.Workflows).Int("users", seeded.Users).Msg("seed complete")

	m := metrics.New()
	resolver := dates.New()

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	chain := newChain(cfg, cat, resolver, gen, m, logger)

	var seq naming.Sequence = naming.NewMemorySequence()
	if cfg.PersistSeqs {
		seq = db.Sequences()
	}
	namer := naming.New(seq, db, naming.WithLogger(logger))

	intakeOpts := append([]intake.Option{
		intake.WithMetrics(m),
		intake.WithLogger(logger),
		intake.WithContextLimits(cfg.ContextMessages, cfg.ContextTasks),
	}, opts...)
	orch := intake.New(intake.NewSQLStore(db), chain, namer, intakeOpts...)

	checker := health.NewChecker(logger)
	checker.Register("store", health.PingCheck(db))
	checker.Register("extractor", health.CapabilityCheck(chain.HasPrimary()))

	return &App{
		Config:  cfg,
		Store:   db,
		Catalog: cat,
		Metrics: m,
		Health:  checker,
		Chain:   chain,
		Namer:   namer,
		Intake:  orch,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

func catalog(cfg *config.Config) (*workflows.Catalog, error) {
	if cfg.WorkflowsFile == "" {
		return workflows.Default()
	}
	return workflows.Load(cfg.WorkflowsFile)
}

// newChain pairs the structured extractor backed by gen with the
// deterministic fallback. Both classifiers apply the configured confidence
// threshold. A nil gen leaves the deterministic classifier in charge.
func newChain(cfg *config.Config, cat *workflows.Catalog, r *dates.Resolver, gen llm.StructuredGenerator, m *metrics.Metrics, logger zerolog.Logger) *parser.Chain {
	fallback := parser.NewDeterministic(r, parser.WithThreshold(cfg.ConfidenceThreshold))
	if gen == nil {
		logger.Info().Str("provider", cfg.Provider()).Msg("structured extraction disabled, using deterministic classifier")
		return parser.NewChain(nil, fallback, m, logger)
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.ExtractionRetries + 1
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying extraction")
	}

	logger.Info().Str("provider", cfg.Provider()).Str("model", gen.ModelID()).Msg("structured extraction enabled")
	primary := parser.NewStructured(gen, r,
		parser.WithWorkflows(cat.Vocabulary()),
		parser.WithTimeout(cfg.ExtractionTimeout),
		parser.WithRetry(rc),
		parser.WithStructuredThreshold(cfg.ConfidenceThreshold),
		parser.WithStructuredLogger(logger),
	)
	return parser.NewChain(primary, fallback, m, logger)
}

func newGenerator(cfg *config.Config, logger zerolog.Logger) (llm.StructuredGenerator, error) {
	if !cfg.ExtractorEnabled() {
		return nil, nil
	}
	switch cfg.Provider() {
	case config.ProviderAnthropic:
		return llm.NewAnthropicProvider(cfg.AnthropicAPIKey,
			llm.WithModel(cfg.AnthropicModel),
			llm.WithMaxTokens(cfg.AnthropicMaxTokens),
			llm.WithBaseURL(cfg.AnthropicBaseURL),
			llm.WithHTTPClient(extractionClient(cfg)),
			llm.WithLogger(logger),
		), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey,
			llm.WithOpenAIModel(cfg.OpenAIModel),
			llm.WithOpenAILogger(logger),
		), nil
	case config.ProviderOllama:
		p, err := llm.NewOllamaFromEnvironment(cfg.OllamaModel, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// extractionClient bounds each backend round trip by the extraction timeout.
// Without a timeout the provider keeps its own client.
func extractionClient(cfg *config.Config) *http.Client {
	if cfg.ExtractionTimeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: cfg.ExtractionTimeout}
}
