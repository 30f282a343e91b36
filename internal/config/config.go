package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Extractor providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// API
	APIListenAddr  string `envconfig:"API_LISTEN_ADDR" default:":8090"`
	APICORSOrigins string `envconfig:"API_CORS_ORIGINS"`

	// Storage
	DBPath        string `envconfig:"DB_PATH" default:"data/tally.db"`
	WorkflowsFile string `envconfig:"WORKFLOWS_FILE"`
	SeedDemoUsers bool   `envconfig:"SEED_DEMO_USERS" default:"true"`
	PersistSeqs   bool   `envconfig:"PERSIST_SEQUENCES" default:"true"`

	// Structured extraction (optional, the deterministic classifier always runs as fallback)
	ExtractorProvider   string        `envconfig:"EXTRACTOR_PROVIDER" default:"anthropic"`
	AnthropicAPIKey     string        `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel      string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	AnthropicMaxTokens  int           `envconfig:"ANTHROPIC_MAX_TOKENS" default:"1024"`
	AnthropicBaseURL    string        `envconfig:"ANTHROPIC_BASE_URL"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel         string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OllamaModel         string        `envconfig:"OLLAMA_MODEL"`
	ExtractionTimeout   time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"20s"`
	ExtractionRetries   int           `envconfig:"EXTRACTION_RETRIES" default:"2"`
	ConfidenceThreshold float64       `envconfig:"CONFIDENCE_THRESHOLD" default:"0.6"`

	// Context window handed to the classifier
	ContextMessages int `envconfig:"CONTEXT_MESSAGES" default:"10"`
	ContextTasks    int `envconfig:"CONTEXT_TASKS" default:"10"`

	// Slack (optional, prefixed with AGENT_ like the rest of our bots)
	SlackBotToken        string `envconfig:"AGENT_SLACK_BOT_TOKEN"`
	SlackAppToken        string `envconfig:"AGENT_SLACK_APP_TOKEN"` // xapp- token for Socket Mode
	SlackAllowedChannels string `envconfig:"SLACK_ALLOWED_CHANNELS"` // comma-separated; empty allows none
	SlackReply           bool   `envconfig:"SLACK_REPLY" default:"true"`

	// MCP server (cmd/tally-mcp)
	MCPTransport  string `envconfig:"MCP_TRANSPORT" default:"stdio"` // stdio or http
	MCPListenAddr string `envconfig:"MCP_LISTEN_ADDR" default:":8091"`
}

// SlackEnabled returns true if Slack tokens are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

// SlackAllowedChannelList returns the parsed list of allowed Slack channel IDs.
// Returns nil if not configured.
func (c *Config) SlackAllowedChannelList() []string {
	return splitList(c.SlackAllowedChannels)
}

// CORSOriginList returns the parsed API CORS origins.
func (c *Config) CORSOriginList() []string {
	return splitList(c.APICORSOrigins)
}

// Provider returns the normalized extractor provider name.
func (c *Config) Provider() string {
	return strings.ToLower(strings.TrimSpace(c.ExtractorProvider))
}

// ExtractorEnabled reports whether the chosen provider has what it needs to
// run. Ollama needs only a model since the client reads OLLAMA_HOST itself.
func (c *Config) ExtractorEnabled() bool {
	switch c.Provider() {
	case ProviderAnthropic:
		return c.AnthropicAPIKey != ""
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case ProviderOllama:
		return c.OllamaModel != ""
	}
	return false
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.Provider() {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderNone:
	default:
		return fmt.Errorf("unknown EXTRACTOR_PROVIDER %q", c.ExtractorProvider)
	}
	switch c.MCPTransport {
	case "", "stdio", "http":
	default:
		return fmt.Errorf("unknown MCP_TRANSPORT %q", c.MCPTransport)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.ExtractionRetries < 0 {
		return fmt.Errorf("EXTRACTION_RETRIES must not be negative")
	}
	if c.ContextMessages < 0 || c.ContextTasks < 0 {
		return fmt.Errorf("CONTEXT_MESSAGES and CONTEXT_TASKS must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
