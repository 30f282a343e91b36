package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 1024
	defaultModel        = "claude-sonnet-4-20250514"
)

// AnthropicProvider implements StructuredGenerator with the Messages API,
// forcing a single tool call whose input is the structured result.
type AnthropicProvider struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	logger    zerolog.Logger
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens caps the response size. Non-positive values keep the default.
func WithMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the default client. A nil client is ignored.
func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) {
		if c != nil {
			p.client = c
		}
	}
}

func WithBaseURL(u string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

func WithLogger(l zerolog.Logger) AnthropicOption {
	return func(p *AnthropicProvider) { p.logger = l.With().Str("component", "llm.anthropic").Logger() }
}

// NewAnthropicProvider constructs a new Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    apiKey,
		model:     defaultModel,
		baseURL:   anthropicAPIBase,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *AnthropicProvider) ModelID() string { return p.model }

// ---- Anthropic wire types ----

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicRequest struct {
	Model      string               `json:"model"`
	MaxTokens  int                  `json:"max_tokens"`
	System     string               `json:"system,omitempty"`
	Messages   []anthropicMessage   `json:"messages"`
	Tools      []anthropicTool      `json:"tools"`
	ToolChoice *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) buildRequest(req StructuredRequest) anthropicRequest {
	maxTok := p.maxTokens
	if req.MaxTokens > 0 {
		maxTok = req.MaxTokens
	}
	return anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTok,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Instruction}},
		Tools: []anthropicTool{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			InputSchema: req.Tool.InputSchema,
		}},
		ToolChoice: &anthropicToolChoice{Type: "tool", Name: req.Tool.Name},
	}
}

// GenerateStructured sends a blocking request and returns the forced tool
// call's input.
func (p *AnthropicProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, perrors.ErrNoProvider
	}

	ar := p.buildRequest(req)
	body, err := json.Marshal(ar)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("anthropic http: %w: %v", perrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed anthropicResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Type + ": " + parsed.Error.Message
		}
		return nil, perrors.NewAPIError("anthropic", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, perrors.Malformed("anthropic response: %v", decodeErr)
	}

	p.logger.Debug().
		Str("model", ar.Model).
		Str("stop_reason", parsed.StopReason).
		Int("in_tokens", parsed.Usage.InputTokens).
		Int("out_tokens", parsed.Usage.OutputTokens).
		Msg("anthropic complete")

	for _, block := range parsed.Content {
		if block.Type == "tool_use" && block.Name == req.Tool.Name {
			if len(block.Input) == 0 {
				return nil, perrors.Malformed("tool %s returned no input", block.Name)
			}
			return block.Input, nil
		}
	}
	return nil, perrors.Malformed("no %s tool call in response (stop_reason %s)", req.Tool.Name, parsed.StopReason)
}
