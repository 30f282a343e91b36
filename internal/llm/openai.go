package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements StructuredGenerator with chat completions and a
// JSON-schema response format.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// OpenAIOption configures the provider.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model     string
	maxTokens int
	logger    zerolog.Logger
	reqOpts   []option.RequestOption
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithOpenAIBaseURL points the client at a compatible endpoint.
func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(c *openAIConfig) { c.reqOpts = append(c.reqOpts, option.WithBaseURL(u)) }
}

func WithOpenAILogger(l zerolog.Logger) OpenAIOption {
	return func(c *openAIConfig) { c.logger = l.With().Str("component", "llm.openai").Logger() }
}

// NewOpenAIProvider constructs a new OpenAI provider. SDK retries are turned
// off; the extractor owns the retry policy.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	cfg := openAIConfig{model: defaultOpenAIModel, maxTokens: defaultMaxTokens, logger: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, cfg.reqOpts...)

	return &OpenAIProvider{
		client:    openai.NewClient(reqOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		logger:    cfg.logger,
	}
}

func (p *OpenAIProvider) ModelID() string { return p.model }

// GenerateStructured asks for a completion constrained to req.Tool's schema.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	schema, err := schemaMap(req.Tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("decode tool schema: %w", err)
	}
	maxTok := p.maxTokens
	if req.MaxTokens > 0 {
		maxTok = req.MaxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Instruction))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(p.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTok)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Tool.Name,
					Description: openai.String(req.Tool.Description),
					Schema:      schema,
					Strict:      openai.Bool(false),
				},
			},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &perrors.APIError{Service: "openai", StatusCode: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
		return nil, fmt.Errorf("openai: %w: %v", perrors.ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, perrors.Malformed("openai returned no choices")
	}

	choice := resp.Choices[0]
	p.logger.Debug().
		Str("model", resp.Model).
		Str("finish_reason", string(choice.FinishReason)).
		Int64("in_tokens", resp.Usage.PromptTokens).
		Int64("out_tokens", resp.Usage.CompletionTokens).
		Msg("openai complete")

	if choice.Message.Refusal != "" {
		return nil, perrors.Malformed("openai refused: %s", choice.Message.Refusal)
	}
	obj, ok := firstObject([]byte(choice.Message.Content))
	if !ok {
		return nil, perrors.Malformed("openai content is not a JSON object")
	}
	return obj, nil
}
