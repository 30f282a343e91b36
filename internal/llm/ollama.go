package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

// OllamaProvider implements StructuredGenerator against a local Ollama
// server, passing the tool schema as the chat format.
type OllamaProvider struct {
	client *api.Client
	model  string
	logger zerolog.Logger
}

// NewOllamaProvider wraps an existing client.
func NewOllamaProvider(client *api.Client, model string, logger zerolog.Logger) *OllamaProvider {
	return &OllamaProvider{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "llm.ollama").Logger(),
	}
}

// NewOllamaFromEnvironment builds a client from OLLAMA_HOST.
func NewOllamaFromEnvironment(model string, logger zerolog.Logger) (*OllamaProvider, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return NewOllamaProvider(client, model, logger), nil
}

func (p *OllamaProvider) ModelID() string { return p.model }

// GenerateStructured runs a non-streaming chat constrained to req.Tool's schema.
func (p *OllamaProvider) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if p.model == "" {
		return nil, perrors.ErrNoProvider
	}

	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Instruction})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.model,
		Messages: messages,
		Format:   req.Tool.InputSchema,
		Stream:   &stream,
	}

	var out strings.Builder
	var final api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, &perrors.APIError{Service: "ollama", StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage, Err: err}
		}
		return nil, fmt.Errorf("ollama: %w: %v", perrors.ErrUnavailable, err)
	}

	p.logger.Debug().
		Str("model", p.model).
		Str("done_reason", final.DoneReason).
		Int("in_tokens", final.PromptEvalCount).
		Int("out_tokens", final.EvalCount).
		Msg("ollama complete")

	obj, ok := firstObject([]byte(out.String()))
	if !ok {
		return nil, perrors.Malformed("ollama content is not a JSON object")
	}
	return obj, nil
}
