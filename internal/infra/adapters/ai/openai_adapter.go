// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"ai-chat-backend/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIProvider = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the provider port over the official SDK's
// streaming Chat Completions API. OpenAI exposes no counting endpoint, so
// CountTokens runs the model's tiktoken encoding locally; unknown models
// return an error and callers fall back to the heuristic.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{o.model}, nil
}

func (o *OpenAIAdapter) CountTokens(ctx context.Context, model, text string) (int, error) {
	if model == "" {
		model = o.model
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return 0, fmt.Errorf("no encoding for model %q: %w", model, err)
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (o *OpenAIAdapter) StreamChat(ctx context.Context, model string, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error) {
	if model == "" {
		model = o.model
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case adapter.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		case adapter.RoleModel:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	defer stream.Close()

	fragments := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue // skip malformed chunk
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onFragment(delta); err != nil {
			return fragments, err
		}
		fragments++
	}
	if err := stream.Err(); err != nil {
		return fragments, err
	}
	return fragments, nil
}
