// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"ai-chat-backend/internal/domain/ports/adapter"
)

var _ adapter.AIProvider = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini provider using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	models := g.client.Models.All(ctx)
	var out []string
	for m := range models {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model, text string) (int, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: text}},
	}}
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.defaultModel), contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) StreamChat(ctx context.Context, model string, turns []adapter.Turn, onFragment adapter.FragmentFunc) (int, error) {
	if len(turns) == 0 {
		return 0, errors.New("gemini: no turns")
	}
	contents, system := toGenAIContents(turns)
	if len(contents) == 0 {
		return 0, errors.New("gemini: no non-system turns")
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	fragments := 0
	for resp, err := range g.client.Models.GenerateContentStream(ctx, modelOrDefault(model, g.defaultModel), contents, cfg) {
		if err != nil {
			if fragments == 0 {
				return 0, err
			}
			// Stream broke after producing output; surface the hard failure.
			return fragments, err
		}
		text := chunkText(resp)
		if text == "" {
			// Malformed or empty chunk; skip, do not abort the stream.
			continue
		}
		if err := onFragment(text); err != nil {
			return fragments, err
		}
		fragments++
	}
	return fragments, nil
}

func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return ""
	}
	return c.Content.Parts[0].Text
}

// toGenAIContents splits out the system instruction (Gemini takes it via
// config, not history) and maps the remaining turns.
func toGenAIContents(turns []adapter.Turn) ([]*genai.Content, string) {
	out := make([]*genai.Content, 0, len(turns))
	system := ""
	for _, t := range turns {
		switch strings.ToLower(t.Role) {
		case adapter.RoleSystem:
			system = t.Content
			continue
		case adapter.RoleModel:
			out = append(out, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: t.Content}},
			})
		default:
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: t.Content}},
			})
		}
	}
	return out, system
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
