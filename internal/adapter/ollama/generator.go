package ollama

import (
	"context"
	"fmt"

	"selfrag-orchestrator/internal/domain"
)

// Generator implements domain.Generator via free-text chat (no format
// constraint).
type Generator struct {
	client *Client
}

// NewGenerator wraps a chat client as the generation service.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.client.chat(ctx, prompt, nil, generationTemperature)
	if err != nil {
		return "", fmt.Errorf("generate: %w: %w", domain.ErrGenerationUnavailable, err)
	}
	if text == "" {
		return "", fmt.Errorf("generate: %w: empty model response", domain.ErrGenerationUnavailable)
	}
	return text, nil
}

func (g *Generator) ModelName() string {
	return g.client.Model()
}

var _ domain.Generator = (*Generator)(nil)
