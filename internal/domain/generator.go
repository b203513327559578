package domain

import "context"

// Generator is the external free-text generation capability. Failures wrap
// ErrGenerationUnavailable.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
