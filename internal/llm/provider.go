package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderUnavailable indicates the configured backend could not be
// reached during setup. Analysis runs abort on this error before any
// control is processed.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
}

// Ping verifies the provider answers a trivial completion. Failure maps to
// ErrProviderUnavailable so callers can distinguish a dead backend from
// per-control errors later in the run.
func Ping(ctx context.Context, p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: no provider configured", ErrProviderUnavailable)
	}
	_, err := p.Complete(ctx, &Prompt{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.Name(), err)
	}
	return nil
}
