package llm

import (
	"context"
	"errors"
)

// ErrUpstream marks any transport or API failure from the model backend.
// Callers decide what to do with it; this layer never retries.
var ErrUpstream = errors.New("model API failure")

// Request is one synchronous completion call.
type Request struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	UserText     string
	MaxTokens    int
}

// Invoker is the model-invocation client. Implementations are stateless
// and swappable; tests use Stub.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}
