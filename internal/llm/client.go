package llm

import "context"

// Client is the interface that all LLM backends must implement.
type Client interface {
	// Name identifies the backend in logs and stats.
	Name() string

	// Chat sends a chat completion request for a concrete model name
	// and returns the normalized response.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (*Response, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}
