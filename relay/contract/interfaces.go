package contract

import "context"

// Gateway adapts one hosted chat-completion API. Implementations must
// serialize turns oldest first, preserve role labels, and normalize
// provider failures into the taxonomy in errors.go.
type Gateway interface {
	Complete(ctx context.Context, turns []Turn, tools []Descriptor) (ModelResponse, error)
}

// Registry maps tool names to external HTTP invocation contracts.
type Registry interface {
	DescribeAll() []Descriptor
	Invoke(ctx context.Context, tool string, args map[string]any) (string, error)
}

// Store is the bounded, session-scoped record of prior turns.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Read(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// TurnLog is an external durable collaborator consulted by the store when
// configured. ListRecent returns up to k turns, oldest first.
type TurnLog interface {
	ListRecent(ctx context.Context, sessionID string, k int) ([]Turn, error)
	Record(ctx context.Context, sessionID string, turn Turn) error
}

// Poster delivers digest text onto an outbound channel.
type Poster interface {
	Post(ctx context.Context, text string) error
}
