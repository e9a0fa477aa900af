package contract

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one role-tagged message unit in a conversation. Immutable once
// appended to a store. ToolCallID and ToolName are set only on tool turns
// so the gateway can replay them in the provider's expected shape.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
}

func NewTurn(role Role, content string, now time.Time) Turn {
	return Turn{
		Role:      role,
		Content:   content,
		Timestamp: now.UTC(),
	}
}

// Param describes one argument the model may populate when requesting a
// tool invocation.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Descriptor is the static invocation contract for one external HTTP tool.
// Loaded once at startup and advertised to the model on every pass.
type Descriptor struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Params      []Param `json:"params,omitempty" yaml:"params,omitempty"`
}

// ToolRequest is a model-issued tool invocation. Transient, it exists only
// within one orchestrator pass.
type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ModelResponse is a tagged union: either final text or a tool request,
// never both. IsToolCall distinguishes the variants.
type ModelResponse struct {
	Text     string
	ToolCall *ToolRequest
}

func (r ModelResponse) IsToolCall() bool {
	return r.ToolCall != nil
}

func FinalAnswer(text string) ModelResponse {
	return ModelResponse{Text: text}
}

func ToolCall(req ToolRequest) ModelResponse {
	return ModelResponse{ToolCall: &req}
}
