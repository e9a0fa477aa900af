package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

// Config targets any OpenAI-compatible chat-completions endpoint (Azure
// OpenAI, OpenRouter, a local model runner).
type Config struct {
	BaseURL             string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey              string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model               string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionTokens int           `envconfig:"MAX_COMPLETION_TOKENS" split_words:"true" default:"2000"`
	Temperature         float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout             time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenAIGateway adapts a hosted chat-completion API to the ModelResponse
// contract. Provider failures are normalized here; no caller branches on
// provider response shapes.
type OpenAIGateway struct {
	client       openai.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
}

var _ contractx.Gateway = (*OpenAIGateway)(nil)

func New(cfg Config, systemPrompt string) (*OpenAIGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		// Rate-limit retries are handled by the orchestrator, not the client.
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIGateway{
		client:       openai.NewClient(opts...),
		model:        strings.TrimSpace(cfg.Model),
		systemPrompt: strings.TrimSpace(systemPrompt),
		maxTokens:    cfg.MaxCompletionTokens,
		temperature:  cfg.Temperature,
	}, nil
}

// Complete serializes turns oldest first, preserving role labels, and
// returns either a final answer or the first tool invocation the model
// requested.
func (g *OpenAIGateway) Complete(
	ctx context.Context,
	turns []contractx.Turn,
	tools []contractx.Descriptor,
) (contractx.ModelResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: g.serialize(turns),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}
	params.Temperature = openai.Float(g.temperature)
	if len(tools) > 0 {
		params.Tools = toToolParams(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.ModelResponse{}, normalizeError(err)
	}
	if len(resp.Choices) == 0 {
		return contractx.ModelResponse{}, &contractx.ProviderError{Message: "response has no choices"}
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		return contractx.FinalAnswer(strings.TrimSpace(message.Content)), nil
	}

	// Single-hop design: only the first requested call is honored.
	call := message.ToolCalls[0]
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.ModelResponse{}, &contractx.ProviderError{
				Message: fmt.Sprintf("malformed tool call arguments for %s", call.Function.Name),
			}
		}
	}

	return contractx.ToolCall(contractx.ToolRequest{
		ID:   call.ID,
		Tool: call.Function.Name,
		Args: args,
	}), nil
}

func (g *OpenAIGateway) serialize(turns []contractx.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if g.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(g.systemPrompt))
	}

	for i, turn := range turns {
		switch turn.Role {
		case contractx.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case contractx.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		case contractx.RoleTool:
			// The wire protocol requires a tool result to follow an
			// assistant message carrying the matching call id, so the
			// recorded tool turn is replayed as that pair.
			callID := turn.ToolCallID
			if callID == "" {
				callID = fmt.Sprintf("call_replay_%d", i)
			}
			messages = append(messages, assistantToolCallMessage(callID, turn.ToolName))
			messages = append(messages, openai.ToolMessage(turn.Content, callID))
		}
	}
	return messages
}

func assistantToolCallMessage(callID, toolName string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			ToolCalls: []openai.ChatCompletionMessageToolCallParam{
				{
					ID: callID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      toolName,
						Arguments: "{}",
					},
				},
			},
		},
	}
}

func toToolParams(tools []contractx.Descriptor) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, desc := range tools {
		properties := make(map[string]any, len(desc.Params))
		required := make([]string, 0, len(desc.Params))
		for _, p := range desc.Params {
			properties[p.Name] = map[string]string{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}

		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        desc.Name,
				Description: openai.String(desc.Description),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return params
}

func normalizeError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: status=%d", contractx.ErrAuthentication, apiErr.StatusCode)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: status=%d", contractx.ErrRateLimit, apiErr.StatusCode)
		default:
			return &contractx.ProviderError{Status: apiErr.StatusCode, Message: apiErr.Message}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", contractx.ErrTimeout, err)
	}
	return &contractx.ProviderError{Message: err.Error()}
}
