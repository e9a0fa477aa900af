package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Model:               "gpt-4o-mini",
		MaxCompletionTokens: 100,
		Temperature:         0.5,
		Timeout:             5 * time.Second,
	}
}

func completionJSON(content string) string {
	return `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [
			{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": ` + jsonString(content) + `}
			}
		]
	}`
}

func toolCallJSON(callID, name, args string) string {
	return `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"choices": [
			{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{
							"id": ` + jsonString(callID) + `,
							"type": "function",
							"function": {"name": ` + jsonString(name) + `, "arguments": ` + jsonString(args) + `}
						}
					]
				}
			}
		]
	}`
}

func jsonString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *OpenAIGateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := New(testConfig(srv.URL), "You are a helpful assistant.")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw
}

func TestCompleteFinalAnswer(t *testing.T) {
	t.Parallel()

	var gotRequest map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("Hello there.")))
	})

	turns := []contractx.Turn{
		{Role: contractx.RoleUser, Content: "hi", Timestamp: time.Now()},
	}
	resp, err := gw.Complete(context.Background(), turns, nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.IsToolCall() {
		t.Fatal("Complete() returned a tool call, want final answer")
	}
	if resp.Text != "Hello there." {
		t.Fatalf("text = %q", resp.Text)
	}

	messages, ok := gotRequest["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("request carried %d messages, want system + user", len(messages))
	}
	if _, present := gotRequest["tools"]; present {
		t.Fatal("request carried tools, want none")
	}
}

func TestCompleteParsesToolCall(t *testing.T) {
	t.Parallel()

	var gotRequest map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallJSON("call_abc", "get_aws_news", `{"topic":"s3","number_of_results":3}`)))
	})

	tools := []contractx.Descriptor{
		{
			Name:        "get_aws_news",
			Description: "Returns AWS news for a topic.",
			Endpoint:    "http://localhost:8000/tools/get_aws_news",
			Params: []contractx.Param{
				{Name: "topic", Type: "string", Required: true},
				{Name: "number_of_results", Type: "integer"},
			},
		},
	}
	turns := []contractx.Turn{
		{Role: contractx.RoleUser, Content: "any s3 news?", Timestamp: time.Now()},
	}

	resp, err := gw.Complete(context.Background(), turns, tools)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !resp.IsToolCall() {
		t.Fatal("Complete() returned final answer, want tool call")
	}
	if resp.ToolCall.ID != "call_abc" || resp.ToolCall.Tool != "get_aws_news" {
		t.Fatalf("tool call = %+v", resp.ToolCall)
	}
	if resp.ToolCall.Args["topic"] != "s3" {
		t.Fatalf("args = %v", resp.ToolCall.Args)
	}
	if resp.ToolCall.Args["number_of_results"] != float64(3) {
		t.Fatalf("args = %v", resp.ToolCall.Args)
	}

	sentTools, ok := gotRequest["tools"].([]any)
	if !ok || len(sentTools) != 1 {
		t.Fatalf("request carried %d tools, want 1", len(sentTools))
	}
	toolEntry, _ := sentTools[0].(map[string]any)
	if toolEntry["type"] != "function" {
		t.Fatalf("tool entry type = %v, want function", toolEntry["type"])
	}
	fn, _ := toolEntry["function"].(map[string]any)
	if fn["name"] != "get_aws_news" {
		t.Fatalf("tool function = %v", fn)
	}
	schema, _ := fn["parameters"].(map[string]any)
	if schema["type"] != "object" {
		t.Fatalf("tool parameters = %v", schema)
	}
}

func TestCompleteReplaysToolTurnAsCallPair(t *testing.T) {
	t.Parallel()

	var gotRequest map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("Here is the news.")))
	})

	turns := []contractx.Turn{
		{Role: contractx.RoleUser, Content: "any s3 news?", Timestamp: time.Now()},
		{Role: contractx.RoleTool, Content: "S3 launched X.", ToolCallID: "call_abc", ToolName: "get_aws_news", Timestamp: time.Now()},
	}
	if _, err := gw.Complete(context.Background(), turns, nil); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	messages, _ := gotRequest["messages"].([]any)
	// system + user + synthetic assistant tool_call + tool result
	if len(messages) != 4 {
		t.Fatalf("request carried %d messages, want 4", len(messages))
	}

	assistant, _ := messages[2].(map[string]any)
	if assistant["role"] != "assistant" {
		t.Fatalf("message 2 role = %v", assistant["role"])
	}
	calls, _ := assistant["tool_calls"].([]any)
	if len(calls) != 1 {
		t.Fatalf("assistant message carried %d tool calls, want 1", len(calls))
	}
	callEntry, _ := calls[0].(map[string]any)
	if callEntry["id"] != "call_abc" || callEntry["type"] != "function" {
		t.Fatalf("tool call entry = %v", callEntry)
	}
	callFn, _ := callEntry["function"].(map[string]any)
	if callFn["name"] != "get_aws_news" {
		t.Fatalf("tool call function = %v", callFn)
	}

	toolMsg, _ := messages[3].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_abc" {
		t.Fatalf("tool message = %v", toolMsg)
	}
}

func TestCompleteMalformedToolArguments(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallJSON("call_abc", "get_aws_news", `{not json`)))
	})

	_, err := gw.Complete(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Content: "hi", Timestamp: time.Now()},
	}, nil)

	var provErr *contractx.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
}

func TestCompleteNormalizesProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: contractx.ErrAuthentication},
		{name: "forbidden", status: http.StatusForbidden, want: contractx.ErrAuthentication},
		{name: "rate limited", status: http.StatusTooManyRequests, want: contractx.ErrRateLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
			})

			_, err := gw.Complete(context.Background(), []contractx.Turn{
				{Role: contractx.RoleUser, Content: "hi", Timestamp: time.Now()},
			}, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Complete() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCompleteServerErrorBecomesProviderError(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream exploded", "type": "test"}}`))
	})

	_, err := gw.Complete(context.Background(), []contractx.Turn{
		{Role: contractx.RoleUser, Content: "hi", Timestamp: time.Now()},
	}, nil)

	var provErr *contractx.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Complete() error = %v, want *ProviderError", err)
	}
	if provErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", provErr.Status)
	}
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing api key", cfg: Config{Model: "gpt-4o-mini"}},
		{name: "missing model", cfg: Config{APIKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, ""); !errors.Is(err, contractx.ErrValidation) {
				t.Fatalf("New() error = %v, want ErrValidation", err)
			}
		})
	}
}
