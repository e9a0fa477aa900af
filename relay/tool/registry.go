package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

const maxResponseSizeBytes = 2 << 20

type Config struct {
	File    string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"30s"`
}

// Option customizes a Registry.
type Option func(*Registry)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// Registry maps tool names to external HTTP invocation contracts. It
// performs exactly one POST per Invoke; retry policy belongs to the caller.
type Registry struct {
	descriptors []contractx.Descriptor
	byName      map[string]contractx.Descriptor
	httpClient  *http.Client
}

var _ contractx.Registry = (*Registry)(nil)

func NewRegistry(descriptors []contractx.Descriptor, timeout time.Duration, opts ...Option) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("at least one tool descriptor is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	byName := make(map[string]contractx.Descriptor, len(descriptors))
	for _, d := range descriptors {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, errors.New("tool descriptor has empty name")
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool descriptor %q", name)
		}
		if _, err := url.ParseRequestURI(strings.TrimSpace(d.Endpoint)); err != nil {
			return nil, fmt.Errorf("tool %q has invalid endpoint: %w", name, err)
		}
		byName[name] = d
	}

	r := &Registry{
		descriptors: append([]contractx.Descriptor(nil), descriptors...),
		byName:      byName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// DescribeAll returns the descriptor set advertised to the model.
func (r *Registry) DescribeAll() []contractx.Descriptor {
	return append([]contractx.Descriptor(nil), r.descriptors...)
}

// Invoke performs one HTTP POST to the named tool's endpoint with args as
// a JSON object and returns the textual result.
func (r *Registry) Invoke(ctx context.Context, tool string, args map[string]any) (string, error) {
	desc, ok := r.byName[strings.TrimSpace(tool)]
	if !ok {
		return "", fmt.Errorf("%w: %s", contractx.ErrUnknownTool, tool)
	}
	if err := validateArgs(desc, args); err != nil {
		return "", err
	}

	body, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: marshal args for %s: %v", contractx.ErrToolArgument, desc.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrToolUnavailable, desc.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read %s response: %v", contractx.ErrToolUnavailable, desc.Name, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &contractx.ToolHTTPError{Status: resp.StatusCode}
	}

	return extractText(raw), nil
}

func validateArgs(desc contractx.Descriptor, args map[string]any) error {
	for _, p := range desc.Params {
		val, present := args[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: %s requires %q", contractx.ErrToolArgument, desc.Name, p.Name)
			}
			continue
		}
		if !kindMatches(p.Type, val) {
			return fmt.Errorf("%w: %s argument %q must be %s", contractx.ErrToolArgument, desc.Name, p.Name, p.Type)
		}
	}
	for name := range args {
		if !hasParam(desc, name) {
			return fmt.Errorf("%w: %s does not accept %q", contractx.ErrToolArgument, desc.Name, name)
		}
	}
	return nil
}

func hasParam(desc contractx.Descriptor, name string) bool {
	for _, p := range desc.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func kindMatches(paramType string, val any) bool {
	switch paramType {
	case "string":
		_, ok := val.(string)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "integer", "number":
		// JSON decoding yields float64 for all numbers.
		switch val.(type) {
		case float64, int, int64:
			return true
		}
		return false
	default:
		return true
	}
}

// extractText unwraps the common {"text": ...} / {"content": ...} JSON
// envelopes tool servers respond with; anything else passes through raw.
func extractText(raw []byte) string {
	var envelope struct {
		Text    string `json:"text"`
		Content string `json:"content"`
		Result  string `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		switch {
		case envelope.Text != "":
			return envelope.Text
		case envelope.Content != "":
			return envelope.Content
		case envelope.Result != "":
			return envelope.Result
		}
	}
	return strings.TrimSpace(string(raw))
}
