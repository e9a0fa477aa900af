package contract

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication  = errors.New("provider rejected credentials")
	ErrRateLimit       = errors.New("provider throttled the request")
	ErrTimeout         = errors.New("call timed out")
	ErrToolUnavailable = errors.New("tool endpoint unreachable")
	ErrToolArgument    = errors.New("tool arguments violate schema")
	ErrUnknownTool     = errors.New("tool is not registered")
	ErrValidation      = errors.New("validation failed")
)

// ProviderError is any other non-2xx model provider response.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error status=%d: %s", e.Status, e.Message)
}

// ToolHTTPError is a non-2xx response from a tool endpoint.
type ToolHTTPError struct {
	Status int
}

func (e *ToolHTTPError) Error() string {
	return fmt.Sprintf("tool endpoint returned status=%d", e.Status)
}
