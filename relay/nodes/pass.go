package nodes

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply string
}

// PassState carries one orchestrator pass through the graph.
type PassState struct {
	SessionID string
	Text      string
	Now       time.Time
	Clock     func() time.Time

	Window []contractx.Turn
	Resp   contractx.ModelResponse
}

// stamp yields the current time from the pass clock. Later nodes use it
// so tool and assistant turns get fresh timestamps, never the request
// entry time already spent on the user turn.
func (s *PassState) stamp() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*PassState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &PassState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
		Clock:     nowFn,
	}, nil
}
