package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

const toolFallbackReply = "I could not complete the lookup this time. Please try again or rephrase your question."

// ToolHop performs the single tool round-trip of a pass: invoke the
// requested tool exactly once, append a tool turn with the result or the
// failure summary, then resubmit the window without tool descriptors so
// the model produces the final text.
func ToolHop(
	ctx context.Context,
	in *PassState,
	store contractx.Store,
	registry contractx.Registry,
	gw contractx.Gateway,
	retry RetryPolicy,
) (*PassState, error) {
	if in == nil || in.Resp.ToolCall == nil {
		return nil, fmt.Errorf("%w: pass has no tool call", contractx.ErrValidation)
	}

	call := *in.Resp.ToolCall
	result, invokeErr := registry.Invoke(ctx, call.Tool, call.Args)

	content := result
	if invokeErr != nil {
		log.Warn().Err(invokeErr).Str("tool", call.Tool).Str("session_id", in.SessionID).
			Msg("tool invocation failed")
		content = fmt.Sprintf("tool %s failed: %v", call.Tool, invokeErr)
	}

	toolTurn := contractx.Turn{
		Role:       contractx.RoleTool,
		Content:    content,
		Timestamp:  in.stamp(),
		ToolCallID: call.ID,
		ToolName:   call.Tool,
	}
	if err := store.Append(ctx, in.SessionID, toolTurn); err != nil {
		return nil, err
	}

	window, err := store.Read(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.Window = window

	// Single hop: no descriptors on the resubmission.
	resp, err := CompleteWithRetry(ctx, gw, window, nil, retry)
	if err != nil {
		return nil, err
	}
	if resp.IsToolCall() {
		// The model asked for a second hop it was not offered; surface a
		// fallback instead of looping.
		resp = contractx.FinalAnswer(toolFallbackReply)
	}
	in.Resp = resp
	return in, nil
}
