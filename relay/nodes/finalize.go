package nodes

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

// FinalizeAnswer appends the assistant turn and yields the reply.
func FinalizeAnswer(ctx context.Context, in *PassState, store contractx.Store) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: pass state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Resp.Text)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: model returned an empty reply", contractx.ErrValidation)
	}

	turn := contractx.NewTurn(contractx.RoleAssistant, reply, in.stamp())
	if err := store.Append(ctx, in.SessionID, turn); err != nil {
		return GraphOutput{}, err
	}
	return GraphOutput{Reply: reply}, nil
}
