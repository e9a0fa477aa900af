package nodes

import (
	"context"
	"fmt"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

func AppendUserTurn(ctx context.Context, in *PassState, store contractx.Store) (*PassState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pass state is nil", contractx.ErrValidation)
	}

	turn := contractx.NewTurn(contractx.RoleUser, in.Text, in.Now)
	if err := store.Append(ctx, in.SessionID, turn); err != nil {
		return nil, err
	}
	return in, nil
}
