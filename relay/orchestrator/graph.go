package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/natthaponj/relaybot/relay/nodes"
)

func (o *Orchestrator) compilePassGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.PassState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("append_user_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PassState) (*nodex.PassState, error) {
			return nodex.AppendUserTurn(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_user_turn: %w", err)
	}

	if err := graph.AddLambdaNode("call_model",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PassState) (*nodex.PassState, error) {
			return nodex.CallModel(ctx, in, o.store, o.gateway, o.registry, o.retry)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node call_model: %w", err)
	}

	if err := graph.AddLambdaNode("tool_hop",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PassState) (*nodex.PassState, error) {
			return nodex.ToolHop(ctx, in, o.store, o.registry, o.gateway, o.retry)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node tool_hop: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_answer",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.PassState) (nodex.GraphOutput, error) {
			return nodex.FinalizeAnswer(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_answer: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.PassState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("pass state is nil")
			}
			if in.Resp.IsToolCall() {
				return "tool_hop", nil
			}
			return "finalize_answer", nil
		},
		map[string]bool{
			"tool_hop":        true,
			"finalize_answer": true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate_request: %w", err)
	}
	if err := graph.AddEdge("validate_request", "append_user_turn"); err != nil {
		return nil, fmt.Errorf("add edge validate_request->append_user_turn: %w", err)
	}
	if err := graph.AddEdge("append_user_turn", "call_model"); err != nil {
		return nil, fmt.Errorf("add edge append_user_turn->call_model: %w", err)
	}
	if err := graph.AddBranch("call_model", branch); err != nil {
		return nil, fmt.Errorf("add branch call_model: %w", err)
	}
	if err := graph.AddEdge("tool_hop", "finalize_answer"); err != nil {
		return nil, fmt.Errorf("add edge tool_hop->finalize_answer: %w", err)
	}
	if err := graph.AddEdge("finalize_answer", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize_answer->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("relay.pass"))
	if err != nil {
		return nil, fmt.Errorf("compile pass graph: %w", err)
	}
	return runner, nil
}
