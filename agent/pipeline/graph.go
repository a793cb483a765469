package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/sorrisolabs/agendabot/agent/nodes"
)

func (s *Service) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("check_duplicate",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CheckDuplicate(ctx, in, s.guard)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node check_duplicate: %w", err)
	}

	if err := graph.AddLambdaNode("duplicate_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.DuplicateReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node duplicate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("load_conversation",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadConversation(ctx, in, s.store, s.conversationTTL)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_conversation: %w", err)
	}

	if err := graph.AddLambdaNode("interpret",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Interpret(ctx, in, s.interpreter)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node interpret: %w", err)
	}

	if err := graph.AddLambdaNode("decide",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Decide(in, s.engine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node decide: %w", err)
	}

	if err := graph.AddLambdaNode("execute_tool",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteTool(ctx, in, s.executor)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_tool: %w", err)
	}

	if err := graph.AddLambdaNode("commit_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CommitState(ctx, in, s.store, s.conversationTTL)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node commit_state: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_template",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ResolveTemplate(in, s.catalog)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_template: %w", err)
	}

	if err := graph.AddLambdaNode("humanize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HumanizeReply(ctx, in, s.generator)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node humanize_reply: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("graph state is nil")
			}
			if in.Duplicate {
				return "duplicate_reply", nil
			}
			return "load_conversation", nil
		},
		map[string]bool{
			"duplicate_reply":   true,
			"load_conversation": true,
		},
	)
	if err := graph.AddBranch("check_duplicate", branch); err != nil {
		return nil, fmt.Errorf("add duplicate branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "check_duplicate"},
		{"duplicate_reply", compose.END},
		{"load_conversation", "interpret"},
		{"interpret", "decide"},
		{"decide", "execute_tool"},
		{"execute_tool", "commit_state"},
		{"commit_state", "resolve_template"},
		{"resolve_template", "humanize_reply"},
		{"humanize_reply", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return runner, nil
}
