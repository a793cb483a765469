// Package nlg is the phrasing boundary: a fully resolved template goes in, a
// warmer phrasing comes out. The resolved text is already correct, so every
// failure mode falls back to it unchanged.
package nlg

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
	openrouterx "github.com/sorrisolabs/agendabot/pkg/openrouter"
)

// Generator implements contract.Generator over a plain chat graph.
type Generator struct {
	runner compose.Runnable[map[string]any, *schema.Message]
	logger zerolog.Logger
}

func New(ctx context.Context, builder openrouterx.LLMBuilder, systemPrompt string, logger zerolog.Logger) (*Generator, error) {
	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("nlg: build chat model: %w", err)
	}
	runner, err := compileGeneratorGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("nlg: %w", err)
	}
	return &Generator{
		runner: runner,
		logger: logger.With().Str("component", "nlg").Logger(),
	}, nil
}

// Humanize rephrases resolvedText. On model failure, blank output or any
// altered data token it returns resolvedText unchanged; the reply path never
// depends on the model behaving.
func (g *Generator) Humanize(ctx context.Context, action contract.Action, resolvedText string) (string, error) {
	msg, err := g.runner.Invoke(ctx, map[string]any{"input": resolvedText})
	if err != nil {
		g.logger.Warn().Err(err).Str("action", string(action.Type)).Msg("phrasing failed, using resolved text")
		return resolvedText, nil
	}

	out := strings.TrimSpace(msg.Content)
	if out == "" {
		g.logger.Warn().Str("action", string(action.Type)).Msg("blank phrasing, using resolved text")
		return resolvedText, nil
	}
	if !PreservesTokens(resolvedText, out) {
		g.logger.Warn().Str("action", string(action.Type)).Msg("phrasing altered data tokens, using resolved text")
		return resolvedText, nil
	}
	return out, nil
}

func compileGeneratorGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add generator prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add generator model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add generator edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add generator edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add generator edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("nlg.generator_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile generator graph: %w", err)
	}
	return runner, nil
}
