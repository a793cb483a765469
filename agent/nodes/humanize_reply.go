package pipelinenode

import (
	"context"
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// HumanizeReply restyles the resolved text. The generator already falls back
// to its input on any model trouble, so this node cannot lose the reply.
func HumanizeReply(ctx context.Context, in *GraphState, generator contract.Generator) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	text, err := generator.Humanize(ctx, in.Decision.Action, in.ResolvedText)
	if err != nil || text == "" {
		text = in.ResolvedText
	}
	in.ReplyText = text
	return in, nil
}
