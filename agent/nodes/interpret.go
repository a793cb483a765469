package pipelinenode

import (
	"context"
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// Interpret classifies the message text. The interpreter already degrades
// model failures to {unknown, 0}; here the failure is only flagged so the
// turn is dead-lettered after the customer gets their fallback reply.
func Interpret(ctx context.Context, in *GraphState, interpreter contract.Interpreter) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	res, err := interpreter.Extract(ctx, in.Msg.Body, in.Now)
	if err != nil {
		in.fail("interpretation", err.Error())
	}
	in.Interpretation = res
	return in, nil
}
