package pipelinenode

import (
	"context"
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// CheckDuplicate claims the message id. A duplicate delivery short-circuits
// the rest of the graph; an unreachable guard store aborts the turn so the
// provider retries instead of us double-processing.
func CheckDuplicate(ctx context.Context, in *GraphState, guard contract.IdempotencyGuard) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	outcome, err := guard.Accept(ctx, in.Msg.MessageID)
	if err != nil {
		return nil, err
	}
	in.Duplicate = outcome == contract.GuardDuplicate
	return in, nil
}
