package pipelinenode

import (
	"context"
	"fmt"
	"time"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/engine"
	statex "github.com/sorrisolabs/agendabot/agent/state"
)

// CommitState applies the decision onto the conversation and persists the
// result in one step. A failed save aborts the turn so the idempotency claim
// can be released and the delivery retried.
func CommitState(ctx context.Context, in *GraphState, store statex.Store, ttl time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	committed, err := engine.Apply(in.Conversation, in.Decision, in.ToolOK, in.ToolRef, in.Now, ttl)
	if err != nil {
		// Apply failing after a validated decision is a defect; answer with
		// the fallback and keep the stored record untouched.
		in.fail("commit", err.Error())
		in.Decision = engine.FallbackDecision(in.Decision.Intent, in.Decision.Confidence)
		return in, nil
	}

	if err := store.Save(ctx, committed); err != nil {
		return nil, err
	}
	in.Conversation = committed
	return in, nil
}
