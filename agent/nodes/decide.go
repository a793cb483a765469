package pipelinenode

import (
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/engine"
)

// Decide runs the decision engine. An interpretation that already failed, or
// an engine defect, falls back to the generic apology template; the customer
// is never left without an answer over an internal error.
func Decide(in *GraphState, eng *engine.Engine) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	if in.Failure != nil {
		in.Decision = engine.FallbackDecision(in.Interpretation.Intent, in.Interpretation.Confidence)
		return in, nil
	}

	d, err := eng.Decide(in.Conversation, in.Interpretation, in.Now)
	if err != nil {
		in.fail("decision", err.Error())
		in.Decision = engine.FallbackDecision(in.Interpretation.Intent, in.Interpretation.Confidence)
		return in, nil
	}
	in.Decision = d
	return in, nil
}
