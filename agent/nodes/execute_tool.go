package pipelinenode

import (
	"context"
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/engine"
)

// ExecuteTool runs the side-effecting call the decision asks for, if any. On
// failure the whole decision is swapped for the deterministic error-recovery
// branch: no data patch, no state hops, retry template.
func ExecuteTool(ctx context.Context, in *GraphState, executor contract.ToolExecutor) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	action := in.Decision.Action
	if !action.RequiresTool {
		in.ToolOK = true
		return in, nil
	}

	res := executor.Execute(ctx, action.ToolName, toolArgs(in))
	if !res.Success {
		in.ToolOK = false
		// A booking that lost the slot race is a business outcome, not a
		// defect: drop the pending time and offer what is still open.
		if action.ToolName == contract.ToolCreateAppointment && len(res.Alternatives) > 0 {
			in.Decision = engine.SlotConflictDecision(in.Decision.Intent, in.Decision.Confidence, res.Alternatives)
			return in, nil
		}
		in.fail("tool", fmt.Sprintf("%s: %s", action.ToolName, res.Err))
		in.Decision = engine.ToolFailureDecision(in.Decision.Intent, in.Decision.Confidence)
		return in, nil
	}

	in.ToolOK = true
	in.ToolRef = res.ReferenceID
	return in, nil
}

// toolArgs is the committed-view data the tool sees: persisted collected data
// overlaid with this turn's patch, plus the customer identity.
func toolArgs(in *GraphState) map[string]string {
	args := make(map[string]string, len(in.Conversation.CollectedData)+len(in.Decision.Patch)+1)
	for k, v := range in.Conversation.CollectedData {
		args[k] = v
	}
	for _, k := range in.Decision.Clear {
		delete(args, k)
	}
	for k, v := range in.Decision.Patch {
		args[k] = v
	}
	args["customer_id"] = in.Msg.From
	return args
}
