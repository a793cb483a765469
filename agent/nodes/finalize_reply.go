package pipelinenode

import (
	"fmt"
	"strings"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// FinalizeReply shapes the outbound contract for a processed turn.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	text := strings.TrimSpace(in.ReplyText)
	if text == "" {
		return GraphOutput{}, fmt.Errorf("%w: reply text is empty", contract.ErrValidation)
	}

	var ref string
	if in.ToolOK {
		ref = in.ToolRef
	}

	return GraphOutput{
		Reply: contract.Reply{
			TraceID:        in.TraceID,
			Status:         contract.StatusProcessed,
			Intent:         in.Decision.Intent,
			ReplyText:      text,
			Confidence:     in.Decision.Confidence,
			AppointmentRef: ref,
		},
		Failure: in.Failure,
	}, nil
}

// DuplicateReply answers a retried delivery: acknowledged, not reprocessed,
// no outbound text.
func DuplicateReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}
	return GraphOutput{
		Reply: contract.Reply{
			TraceID: in.TraceID,
			Status:  contract.StatusDuplicate,
		},
	}, nil
}
