// Package pipelinenode holds the per-turn graph steps. Each node takes the
// shared GraphState, does one thing, and hands it on; user-visible failure
// modes are folded into the state instead of aborting the graph.
package pipelinenode

import (
	"time"

	"github.com/google/uuid"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/engine"
	statex "github.com/sorrisolabs/agendabot/agent/state"
)

type GraphInput struct {
	Message contract.InboundMessage
	TraceID string
}

type GraphOutput struct {
	Reply   contract.Reply
	Failure *Failure
}

// Failure marks a turn that was answered with a recovery template and should
// be dead-lettered for offline inspection.
type Failure struct {
	Kind   string
	Detail string
}

type GraphState struct {
	Msg     contract.InboundMessage
	TraceID string
	Now     time.Time

	Duplicate      bool
	Conversation   *statex.Conversation
	Interpretation contract.Interpretation

	Decision engine.Decision
	ToolOK   bool
	ToolRef  string

	ResolvedText string
	ReplyText    string

	Failure *Failure
}

// fail records the first failure; later ones only add detail loss, the first
// is what gets dead-lettered.
func (s *GraphState) fail(kind, detail string) {
	if s.Failure == nil {
		s.Failure = &Failure{Kind: kind, Detail: detail}
	}
}

// ValidateRequest normalizes the inbound payload and seeds the turn state.
// Malformed payloads are the one case that aborts the graph outright.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	msg, err := in.Message.Normalize()
	if err != nil {
		return nil, err
	}

	traceID := in.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	return &GraphState{
		Msg:     msg,
		TraceID: traceID,
		Now:     nowFn().UTC(),
	}, nil
}
