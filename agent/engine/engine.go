// Package engine is the deterministic heart of the agent: given one
// conversation snapshot and one structured interpretation it always produces
// the same decision. The model extracts; this code decides.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/schedule"
	"github.com/sorrisolabs/agendabot/agent/state"
)

// Config bounds interpretation trust.
type Config struct {
	// ConfidenceFloor is the minimum interpreter confidence; anything below
	// is handled exactly like an unknown intent.
	ConfidenceFloor float64 `envconfig:"CONFIDENCE_FLOOR" split_words:"true" default:"0.6"`
}

// Decision is the engine's full verdict for one turn. Nothing here has been
// committed yet: the pipeline applies it atomically once any tool outcome is
// known.
type Decision struct {
	// Intent is the effective intent after the confidence floor.
	Intent     contract.Intent
	Confidence float64

	Action contract.Action

	// Patch/Clear are the collected-data writes to commit with the decision.
	Patch map[string]string
	Clear []string

	// PreStates are the validated transition hops committed regardless of
	// tool outcome. OnToolSuccess hops are committed only when the required
	// tool reports success.
	PreStates     []state.State
	OnToolSuccess []state.State

	// StoreToolRef stores the tool's reference id under confirmation_code.
	StoreToolRef bool
}

// FinalState resolves the state the conversation ends in for a given tool
// outcome.
func (d Decision) FinalState(current state.State, toolOK bool) state.State {
	last := current
	if n := len(d.PreStates); n > 0 {
		last = d.PreStates[n-1]
	}
	if toolOK {
		if n := len(d.OnToolSuccess); n > 0 {
			last = d.OnToolSuccess[n-1]
		}
	}
	return last
}

// Engine evaluates the closed rule table. It holds only static collaborators
// (calendar rules, FAQ catalog) so Decide stays a pure mapping.
type Engine struct {
	calendar  *schedule.Calendar
	knowledge contract.Knowledge
	floor     float64
}

func New(calendar *schedule.Calendar, knowledge contract.Knowledge, cfg Config) *Engine {
	floor := cfg.ConfidenceFloor
	if floor < 0 || floor > 1 {
		floor = 0.6
	}
	return &Engine{
		calendar:  calendar,
		knowledge: knowledge,
		floor:     floor,
	}
}

// Decide maps (conversation, interpretation) to a decision. It never mutates
// the conversation; identical inputs always yield identical output. A rule
// that would leave the declared transition table fails with
// ErrInvalidTransition and no decision.
func (e *Engine) Decide(conv *state.Conversation, res contract.Interpretation, now time.Time) (Decision, error) {
	if conv == nil {
		return Decision{}, fmt.Errorf("%w: nil conversation", contract.ErrValidation)
	}
	if err := conv.Validate(); err != nil {
		return Decision{}, err
	}

	intent := res.Intent
	if _, ok := contract.KnownIntents[intent]; !ok || res.Confidence < e.floor {
		intent = contract.IntentUnknown
	}

	view := newDataView(conv, e.admitEntities(res, now))

	var d Decision
	switch intent {
	case contract.IntentGreeting:
		d = decideGreeting()
	case contract.IntentSchedule:
		d = decideSchedule(conv.Current, view)
	case contract.IntentReschedule:
		d = decideReschedule(conv.Current, view)
	case contract.IntentConfirm:
		d = decideConfirm(conv.Current, view)
	case contract.IntentDeny:
		d = decideDeny(conv.Current, view)
	case contract.IntentCancel:
		d = decideCancel(conv.Current, view)
	case contract.IntentFAQ:
		d = e.decideFAQ(res)
	default:
		// Unknown intent or confidence below the floor: clarify, touch
		// nothing.
		d = clarifyDecision("clarify")
	}

	d.Intent = intent
	d.Confidence = res.Confidence
	d.Patch = view.patch
	d.Clear = view.cleared

	if err := validateHops(conv.Current, d); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// admitEntities filters interpreter entities through the business calendar.
// Out-of-range values are dropped, which downstream reads as "absent".
func (e *Engine) admitEntities(res contract.Interpretation, now time.Time) map[string]string {
	admitted := make(map[string]string, len(res.Entities))
	if raw, ok := res.Entity(contract.EntityDate); ok {
		if d, valid := e.calendar.AdmitDate(raw, now); valid {
			admitted[contract.EntityDate] = d
		}
	}
	if raw, ok := res.Entity(contract.EntityTime); ok {
		if t, valid := e.calendar.AdmitTime(raw); valid {
			admitted[contract.EntityTime] = t
		}
	}
	if v, ok := res.Entity(contract.EntityProcedure); ok {
		admitted[contract.EntityProcedure] = v
	}
	if v, ok := res.Entity(contract.EntityCode); ok {
		admitted[contract.EntityCode] = v
	}
	return admitted
}

func validateHops(current state.State, d Decision) error {
	at := current
	for _, next := range append(append([]state.State(nil), d.PreStates...), d.OnToolSuccess...) {
		if !at.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s (action=%s)", contract.ErrInvalidTransition, at, next, d.Action.Type)
		}
		at = next
	}
	return nil
}

// ToolFailureDecision is the deterministic error-recovery branch: state and
// collected data stay untouched and the user gets a retry template.
func ToolFailureDecision(intent contract.Intent, confidence float64) Decision {
	return Decision{
		Intent:     intent,
		Confidence: confidence,
		Action: contract.Action{
			Type:        contract.ActionToolError,
			TemplateKey: "tool_error",
			Context:     map[string]string{},
		},
	}
}

// SlotConflictDecision answers a booking that raced into an already-taken
// slot: the pending time is dropped, the flow steps back to time collection
// and the reply offers the open slots for the same date.
func SlotConflictDecision(intent contract.Intent, confidence float64, alternatives []string) Decision {
	return Decision{
		Intent:     intent,
		Confidence: confidence,
		Action: contract.Action{
			Type:        contract.ActionSuggestAlternatives,
			TemplateKey: "slot_conflict",
			Context:     map[string]string{"alternatives": strings.Join(alternatives, ", ")},
		},
		Clear:     []string{contract.EntityTime},
		PreStates: []state.State{state.StateDateCollected},
	}
}

// FallbackDecision answers a turn that hit a configuration defect or an
// invalid transition: generic apology, no mutation.
func FallbackDecision(intent contract.Intent, confidence float64) Decision {
	return Decision{
		Intent:     intent,
		Confidence: confidence,
		Action: contract.Action{
			Type:        contract.ActionFallbackError,
			TemplateKey: "fallback_error",
			Context:     map[string]string{},
		},
	}
}

// Apply commits a decision onto a copy of the conversation: data writes,
// validated transitions, audit history, expiry refresh. The original record
// is untouched so a failed turn never leaves partial state behind.
func Apply(conv *state.Conversation, d Decision, toolOK bool, toolRef string, now time.Time, ttl time.Duration) (*state.Conversation, error) {
	next := conv.Clone()

	for _, key := range d.Clear {
		delete(next.CollectedData, key)
	}
	for key, value := range d.Patch {
		if err := next.Set(key, value); err != nil {
			return nil, err
		}
	}

	hops := append([]state.State(nil), d.PreStates...)
	if toolOK {
		hops = append(hops, d.OnToolSuccess...)
		if d.StoreToolRef && toolRef != "" {
			if err := next.Set(contract.EntityCode, toolRef); err != nil {
				return nil, err
			}
		}
	}
	for _, hop := range hops {
		if err := next.Transition(hop); err != nil {
			return nil, err
		}
	}

	next.AppendHistory(d.Intent, d.Action.Type)
	next.Touch(now, ttl)

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
