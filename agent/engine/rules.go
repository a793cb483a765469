package engine

import (
	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/state"
)

// dataView is the engine's working view over collected data: the persisted
// snapshot overlaid with this turn's admitted entities. Rules read and write
// the view; only the resulting patch/clear lists leave the engine.
type dataView struct {
	existing map[string]string
	admitted map[string]string
	patch    map[string]string
	cleared  []string
	gone     map[string]struct{}
}

func newDataView(conv *state.Conversation, admitted map[string]string) *dataView {
	existing := make(map[string]string, len(conv.CollectedData))
	for k, v := range conv.CollectedData {
		existing[k] = v
	}
	return &dataView{
		existing: existing,
		admitted: admitted,
		patch:    make(map[string]string, 4),
		gone:     make(map[string]struct{}, 2),
	}
}

func (v *dataView) get(key string) (string, bool) {
	if val, ok := v.patch[key]; ok {
		return val, val != ""
	}
	if _, cleared := v.gone[key]; cleared {
		return "", false
	}
	val, ok := v.existing[key]
	return val, ok && val != ""
}

func (v *dataView) set(key, value string) {
	delete(v.gone, key)
	for i, k := range v.cleared {
		if k == key {
			v.cleared = append(v.cleared[:i], v.cleared[i+1:]...)
			break
		}
	}
	v.patch[key] = value
}

func (v *dataView) clear(key string) {
	delete(v.patch, key)
	if _, had := v.existing[key]; had {
		if _, already := v.gone[key]; !already {
			v.gone[key] = struct{}{}
			v.cleared = append(v.cleared, key)
		}
	}
}

// mergeAdmitted folds this turn's validated entities in. The first collected
// value wins; a customer restates data by denying and restarting, not by the
// interpreter silently overwriting it.
func (v *dataView) mergeAdmitted() {
	for _, key := range []string{contract.EntityProcedure, contract.EntityDate, contract.EntityTime, contract.EntityCode} {
		val, ok := v.admitted[key]
		if !ok {
			continue
		}
		if _, present := v.get(key); !present {
			v.set(key, val)
		}
	}
}

func decideGreeting() Decision {
	return Decision{
		Action: contract.Action{
			Type:        contract.ActionGreet,
			TemplateKey: "greeting",
			Context:     map[string]string{},
		},
	}
}

func clarifyDecision(templateKey string) Decision {
	return Decision{
		Action: contract.Action{
			Type:        contract.ActionClarify,
			TemplateKey: templateKey,
			Context:     map[string]string{},
		},
	}
}

// decideSchedule walks the collection ladder: date, then time, then a
// confirmation echo of both. Transitions are taken only once the matching
// value is actually on hand, so a premature intent never advances the flow.
func decideSchedule(current state.State, view *dataView) Decision {
	if current.IsTerminal() {
		return clarifyDecision("clarify")
	}
	// Scheduling on top of an existing booking is a reschedule: the stale
	// date/time would otherwise echo a confirmation no state can accept.
	if current == state.StateScheduled {
		return decideReschedule(current, view)
	}
	view.mergeAdmitted()

	date, haveDate := view.get(contract.EntityDate)
	if !haveDate {
		return Decision{
			Action: contract.Action{
				Type:        contract.ActionAskDate,
				TemplateKey: "ask_date",
				Context:     map[string]string{},
			},
		}
	}

	var hops []state.State
	at := current
	if at == state.StateInitiated {
		hops = append(hops, state.StateDateCollected)
		at = state.StateDateCollected
	}

	timeOfDay, haveTime := view.get(contract.EntityTime)
	if !haveTime {
		return Decision{
			Action: contract.Action{
				Type:         contract.ActionAskTime,
				TemplateKey:  "ask_time",
				Context:      map[string]string{"date": date},
				RequiresTool: true,
				ToolName:     contract.ToolCheckAvailability,
			},
			PreStates: hops,
		}
	}

	if at == state.StateDateCollected {
		hops = append(hops, state.StateTimeCollected)
	}
	return Decision{
		Action: contract.Action{
			Type:        contract.ActionConfirmAppointment,
			TemplateKey: "confirm_appointment",
			Context:     map[string]string{"date": date, "time": timeOfDay},
		},
		PreStates: hops,
	}
}

// decideConfirm books when a full (date, time) pair is awaiting a yes. The
// booking tool runs between the CONFIRMED and SCHEDULED hops; the second hop
// is committed only on tool success.
func decideConfirm(current state.State, view *dataView) Decision {
	if current != state.StateTimeCollected {
		return clarifyDecision("clarify_confirm")
	}
	view.mergeAdmitted()

	date, haveDate := view.get(contract.EntityDate)
	timeOfDay, haveTime := view.get(contract.EntityTime)
	if !haveDate || !haveTime {
		return clarifyDecision("clarify_confirm")
	}

	return Decision{
		Action: contract.Action{
			Type:         contract.ActionAppointmentScheduled,
			TemplateKey:  "appointment_scheduled",
			Context:      map[string]string{"date": date, "time": timeOfDay},
			RequiresTool: true,
			ToolName:     contract.ToolCreateAppointment,
		},
		PreStates:     []state.State{state.StateConfirmed},
		OnToolSuccess: []state.State{state.StateScheduled},
		StoreToolRef:  true,
	}
}

// decideDeny reverts an in-progress collection to the start and forgets the
// pending date/time. A deny against an existing booking is ambiguous and
// asks for clarification instead of touching it.
func decideDeny(current state.State, view *dataView) Decision {
	switch current {
	case state.StateInitiated, state.StateDateCollected, state.StateTimeCollected, state.StateConfirmed:
		view.clear(contract.EntityDate)
		view.clear(contract.EntityTime)
		d := Decision{
			Action: contract.Action{
				Type:        contract.ActionAskRestart,
				TemplateKey: "denied_restart",
				Context:     map[string]string{},
			},
		}
		if current != state.StateInitiated {
			d.PreStates = []state.State{state.StateInitiated}
		}
		return d
	default:
		return clarifyDecision("clarify")
	}
}

// decideCancel fires the cancellation tool once a booking reference is on
// hand, from any non-terminal state. Without one it asks for the code.
func decideCancel(current state.State, view *dataView) Decision {
	if current.IsTerminal() {
		return clarifyDecision("clarify")
	}
	view.mergeAdmitted()

	code, haveCode := view.get(contract.EntityCode)
	if !haveCode {
		return Decision{
			Action: contract.Action{
				Type:        contract.ActionAskConfirmationCode,
				TemplateKey: "ask_confirmation_code",
				Context:     map[string]string{},
			},
		}
	}

	return Decision{
		Action: contract.Action{
			Type:         contract.ActionAppointmentCanceled,
			TemplateKey:  "appointment_canceled",
			Context:      map[string]string{"confirmation_code": code},
			RequiresTool: true,
			ToolName:     contract.ToolCancelAppointment,
		},
		OnToolSuccess: []state.State{state.StateCanceled},
	}
}

// decideReschedule restarts collection while holding on to the booking being
// moved. A new date arriving with the same message is admitted immediately.
func decideReschedule(current state.State, view *dataView) Decision {
	if current.IsTerminal() {
		return clarifyDecision("clarify")
	}

	if code, ok := view.get(contract.EntityCode); ok {
		view.set("previous_confirmation_code", code)
		view.clear(contract.EntityCode)
	}
	view.clear(contract.EntityDate)
	view.clear(contract.EntityTime)

	newDate, haveDate := view.admitted[contract.EntityDate]
	if haveDate {
		view.set(contract.EntityDate, newDate)
	}
	if newTime, ok := view.admitted[contract.EntityTime]; ok && haveDate {
		view.set(contract.EntityTime, newTime)
	}

	var hops []state.State
	if current != state.StateInitiated {
		hops = append(hops, state.StateInitiated)
	}

	if !haveDate {
		return Decision{
			Action: contract.Action{
				Type:        contract.ActionAskDate,
				TemplateKey: "ask_date",
				Context:     map[string]string{},
			},
			PreStates: hops,
		}
	}

	hops = append(hops, state.StateDateCollected)
	timeOfDay, haveTime := view.get(contract.EntityTime)
	if !haveTime {
		return Decision{
			Action: contract.Action{
				Type:         contract.ActionAskTime,
				TemplateKey:  "ask_time",
				Context:      map[string]string{"date": newDate},
				RequiresTool: true,
				ToolName:     contract.ToolCheckAvailability,
			},
			PreStates: hops,
		}
	}

	hops = append(hops, state.StateTimeCollected)
	return Decision{
		Action: contract.Action{
			Type:        contract.ActionConfirmAppointment,
			TemplateKey: "confirm_appointment",
			Context:     map[string]string{"date": newDate, "time": timeOfDay},
		},
		PreStates: hops,
	}
}

// decideFAQ is orthogonal to the booking flow: static lookup, no mutation.
func (e *Engine) decideFAQ(res contract.Interpretation) Decision {
	topic, ok := res.Entity(contract.EntityTopic)
	if !ok {
		topic, ok = res.Entity(contract.EntityProcedure)
	}
	if ok {
		if answer, found := e.knowledge.Answer(topic); found {
			return Decision{
				Action: contract.Action{
					Type:        contract.ActionAnswerFAQ,
					TemplateKey: "faq_response",
					Context:     map[string]string{"answer": answer},
				},
			}
		}
	}
	return Decision{
		Action: contract.Action{
			Type:        contract.ActionAnswerFAQ,
			TemplateKey: "faq_fallback",
			Context:     map[string]string{},
		},
	}
}
