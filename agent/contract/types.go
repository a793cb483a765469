package contract

import (
	"fmt"
	"strings"
	"time"
)

// Intent is the classified purpose of one inbound message.
type Intent string

const (
	IntentSchedule   Intent = "schedule"
	IntentReschedule Intent = "reschedule"
	IntentCancel     Intent = "cancel"
	IntentConfirm    Intent = "confirm"
	IntentDeny       Intent = "deny"
	IntentFAQ        Intent = "faq"
	IntentGreeting   Intent = "greeting"
	IntentUnknown    Intent = "unknown"
)

// KnownIntents is the closed set the interpreter may emit. Anything outside
// it is a schema violation and degrades to IntentUnknown at the boundary.
var KnownIntents = map[Intent]struct{}{
	IntentSchedule:   {},
	IntentReschedule: {},
	IntentCancel:     {},
	IntentConfirm:    {},
	IntentDeny:       {},
	IntentFAQ:        {},
	IntentGreeting:   {},
	IntentUnknown:    {},
}

// Entity slot names the interpreter may fill.
const (
	EntityDate      = "date"
	EntityTime      = "time"
	EntityProcedure = "procedure"
	EntityTopic     = "topic"
	EntityCode      = "confirmation_code"
)

// Interpretation is the structured output of the interpreter boundary.
// Entity absence is a first-class signal, not an error.
type Interpretation struct {
	Intent     Intent            `json:"intent"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
}

// Entity returns the slot value and whether it is present and non-empty.
func (r Interpretation) Entity(name string) (string, bool) {
	v, ok := r.Entities[name]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// ActionType enumerates everything the agent can do next.
type ActionType string

const (
	ActionGreet                ActionType = "greet"
	ActionAskDate              ActionType = "ask_date"
	ActionAskTime              ActionType = "ask_time"
	ActionConfirmAppointment   ActionType = "confirm_appointment"
	ActionAppointmentScheduled ActionType = "appointment_scheduled"
	ActionAskConfirmationCode  ActionType = "ask_confirmation_code"
	ActionAppointmentCanceled  ActionType = "appointment_canceled"
	ActionAskRestart           ActionType = "ask_restart"
	ActionSuggestAlternatives  ActionType = "suggest_alternatives"
	ActionAnswerFAQ            ActionType = "answer_faq"
	ActionClarify              ActionType = "clarify"
	ActionToolError            ActionType = "tool_error"
	ActionFallbackError        ActionType = "fallback_error"
)

// Tool names the engine may select. Free text never reaches these directly:
// the interpreter classifies, the engine picks the tool.
const (
	ToolCheckAvailability = "check_availability"
	ToolCreateAppointment = "create_appointment"
	ToolCancelAppointment = "cancel_appointment"
)

// Action is the decision engine's output for one turn. Context is built only
// from already-collected data and tool results; the engine never invents
// values.
type Action struct {
	Type         ActionType        `json:"type"`
	TemplateKey  string            `json:"template_key"`
	Context      map[string]string `json:"context,omitempty"`
	RequiresTool bool              `json:"requires_tool,omitempty"`
	ToolName     string            `json:"tool_name,omitempty"`
}

// WithContext returns a copy of the action with one more context value set.
func (a Action) WithContext(key, value string) Action {
	ctx := make(map[string]string, len(a.Context)+1)
	for k, v := range a.Context {
		ctx[k] = v
	}
	ctx[key] = value
	a.Context = ctx
	return a
}

// ToolResult is what a side-effecting tool call reports back. Alternatives
// carries the still-open slots for the requested date when the failure is a
// slot conflict.
type ToolResult struct {
	Success      bool     `json:"success"`
	ReferenceID  string   `json:"reference_id,omitempty"`
	Err          string   `json:"error,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// InboundMessage is the normalized webhook payload handed to the pipeline.
type InboundMessage struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`

	// FromMe marks an echo of the agent's own outbound message. The
	// transport drops these before they reach the pipeline.
	FromMe bool `json:"from_me,omitempty"`
}

const (
	minMessageIDLen = 16
	maxMessageIDLen = 64
	maxBodyLen      = 4096
)

// Normalize trims the body and rewrites the sender to E.164. It rejects
// payloads that cannot identify a message or a customer.
func (m InboundMessage) Normalize() (InboundMessage, error) {
	m.MessageID = strings.TrimSpace(m.MessageID)
	if len(m.MessageID) < minMessageIDLen || len(m.MessageID) > maxMessageIDLen {
		return m, fmt.Errorf("%w: message id length must be in [%d,%d]", ErrValidation, minMessageIDLen, maxMessageIDLen)
	}

	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" || len(m.Body) > maxBodyLen {
		return m, fmt.Errorf("%w: message body is empty or too long", ErrValidation)
	}

	phone, err := NormalizePhone(m.From)
	if err != nil {
		return m, err
	}
	m.From = phone

	if m.Timestamp.IsZero() {
		return m, fmt.Errorf("%w: message timestamp is required", ErrValidation)
	}
	return m, nil
}

// NormalizePhone strips everything but digits and a leading plus, then
// prefixes the plus when missing.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, c := range strings.TrimSpace(raw) {
		if c >= '0' && c <= '9' || c == '+' {
			b.WriteRune(c)
		}
	}
	cleaned := "+" + strings.TrimLeft(b.String(), "+")
	if len(cleaned) < 8 || len(cleaned) > 16 {
		return "", fmt.Errorf("%w: phone %q is not a plausible E.164 number", ErrValidation, raw)
	}
	return cleaned, nil
}

// ReplyStatus reports how the pipeline disposed of a message.
type ReplyStatus string

const (
	StatusProcessed ReplyStatus = "processed"
	StatusDuplicate ReplyStatus = "duplicate"
)

// Reply is the outbound response contract.
type Reply struct {
	TraceID        string      `json:"trace_id"`
	Status         ReplyStatus `json:"status"`
	Intent         Intent      `json:"intent"`
	ReplyText      string      `json:"reply_text"`
	Confidence     float64     `json:"confidence"`
	AppointmentRef string      `json:"appointment_reference,omitempty"`
}
