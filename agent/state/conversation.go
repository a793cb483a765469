package state

import (
	"fmt"
	"time"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// State is one step of the booking dialogue.
type State string

const (
	StateInitiated     State = "initiated"
	StateDateCollected State = "date_collected"
	StateTimeCollected State = "time_collected"
	StateConfirmed     State = "confirmed"
	StateScheduled     State = "scheduled"
	StateCanceled      State = "canceled"
)

// Transitions is the closed table of allowed moves. Staying put is not a
// transition and is always allowed; anything else must be listed here.
// Reschedule is first-class: a scheduled conversation may re-enter the
// collection flow while keeping the prior booking reference.
var Transitions = map[State][]State{
	StateInitiated:     {StateDateCollected, StateCanceled},
	StateDateCollected: {StateTimeCollected, StateInitiated, StateCanceled},
	StateTimeCollected: {StateConfirmed, StateDateCollected, StateInitiated, StateCanceled},
	StateConfirmed:     {StateScheduled, StateCanceled, StateInitiated},
	StateScheduled:     {StateCanceled, StateDateCollected, StateInitiated},
	StateCanceled:      {},
}

// CollectedKeys is the closed schema for Conversation.CollectedData.
var CollectedKeys = map[string]struct{}{
	"procedure":                  {},
	"date":                       {},
	"time":                       {},
	"confirmation_code":          {},
	"previous_confirmation_code": {},
}

// IsTerminal reports whether no further transitions exist from s.
func (s State) IsTerminal() bool {
	return len(Transitions[s]) == 0
}

// CanTransition reports whether s -> next is in the table. A self move is
// a no-op and always valid.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	for _, allowed := range Transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func validState(s State) bool {
	_, ok := Transitions[s]
	return ok
}

// maxHistory bounds the audit trail kept per conversation.
const maxHistory = 20

// HistoryEntry is one past (intent, action) pair, kept for audit and for
// disambiguating repeated intents.
type HistoryEntry struct {
	Intent string `json:"intent"`
	Action string `json:"action"`
}

// Conversation is the single mutable dialogue record per customer. It is
// loaded, copied, decided over and committed once per turn; the decision
// engine never writes to it directly.
type Conversation struct {
	CustomerID    string            `json:"customer_id"`
	Current       State             `json:"current_state"`
	CollectedData map[string]string `json:"collected_data,omitempty"`
	History       []HistoryEntry    `json:"history,omitempty"`
	ExpiresAt     time.Time         `json:"expires_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// New creates a fresh conversation in the initiated state.
func New(customerID string, now time.Time, ttl time.Duration) *Conversation {
	return &Conversation{
		CustomerID:    customerID,
		Current:       StateInitiated,
		CollectedData: make(map[string]string, 4),
		ExpiresAt:     now.UTC().Add(ttl),
		UpdatedAt:     now.UTC(),
	}
}

// Expired reports whether the record is logically dead and must be treated
// as absent.
func (c *Conversation) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Get returns a collected value and whether it is present and non-empty.
func (c *Conversation) Get(key string) (string, bool) {
	if c == nil || c.CollectedData == nil {
		return "", false
	}
	v, ok := c.CollectedData[key]
	return v, ok && v != ""
}

// Clone returns a deep copy, used to keep decisions pure and commits atomic.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.CollectedData = make(map[string]string, len(c.CollectedData))
	for k, v := range c.CollectedData {
		cp.CollectedData[k] = v
	}
	cp.History = append([]HistoryEntry(nil), c.History...)
	return &cp
}

// Transition moves the conversation to next, enforcing the table.
func (c *Conversation) Transition(next State) error {
	if !validState(next) {
		return fmt.Errorf("%w: %q is not a declared state", contract.ErrInvalidTransition, next)
	}
	if !c.Current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", contract.ErrInvalidTransition, c.Current, next)
	}
	c.Current = next
	return nil
}

// Set stores one collected value. Keys outside the declared schema are a
// programming error surfaced as validation failure.
func (c *Conversation) Set(key, value string) error {
	if _, ok := CollectedKeys[key]; !ok {
		return fmt.Errorf("%w: %q is not a declared collected-data key", contract.ErrValidation, key)
	}
	if c.CollectedData == nil {
		c.CollectedData = make(map[string]string, 4)
	}
	c.CollectedData[key] = value
	return nil
}

// AppendHistory records one (intent, action) pair, trimming to the bound.
func (c *Conversation) AppendHistory(intent contract.Intent, action contract.ActionType) {
	c.History = append(c.History, HistoryEntry{Intent: string(intent), Action: string(action)})
	if len(c.History) > maxHistory {
		c.History = c.History[len(c.History)-maxHistory:]
	}
}

// Touch refreshes the update stamp and sliding expiry.
func (c *Conversation) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now.UTC()
	c.ExpiresAt = now.UTC().Add(ttl)
}

// Validate enforces the record invariants: a declared state and a closed
// collected-data schema.
func (c *Conversation) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", contract.ErrValidation)
	}
	if c.CustomerID == "" {
		return fmt.Errorf("%w: customer id is empty", contract.ErrValidation)
	}
	if !validState(c.Current) {
		return fmt.Errorf("%w: state %q is not declared", contract.ErrValidation, c.Current)
	}
	for key := range c.CollectedData {
		if _, ok := CollectedKeys[key]; !ok {
			return fmt.Errorf("%w: collected data has undeclared key %q", contract.ErrValidation, key)
		}
	}
	return nil
}
