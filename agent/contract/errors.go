package contract

import "errors"

var (
	// ErrInterpretation covers timeouts and schema-invalid model output at
	// the interpreter boundary. It degrades to intent=unknown, confidence=0.
	ErrInterpretation = errors.New("interpretation failed")

	// ErrInvalidTransition means a rule produced a state outside the
	// transition table. Fatal for the turn, no mutation.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrIncompleteContext means a template placeholder had no value in the
	// action context. Configuration defect; never rendered blank.
	ErrIncompleteContext = errors.New("incomplete template context")

	// ErrUnknownTemplate means the catalog lacks a template key. Caught by
	// startup validation; at runtime it falls back to the apology template.
	ErrUnknownTemplate = errors.New("unknown template key")

	// ErrStoreUnavailable means a backing store could not be reached. Fatal
	// for the turn; the message is dead-lettered, never processed blind.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	ErrValidation      = errors.New("validation failed")
	ErrSchemaViolation = errors.New("model response violates schema")
)
