package nlu

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

func TestNarrowValidOutput(t *testing.T) {
	t.Parallel()

	i := &Interpreter{logger: zerolog.Nop()}
	got := i.narrow(llmInterpretation{
		Intent:     "schedule",
		Entities:   map[string]string{"date": "2026-09-10", "time": "14:00"},
		Confidence: 0.93,
	})

	if got.Intent != contract.IntentSchedule {
		t.Fatalf("intent = %s", got.Intent)
	}
	if v, ok := got.Entity(contract.EntityDate); !ok || v != "2026-09-10" {
		t.Fatalf("date entity lost: %v %v", v, ok)
	}
	if got.Confidence != 0.93 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
}

func TestNarrowUnknownIntentDegrades(t *testing.T) {
	t.Parallel()

	i := &Interpreter{logger: zerolog.Nop()}
	got := i.narrow(llmInterpretation{Intent: "teleport", Confidence: 0.99})

	if got.Intent != contract.IntentUnknown || got.Confidence != 0 {
		t.Fatalf("schema violation must degrade to unknown/0, got %+v", got)
	}
}

func TestNarrowDropsUnknownEntitiesAndClamps(t *testing.T) {
	t.Parallel()

	i := &Interpreter{logger: zerolog.Nop()}
	got := i.narrow(llmInterpretation{
		Intent: "faq",
		Entities: map[string]string{
			"topic":      "horario",
			"mood":       "happy",
			"date":       "",
			"confidence": "high",
		},
		Confidence: 1.7,
	})

	if got.Confidence != 1 {
		t.Fatalf("confidence must clamp to 1, got %v", got.Confidence)
	}
	if _, ok := got.Entity("mood"); ok {
		t.Fatalf("unknown entity must be dropped")
	}
	if _, ok := got.Entity(contract.EntityDate); ok {
		t.Fatalf("empty entity must be dropped")
	}
	if v, ok := got.Entity(contract.EntityTopic); !ok || v != "horario" {
		t.Fatalf("topic entity lost")
	}
}
