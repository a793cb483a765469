package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

func TestEveryTemplateResolvesWithFullContext(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	for _, key := range c.Keys() {
		names, err := c.Placeholders(key)
		if err != nil {
			t.Fatalf("placeholders(%s): %v", key, err)
		}
		ctx := make(map[string]string, len(names))
		for _, name := range names {
			ctx[name] = "valor"
		}

		rendered, err := c.Resolve(contract.Action{TemplateKey: key, Context: ctx})
		if err != nil {
			t.Fatalf("resolve(%s): %v", key, err)
		}
		if strings.TrimSpace(rendered.Text) == "" {
			t.Fatalf("resolve(%s) produced a blank reply", key)
		}
		if strings.Contains(rendered.Text, "{") {
			t.Fatalf("resolve(%s) left a placeholder: %q", key, rendered.Text)
		}
	}
}

func TestResolveFillsValues(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	rendered, err := c.Resolve(contract.Action{
		TemplateKey: "appointment_scheduled",
		Context: map[string]string{
			"date":              "2026-09-10",
			"time":              "14:00",
			"confirmation_code": "APPT-1A2B3C4D",
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{"2026-09-10", "14:00", "APPT-1A2B3C4D"} {
		if !strings.Contains(rendered.Text, want) {
			t.Fatalf("rendered text missing %q: %q", want, rendered.Text)
		}
	}
}

func TestResolveUnknownKey(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	_, err := c.Resolve(contract.Action{TemplateKey: "farewell"})
	if !errors.Is(err, contract.ErrUnknownTemplate) {
		t.Fatalf("want ErrUnknownTemplate, got %v", err)
	}
}

func TestResolveMissingContext(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	_, err := c.Resolve(contract.Action{
		TemplateKey: "confirm_appointment",
		Context:     map[string]string{"date": "2026-09-10"},
	})
	if !errors.Is(err, contract.ErrIncompleteContext) {
		t.Fatalf("want ErrIncompleteContext, got %v", err)
	}

	_, err = c.Resolve(contract.Action{
		TemplateKey: "confirm_appointment",
		Context:     map[string]string{"date": "2026-09-10", "time": "  "},
	})
	if !errors.Is(err, contract.ErrIncompleteContext) {
		t.Fatalf("blank value must count as missing, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	if err := c.Validate(c.Keys()); err != nil {
		t.Fatalf("validate own keys: %v", err)
	}
	if err := c.Validate([]string{"greeting", "farewell"}); !errors.Is(err, contract.ErrUnknownTemplate) {
		t.Fatalf("missing required key must fail, got %v", err)
	}
}
