// Package template owns the closed catalog of reply templates. The catalog
// is validated once at startup; after that a resolution failure is a
// configuration defect, not a user-input problem.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// catalog maps template keys to their pt-BR text. Placeholders are filled
// exclusively from the action context; a template never receives free text.
var catalog = map[string]string{
	"greeting":              "Olá! Sou a Ana, assistente da clínica OdontoSorriso. Quer agendar, remarcar ou cancelar uma consulta?",
	"ask_date":              "Para qual data você gostaria de agendar? Pode me dizer no formato ano-mês-dia, por exemplo 2026-09-15.",
	"ask_time":              "Qual horário você prefere no dia {date}? Atendemos das 08:00 às 18:00.",
	"confirm_appointment":   "Confirmando: consulta em {date} às {time}. Posso confirmar? (sim/não)",
	"appointment_scheduled": "Pronto! Sua consulta em {date} às {time} está agendada. Código de confirmação: {confirmation_code}.",
	"ask_confirmation_code": "Claro. Qual é o código de confirmação do agendamento? Ele tem o formato APPT-XXXXXXXX.",
	"appointment_canceled":  "Agendamento {confirmation_code} cancelado. Se precisar de um novo horário, é só chamar.",
	"denied_restart":        "Sem problemas, vamos recomeçar. Para qual data você gostaria de agendar?",
	"faq_response":          "{answer}",
	"faq_fallback":          "Não tenho essa informação no momento. Que tal agendar uma avaliação para conversar com a nossa equipe?",
	"slot_conflict":         "Esse horário acabou de ser reservado. Nesse dia ainda temos: {alternatives}. Algum desses serve?",
	"clarify":               "Desculpe, não entendi. Você quer agendar, remarcar ou cancelar uma consulta?",
	"clarify_confirm":       "Só para garantir: o que você está confirmando? Se preferir, podemos recomeçar o agendamento.",
	"tool_error":            "Tive um problema ao acessar a agenda agora. Pode tentar novamente em alguns instantes?",
	"fallback_error":        "Desculpe, tive um problema técnico. Pode repetir, por favor?",
}

// Rendered is a template with every placeholder filled.
type Rendered struct {
	Key  string
	Text string
}

// Catalog resolves actions against the closed template set.
type Catalog struct {
	templates map[string]string
}

func NewCatalog() *Catalog {
	return &Catalog{templates: catalog}
}

// Keys lists the catalog's template keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks at startup that every key the decision engine can emit
// exists. A missing key here aborts boot instead of surfacing mid-dialogue.
func (c *Catalog) Validate(requiredKeys []string) error {
	for _, key := range requiredKeys {
		if _, ok := c.templates[key]; !ok {
			return fmt.Errorf("%w: %q", contract.ErrUnknownTemplate, key)
		}
	}
	return nil
}

// Placeholders returns the placeholder names referenced by a template.
func (c *Catalog) Placeholders(key string) ([]string, error) {
	text, ok := c.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contract.ErrUnknownTemplate, key)
	}
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names, nil
}

// Resolve fills the action's template from its context. Every placeholder
// must resolve; a blank render is never produced.
func (c *Catalog) Resolve(action contract.Action) (Rendered, error) {
	text, ok := c.templates[action.TemplateKey]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", contract.ErrUnknownTemplate, action.TemplateKey)
	}

	var missing []string
	filled := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.Trim(match, "{}")
		value, present := action.Context[name]
		if !present || strings.TrimSpace(value) == "" {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return Rendered{}, fmt.Errorf("%w: template %q is missing %v", contract.ErrIncompleteContext, action.TemplateKey, missing)
	}

	return Rendered{Key: action.TemplateKey, Text: filled}, nil
}
