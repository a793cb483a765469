// Package knowledge is the static FAQ catalog. Lookups are keyed by a
// normalized topic so the interpreter's phrasing variations land on the same
// answer; no topic match falls through to the evaluation-offer template.
package knowledge

import (
	"strings"
)

// answers is keyed by canonical topic.
var answers = map[string]string{
	"horario":     "Atendemos de segunda a sexta, das 08:00 às 18:00.",
	"endereco":    "Estamos na Rua das Acácias, 120, Centro. Tem estacionamento no local.",
	"convenio":    "Trabalhamos com os principais convênios odontológicos. Traga sua carteirinha na primeira visita.",
	"limpeza":     "A limpeza dental leva cerca de 40 minutos e é recomendada a cada seis meses.",
	"clareamento": "O clareamento é feito em consultório, em geral em duas sessões. A avaliação inicial define o protocolo.",
	"canal":       "O tratamento de canal costuma levar de uma a três sessões, conforme o caso.",
	"extracao":    "Extrações simples são feitas na própria clínica, com anestesia local.",
	"implante":    "Implantes exigem uma avaliação com radiografia antes do planejamento.",
	"ortodontia":  "Oferecemos aparelhos fixos e alinhadores. A manutenção é mensal.",
	"avaliacao":   "A consulta de avaliação é sem custo e sem compromisso.",
}

// aliases maps common phrasings onto canonical topics.
var aliases = map[string]string{
	"horarios":            "horario",
	"horario de atendimento": "horario",
	"funcionamento":       "horario",
	"onde fica":           "endereco",
	"localizacao":         "endereco",
	"plano":               "convenio",
	"convenios":           "convenio",
	"limpeza dental":      "limpeza",
	"profilaxia":          "limpeza",
	"clareamento dental":  "clareamento",
	"tratamento de canal": "canal",
	"extracao de dente":   "extracao",
	"implantes":           "implante",
	"aparelho":            "ortodontia",
	"consulta":            "avaliacao",
}

// Base answers FAQ topics from the static catalog above.
type Base struct{}

func NewBase() *Base {
	return &Base{}
}

// Answer returns the canned answer for a topic, if one exists.
func (b *Base) Answer(topic string) (string, bool) {
	key := Normalize(topic)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	answer, ok := answers[key]
	return answer, ok
}

// Normalize lowercases, strips common pt-BR accents and collapses spaces so
// lookups survive spelling variation.
func Normalize(topic string) string {
	lowered := strings.ToLower(strings.TrimSpace(topic))
	var b strings.Builder
	for _, r := range lowered {
		switch r {
		case 'á', 'à', 'â', 'ã':
			b.WriteRune('a')
		case 'é', 'ê':
			b.WriteRune('e')
		case 'í':
			b.WriteRune('i')
		case 'ó', 'ô', 'õ':
			b.WriteRune('o')
		case 'ú', 'ü':
			b.WriteRune('u')
		case 'ç':
			b.WriteRune('c')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
