package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/nlu.txt
	nluRaw string

	//go:embed template/nlg.txt
	nlgRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	NLU string
	NLG string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		NLU: strings.TrimSpace(nluRaw),
		NLG: strings.TrimSpace(nlgRaw),
	}
}
