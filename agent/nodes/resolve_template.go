package pipelinenode

import (
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
	templatex "github.com/sorrisolabs/agendabot/agent/template"
)

// ResolveTemplate renders the decision's template. The booking reference from
// a successful tool call is injected here, the one value the engine could not
// know at decide time.
func ResolveTemplate(in *GraphState, catalog *templatex.Catalog) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	action := in.Decision.Action
	if in.Decision.StoreToolRef && in.ToolOK && in.ToolRef != "" {
		action = action.WithContext(contract.EntityCode, in.ToolRef)
	}

	rendered, err := catalog.Resolve(action)
	if err != nil {
		// The catalog is validated at startup, so this is a defect. Resolve
		// the placeholder-free fallback instead of replying blank.
		in.fail("template", err.Error())
		rendered, err = catalog.Resolve(contract.Action{
			Type:        contract.ActionFallbackError,
			TemplateKey: "fallback_error",
		})
		if err != nil {
			return nil, err
		}
	}

	in.ResolvedText = rendered.Text
	return in, nil
}
