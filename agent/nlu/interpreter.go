// Package nlu is the interpretation boundary: free text in, a validated
// Interpretation out. Model failures never leak; they degrade to
// {unknown, 0} so the decision engine stays deterministic.
package nlu

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/schedule"
	openrouterx "github.com/sorrisolabs/agendabot/pkg/openrouter"
)

// knownEntities is the closed slot set; anything else the model emits is
// dropped at the boundary.
var knownEntities = map[string]struct{}{
	contract.EntityDate:      {},
	contract.EntityTime:      {},
	contract.EntityProcedure: {},
	contract.EntityTopic:     {},
	contract.EntityCode:      {},
}

// Interpreter implements contract.Interpreter over a structured-output model
// graph.
type Interpreter struct {
	runner compose.Runnable[map[string]any, llmInterpretation]
	logger zerolog.Logger
}

func New(ctx context.Context, builder openrouterx.LLMBuilder, systemPrompt string, logger zerolog.Logger) (*Interpreter, error) {
	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("nlu: build chat model: %w", err)
	}
	runner, err := compileInterpreterGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("nlu: %w", err)
	}
	return &Interpreter{
		runner: runner,
		logger: logger.With().Str("component", "nlu").Logger(),
	}, nil
}

// Extract classifies one message. A model error or unparseable response
// returns the degraded {unknown, 0} interpretation together with a wrapped
// ErrInterpretation; a parseable but schema-violating response degrades
// silently.
func (i *Interpreter) Extract(ctx context.Context, text string, now time.Time) (contract.Interpretation, error) {
	raw, err := i.runner.Invoke(ctx, map[string]any{
		"input": text,
		"today": now.Format(schedule.DateLayout),
	})
	if err != nil {
		i.logger.Warn().Err(err).Msg("interpretation failed")
		return degraded(), fmt.Errorf("%w: %v", contract.ErrInterpretation, err)
	}

	return i.narrow(raw), nil
}

// narrow converts raw model output into the closed contract shape.
func (i *Interpreter) narrow(raw llmInterpretation) contract.Interpretation {
	intent := contract.Intent(raw.Intent)
	if _, ok := contract.KnownIntents[intent]; !ok {
		i.logger.Warn().
			Err(fmt.Errorf("%w: intent %q", contract.ErrSchemaViolation, raw.Intent)).
			Msg("degraded model response")
		return degraded()
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var entities map[string]string
	for name, value := range raw.Entities {
		if _, ok := knownEntities[name]; !ok || value == "" {
			continue
		}
		if entities == nil {
			entities = make(map[string]string, len(raw.Entities))
		}
		entities[name] = value
	}

	return contract.Interpretation{
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
	}
}

func degraded() contract.Interpretation {
	return contract.Interpretation{Intent: contract.IntentUnknown, Confidence: 0}
}
