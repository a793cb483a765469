// Package pipeline wires the per-turn graph: dedupe, state, interpretation,
// decision, tools, templates, phrasing. One Handle call is one webhook
// delivery end to end.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/engine"
	nodex "github.com/sorrisolabs/agendabot/agent/nodes"
	statex "github.com/sorrisolabs/agendabot/agent/state"
	templatex "github.com/sorrisolabs/agendabot/agent/template"
)

// requiredTemplateKeys is everything the rule table can select; the catalog
// is checked against it once, at construction.
var requiredTemplateKeys = []string{
	"greeting",
	"ask_date",
	"ask_time",
	"confirm_appointment",
	"appointment_scheduled",
	"ask_confirmation_code",
	"appointment_canceled",
	"denied_restart",
	"faq_response",
	"faq_fallback",
	"clarify",
	"clarify_confirm",
	"slot_conflict",
	"tool_error",
	"fallback_error",
}

type Config struct {
	ConversationTTL time.Duration `envconfig:"CONVERSATION_TTL" split_words:"true" default:"1h"`
	LockTTL         time.Duration `envconfig:"LOCK_TTL" split_words:"true" default:"30s"`

	// ReplayInterval drives the dead-letter replay loop; zero disables it.
	ReplayInterval time.Duration `envconfig:"REPLAY_INTERVAL" split_words:"true" default:"5m"`
	ReplayBatch    int           `envconfig:"REPLAY_BATCH" split_words:"true" default:"20"`
}

// Service owns one compiled graph plus the collaborators its nodes need.
type Service struct {
	store       statex.Store
	guard       contract.IdempotencyGuard
	locker      contract.Locker
	interpreter contract.Interpreter
	generator   contract.Generator
	executor    contract.ToolExecutor
	engine      *engine.Engine
	catalog     *templatex.Catalog
	deadLetters contract.DeadLetterSink

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	conversationTTL time.Duration
	lockTTL         time.Duration
	logger          zerolog.Logger
	now             func() time.Time
}

func New(
	store statex.Store,
	guard contract.IdempotencyGuard,
	locker contract.Locker,
	interpreter contract.Interpreter,
	generator contract.Generator,
	executor contract.ToolExecutor,
	eng *engine.Engine,
	catalog *templatex.Catalog,
	deadLetters contract.DeadLetterSink,
	cfg Config,
	logger zerolog.Logger,
) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("conversation store is required")
	case guard == nil:
		return nil, errors.New("idempotency guard is required")
	case locker == nil:
		return nil, errors.New("locker is required")
	case interpreter == nil:
		return nil, errors.New("interpreter is required")
	case generator == nil:
		return nil, errors.New("generator is required")
	case executor == nil:
		return nil, errors.New("tool executor is required")
	case eng == nil:
		return nil, errors.New("decision engine is required")
	case catalog == nil:
		return nil, errors.New("template catalog is required")
	case deadLetters == nil:
		return nil, errors.New("dead letter sink is required")
	}

	if err := catalog.Validate(requiredTemplateKeys); err != nil {
		return nil, err
	}

	conversationTTL := cfg.ConversationTTL
	if conversationTTL <= 0 {
		conversationTTL = statex.DefaultTTL
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	s := &Service{
		store:           store,
		guard:           guard,
		locker:          locker,
		interpreter:     interpreter,
		generator:       generator,
		executor:        executor,
		engine:          eng,
		catalog:         catalog,
		deadLetters:     deadLetters,
		conversationTTL: conversationTTL,
		lockTTL:         lockTTL,
		logger:          logger.With().Str("component", "pipeline").Logger(),
		now:             time.Now,
	}

	graphRunner, err := s.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner
	return s, nil
}

// Handle processes one webhook delivery. Runs for the same customer are
// serialized with a lock held across the whole read-decide-write span.
func (s *Service) Handle(ctx context.Context, in nodex.GraphInput) (contract.Reply, error) {
	msg, err := in.Message.Normalize()
	if err != nil {
		messagesTotal.WithLabelValues("rejected").Inc()
		return contract.Reply{}, err
	}
	in.Message = msg

	unlock, err := s.locker.Lock(ctx, msg.From, s.lockTTL)
	if err != nil {
		messagesTotal.WithLabelValues("error").Inc()
		return contract.Reply{}, err
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			s.logger.Warn().Err(err).Str("customer", msg.From).Msg("lock release failed")
		}
	}()

	out, err := s.graphRunner.Invoke(ctx, in)
	if err != nil {
		messagesTotal.WithLabelValues("error").Inc()
		s.failTurn(ctx, in, msg, err)
		return contract.Reply{}, err
	}

	if out.Reply.Status == contract.StatusDuplicate {
		messagesTotal.WithLabelValues("duplicate").Inc()
		return out.Reply, nil
	}

	messagesTotal.WithLabelValues("processed").Inc()
	intentsTotal.WithLabelValues(string(out.Reply.Intent)).Inc()

	if out.Failure != nil {
		s.deadLetter(ctx, contract.DeadLetter{
			MessageID:   msg.MessageID,
			ErrorKind:   out.Failure.Kind,
			ErrorDetail: out.Failure.Detail,
			Payload:     encodePayload(msg),
			TraceID:     out.Reply.TraceID,
		})
	}

	if err := s.guard.Commit(ctx, msg.MessageID); err != nil {
		s.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("idempotency commit failed")
	}
	return out.Reply, nil
}

// failTurn cleans up after a hard graph failure: release the idempotency
// claim so the provider's retry is not swallowed, and capture the message
// unless it was plain invalid input.
func (s *Service) failTurn(ctx context.Context, in nodex.GraphInput, msg contract.InboundMessage, cause error) {
	if err := s.guard.Release(ctx, msg.MessageID); err != nil {
		s.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("idempotency release failed")
	}

	if errors.Is(cause, contract.ErrValidation) {
		return
	}
	s.deadLetter(ctx, contract.DeadLetter{
		MessageID:   msg.MessageID,
		ErrorKind:   "pipeline",
		ErrorDetail: cause.Error(),
		Payload:     encodePayload(msg),
		TraceID:     in.TraceID,
	})
}

// encodePayload keeps the whole normalized message so a dead letter can be
// replayed, not just inspected.
func encodePayload(msg contract.InboundMessage) string {
	raw, err := json.Marshal(msg)
	if err != nil {
		return msg.Body
	}
	return string(raw)
}

func (s *Service) deadLetter(ctx context.Context, dl contract.DeadLetter) {
	deadLettersTotal.WithLabelValues(dl.ErrorKind).Inc()
	if err := s.deadLetters.Record(ctx, dl); err != nil {
		s.logger.Error().Err(err).Str("message_id", dl.MessageID).Msg("dead letter write failed")
		return
	}
	s.logger.Warn().
		Str("message_id", dl.MessageID).
		Str("kind", dl.ErrorKind).
		Str("detail", dl.ErrorDetail).
		Msg("message dead-lettered")
}
