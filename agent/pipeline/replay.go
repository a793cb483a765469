package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/deadletter"
	nodex "github.com/sorrisolabs/agendabot/agent/nodes"
)

// ReplaySource lists captured failures and marks the ones that went back
// through the pipeline. *deadletter.BunSink satisfies it.
type ReplaySource interface {
	ListUnretried(ctx context.Context, limit int) ([]deadletter.Record, error)
	MarkRetried(ctx context.Context, id int64) error
}

// Replay re-runs captured failures through the regular pipeline, oldest
// first. The idempotency claim is released before each run so the turn is
// not short-circuited as a duplicate. Returns the number of messages
// replayed.
func (s *Service) Replay(ctx context.Context, source ReplaySource, limit int) (int, error) {
	records, err := source.ListUnretried(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("replay: list dead letters: %w", err)
	}

	replayed := 0
	for _, rec := range records {
		var msg contract.InboundMessage
		if err := json.Unmarshal([]byte(rec.Payload), &msg); err != nil {
			s.logger.Warn().Err(err).Int64("dead_letter_id", rec.ID).Msg("unreplayable dead letter payload")
			continue
		}
		if err := s.guard.Release(ctx, msg.MessageID); err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("idempotency release failed")
			continue
		}

		reply, err := s.Handle(ctx, nodex.GraphInput{Message: msg, TraceID: rec.TraceID})
		if err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("dead letter replay failed")
			continue
		}
		if err := source.MarkRetried(ctx, rec.ID); err != nil {
			s.logger.Warn().Err(err).Int64("dead_letter_id", rec.ID).Msg("mark retried failed")
			continue
		}

		replayed++
		s.logger.Info().
			Str("message_id", msg.MessageID).
			Str("status", string(reply.Status)).
			Msg("dead letter replayed")
	}
	return replayed, nil
}
