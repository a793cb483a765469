package pipelinenode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sorrisolabs/agendabot/agent/contract"
	statex "github.com/sorrisolabs/agendabot/agent/state"
)

// LoadConversation fetches the customer's conversation, starting a fresh one
// when none exists. Expired and terminal records are treated as absent: a
// canceled flow never resurrects, it restarts.
func LoadConversation(ctx context.Context, in *GraphState, store statex.Store, ttl time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrValidation)
	}

	conv, err := store.Load(ctx, in.Msg.From)
	switch {
	case err == nil:
		if conv.Expired(in.Now) || conv.Current.IsTerminal() {
			conv = statex.New(in.Msg.From, in.Now, ttl)
		}
	case errors.Is(err, statex.ErrStateNotFound):
		conv = statex.New(in.Msg.From, in.Now, ttl)
	default:
		return nil, err
	}

	in.Conversation = conv
	return in, nil
}
