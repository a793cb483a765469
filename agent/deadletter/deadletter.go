// Package deadletter stores messages the pipeline could not process, so they
// can be inspected and replayed offline.
package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

// Record is one persisted failure.
type Record struct {
	bun.BaseModel `bun:"table:dead_letters,alias:dl"`

	ID          int64     `bun:"id,pk,autoincrement"`
	MessageID   string    `bun:"message_id,notnull"`
	TraceID     string    `bun:"trace_id"`
	ErrorKind   string    `bun:"error_kind,notnull"`
	ErrorDetail string    `bun:"error_detail"`
	Payload     string    `bun:"payload"`
	Retried     bool      `bun:"retried,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BunSink implements contract.DeadLetterSink on Postgres.
type BunSink struct {
	db *bun.DB
}

func NewBunSink(db *bun.DB) *BunSink {
	return &BunSink{db: db}
}

func (s *BunSink) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deadletter: migrate: %w", err)
	}
	return nil
}

func (s *BunSink) Record(ctx context.Context, dl contract.DeadLetter) error {
	rec := &Record{
		MessageID:   dl.MessageID,
		TraceID:     dl.TraceID,
		ErrorKind:   dl.ErrorKind,
		ErrorDetail: dl.ErrorDetail,
		Payload:     dl.Payload,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("deadletter: record: %w", err)
	}
	return nil
}

// ListUnretried returns failures not yet replayed, oldest first.
func (s *BunSink) ListUnretried(ctx context.Context, limit int) ([]Record, error) {
	var recs []Record
	err := s.db.NewSelect().
		Model(&recs).
		Where("retried = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("deadletter: list: %w", err)
	}
	return recs, nil
}

// MarkRetried flags a record after a successful replay.
func (s *BunSink) MarkRetried(ctx context.Context, id int64) error {
	_, err := s.db.NewUpdate().
		Model((*Record)(nil)).
		Set("retried = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deadletter: mark retried: %w", err)
	}
	return nil
}
