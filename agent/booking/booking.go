// Package booking persists appointments in Postgres.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusScheduled = "scheduled"
	StatusCanceled  = "canceled"
)

var (
	// ErrNotFound reports that no scheduled appointment matches the code.
	ErrNotFound = errors.New("booking: appointment not found")
	// ErrSlotTaken reports that the requested date and time already hold a
	// scheduled appointment.
	ErrSlotTaken = errors.New("booking: slot already taken")
)

// Appointment is one booked slot. Date and Time keep the canonical layouts
// used across the conversation flow ("2006-01-02" and "15:04").
type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Code       string    `bun:"code,notnull,unique"`
	CustomerID string    `bun:"customer_id,notnull"`
	Procedure  string    `bun:"procedure"`
	Date       string    `bun:"date,notnull"`
	Time       string    `bun:"time,notnull"`
	Status     string    `bun:"status,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Repository is the persistence contract the tool executor depends on.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	FindByCode(ctx context.Context, code string) (*Appointment, error)
	CancelByCode(ctx context.Context, code string) error
	SlotTaken(ctx context.Context, date, timeOfDay string) (bool, error)
}

// BunRepository implements Repository on top of bun/Postgres.
type BunRepository struct {
	db *bun.DB
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// Migrate creates the appointments table when it does not exist yet.
func (r *BunRepository) Migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*Appointment)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("booking: migrate: %w", err)
	}
	return nil
}

// Create inserts a scheduled appointment, refusing an occupied slot.
func (r *BunRepository) Create(ctx context.Context, appt *Appointment) error {
	taken, err := r.SlotTaken(ctx, appt.Date, appt.Time)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}

	now := time.Now().UTC()
	appt.Status = StatusScheduled
	appt.CreatedAt = now
	appt.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(appt).Exec(ctx); err != nil {
		return fmt.Errorf("booking: create: %w", err)
	}
	return nil
}

func (r *BunRepository) FindByCode(ctx context.Context, code string) (*Appointment, error) {
	appt := new(Appointment)
	err := r.db.NewSelect().
		Model(appt).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: find by code: %w", err)
	}
	return appt, nil
}

// CancelByCode flips a scheduled appointment to canceled. A code that matches
// no scheduled row yields ErrNotFound, including codes already canceled.
func (r *BunRepository) CancelByCode(ctx context.Context, code string) error {
	res, err := r.db.NewUpdate().
		Model((*Appointment)(nil)).
		Set("status = ?", StatusCanceled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Where("status = ?", StatusScheduled).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("booking: cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking: cancel: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SlotTaken reports whether a scheduled appointment already occupies the slot.
func (r *BunRepository) SlotTaken(ctx context.Context, date, timeOfDay string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Appointment)(nil)).
		Where("date = ?", date).
		Where("time = ?", timeOfDay).
		Where("status = ?", StatusScheduled).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("booking: slot taken: %w", err)
	}
	return exists, nil
}
