// Package tool executes the side-effecting operations the decision engine
// selects: availability checks, appointment creation and cancellation.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/booking"
	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/schedule"
)

// Config bounds one tool call.
type Config struct {
	Timeout time.Duration `envconfig:"TOOL_TIMEOUT" default:"5s"`
}

// Executor implements contract.ToolExecutor against the booking repository.
type Executor struct {
	repo     booking.Repository
	calendar *schedule.Calendar
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewExecutor(repo booking.Repository, calendar *schedule.Calendar, cfg Config, logger zerolog.Logger) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Executor{
		repo:     repo,
		calendar: calendar,
		timeout:  timeout,
		logger:   logger.With().Str("component", "tool").Logger(),
	}
}

// Execute runs one named tool under the per-call timeout. Unknown tools and
// timed-out calls report failure; success is never assumed.
func (e *Executor) Execute(ctx context.Context, tool string, args map[string]string) contract.ToolResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res contract.ToolResult
	switch tool {
	case contract.ToolCheckAvailability:
		res = e.checkAvailability(ctx, args)
	case contract.ToolCreateAppointment:
		res = e.createAppointment(ctx, args)
	case contract.ToolCancelAppointment:
		res = e.cancelAppointment(ctx, args)
	default:
		res = contract.ToolResult{Err: fmt.Sprintf("unknown tool %q", tool)}
	}

	if !res.Success {
		e.logger.Warn().Str("tool", tool).Str("error", res.Err).Msg("tool call failed")
	}
	return res
}

func (e *Executor) checkAvailability(ctx context.Context, args map[string]string) contract.ToolResult {
	date := args["date"]
	if date == "" {
		return contract.ToolResult{Err: "check_availability requires a date"}
	}
	if timeOfDay := args["time"]; timeOfDay != "" {
		taken, err := e.repo.SlotTaken(ctx, date, timeOfDay)
		if err != nil {
			return contract.ToolResult{Err: err.Error()}
		}
		if taken {
			return contract.ToolResult{Err: "slot already taken", Alternatives: e.openSlots(ctx, date)}
		}
	}
	return contract.ToolResult{Success: true}
}

func (e *Executor) createAppointment(ctx context.Context, args map[string]string) contract.ToolResult {
	date, timeOfDay := args["date"], args["time"]
	if date == "" || timeOfDay == "" {
		return contract.ToolResult{Err: "create_appointment requires date and time"}
	}

	appt := &booking.Appointment{
		Code:       NewConfirmationCode(),
		CustomerID: args["customer_id"],
		Procedure:  args["procedure"],
		Date:       date,
		Time:       timeOfDay,
	}
	if err := e.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			return contract.ToolResult{Err: "slot already taken", Alternatives: e.openSlots(ctx, date)}
		}
		return contract.ToolResult{Err: err.Error()}
	}
	return contract.ToolResult{Success: true, ReferenceID: appt.Code}
}

func (e *Executor) cancelAppointment(ctx context.Context, args map[string]string) contract.ToolResult {
	code := args["confirmation_code"]
	if code == "" {
		return contract.ToolResult{Err: "cancel_appointment requires a confirmation code"}
	}
	if err := e.repo.CancelByCode(ctx, code); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return contract.ToolResult{Err: "no scheduled appointment for that code"}
		}
		return contract.ToolResult{Err: err.Error()}
	}
	return contract.ToolResult{Success: true, ReferenceID: code}
}

// openSlots filters the calendar's suggested times down to the ones still
// free on the given date. Lookup errors drop the slot rather than offering a
// time that may be taken.
func (e *Executor) openSlots(ctx context.Context, date string) []string {
	open := make([]string, 0, 4)
	for _, slot := range e.calendar.Alternatives() {
		taken, err := e.repo.SlotTaken(ctx, date, slot)
		if err != nil || taken {
			continue
		}
		open = append(open, slot)
	}
	return open
}

// NewConfirmationCode builds a human-readable booking reference, APPT- plus
// eight uppercase hex characters.
func NewConfirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "APPT-" + strings.ToUpper(raw[:8])
}
