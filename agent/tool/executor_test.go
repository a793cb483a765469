package tool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/booking"
	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/schedule"
)

type fakeRepo struct {
	created  []*booking.Appointment
	canceled []string
	taken    map[string]bool
	findErr  error
}

func (f *fakeRepo) Create(_ context.Context, appt *booking.Appointment) error {
	if f.taken[appt.Date+" "+appt.Time] {
		return booking.ErrSlotTaken
	}
	f.created = append(f.created, appt)
	return nil
}

func (f *fakeRepo) FindByCode(_ context.Context, code string) (*booking.Appointment, error) {
	for _, a := range f.created {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, booking.ErrNotFound
}

func (f *fakeRepo) CancelByCode(_ context.Context, code string) error {
	for _, a := range f.created {
		if a.Code == code {
			f.canceled = append(f.canceled, code)
			return nil
		}
	}
	return booking.ErrNotFound
}

func (f *fakeRepo) SlotTaken(_ context.Context, date, timeOfDay string) (bool, error) {
	if f.findErr != nil {
		return false, f.findErr
	}
	return f.taken[date+" "+timeOfDay], nil
}

func newExecutor(repo booking.Repository) *Executor {
	cal := schedule.NewCalendar(schedule.Config{HorizonDays: 90, OpenHour: 8, CloseHour: 18})
	return NewExecutor(repo, cal, Config{Timeout: time.Second}, zerolog.Nop())
}

func TestCreateAppointmentAssignsCode(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{taken: map[string]bool{}}
	ex := newExecutor(repo)

	res := ex.Execute(context.Background(), contract.ToolCreateAppointment, map[string]string{
		"customer_id": "+5511999990000",
		"date":        "2026-09-10",
		"time":        "14:00",
		"procedure":   "limpeza",
	})
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Err)
	}
	if !strings.HasPrefix(res.ReferenceID, "APPT-") || len(res.ReferenceID) != 13 {
		t.Fatalf("unexpected confirmation code %q", res.ReferenceID)
	}
	if len(repo.created) != 1 || repo.created[0].Code != res.ReferenceID {
		t.Fatalf("appointment not persisted with returned code")
	}
}

func TestCreateAppointmentSlotTaken(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{taken: map[string]bool{"2026-09-10 14:00": true}}
	ex := newExecutor(repo)

	res := ex.Execute(context.Background(), contract.ToolCreateAppointment, map[string]string{
		"date": "2026-09-10",
		"time": "14:00",
	})
	if res.Success {
		t.Fatalf("expected failure on an occupied slot")
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{taken: map[string]bool{"2026-09-10 10:00": true}}
	ex := newExecutor(repo)

	res := ex.Execute(context.Background(), contract.ToolCheckAvailability, map[string]string{
		"date": "2026-09-10",
	})
	if !res.Success {
		t.Fatalf("date-only check should succeed, got %q", res.Err)
	}

	res = ex.Execute(context.Background(), contract.ToolCheckAvailability, map[string]string{
		"date": "2026-09-10",
		"time": "10:00",
	})
	if res.Success {
		t.Fatalf("occupied slot must report failure")
	}
}

func TestCancelAppointment(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{taken: map[string]bool{}}
	repo.created = append(repo.created, &booking.Appointment{Code: "APPT-AAAA1111"})
	ex := newExecutor(repo)

	res := ex.Execute(context.Background(), contract.ToolCancelAppointment, map[string]string{
		"confirmation_code": "APPT-AAAA1111",
	})
	if !res.Success || res.ReferenceID != "APPT-AAAA1111" {
		t.Fatalf("expected cancel success with echoed code, got %+v", res)
	}

	res = ex.Execute(context.Background(), contract.ToolCancelAppointment, map[string]string{
		"confirmation_code": "APPT-MISSING1",
	})
	if res.Success {
		t.Fatalf("unknown code must fail")
	}
}

func TestUnknownTool(t *testing.T) {
	t.Parallel()

	ex := newExecutor(&fakeRepo{taken: map[string]bool{}})
	res := ex.Execute(context.Background(), "time_travel", nil)
	if res.Success {
		t.Fatalf("unknown tool must report failure")
	}
}

func TestConflictOffersOpenSlots(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{taken: map[string]bool{
		"2026-09-10 14:00": true,
		"2026-09-10 09:00": true,
	}}
	ex := newExecutor(repo)

	res := ex.Execute(context.Background(), contract.ToolCreateAppointment, map[string]string{
		"date": "2026-09-10",
		"time": "14:00",
	})
	if res.Success {
		t.Fatalf("expected failure on an occupied slot")
	}
	want := []string{"10:00", "15:00"}
	if len(res.Alternatives) != len(want) {
		t.Fatalf("alternatives = %v", res.Alternatives)
	}
	for i, slot := range want {
		if res.Alternatives[i] != slot {
			t.Fatalf("alternatives = %v, want %v", res.Alternatives, want)
		}
	}

	res = ex.Execute(context.Background(), contract.ToolCheckAvailability, map[string]string{
		"date": "2026-09-10",
		"time": "09:00",
	})
	if res.Success || len(res.Alternatives) != 2 {
		t.Fatalf("availability conflict must offer the open slots, got %+v", res)
	}
}
