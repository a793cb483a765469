package schedule

import (
	"testing"
	"time"
)

var now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func defaultCalendar() *Calendar {
	return NewCalendar(Config{HorizonDays: 90, OpenHour: 8, CloseHour: 18})
}

func TestAdmitDate(t *testing.T) {
	t.Parallel()

	c := defaultCalendar()
	cases := []struct {
		raw  string
		want bool
	}{
		{"2026-09-01", true},  // today
		{"2026-09-10", true},  // within horizon
		{"2026-11-30", true},  // horizon edge
		{"2026-08-31", false}, // yesterday
		{"2027-01-01", false}, // beyond horizon
		{"10/09/2026", false}, // wrong layout
		{"amanhã", false},     // unresolved relative date
	}
	for _, tc := range cases {
		got, ok := c.AdmitDate(tc.raw, now)
		if ok != tc.want {
			t.Fatalf("AdmitDate(%q) ok = %v, want %v", tc.raw, ok, tc.want)
		}
		if ok && got != tc.raw {
			t.Fatalf("AdmitDate(%q) = %q", tc.raw, got)
		}
	}
}

func TestAdmitTime(t *testing.T) {
	t.Parallel()

	c := defaultCalendar()
	cases := []struct {
		raw  string
		want bool
	}{
		{"08:00", true},
		{"17:59", true},
		{"18:00", false}, // close is exclusive
		{"07:59", false},
		{"2pm", false},
	}
	for _, tc := range cases {
		if _, ok := c.AdmitTime(tc.raw); ok != tc.want {
			t.Fatalf("AdmitTime(%q) ok = %v, want %v", tc.raw, ok, tc.want)
		}
	}
}

func TestAlternativesRespectHours(t *testing.T) {
	t.Parallel()

	full := defaultCalendar().Alternatives()
	if len(full) != 4 || full[0] != "09:00" || full[3] != "15:00" {
		t.Fatalf("alternatives = %v", full)
	}

	afternoon := NewCalendar(Config{HorizonDays: 90, OpenHour: 13, CloseHour: 18}).Alternatives()
	for _, slot := range afternoon {
		if slot < "13:00" {
			t.Fatalf("slot %s outside business hours", slot)
		}
	}
}

func TestConfigFallbacks(t *testing.T) {
	t.Parallel()

	// Nonsense hours fall back to the defaults instead of a dead calendar.
	c := NewCalendar(Config{OpenHour: 20, CloseHour: 6})
	if _, ok := c.AdmitTime("09:00"); !ok {
		t.Fatalf("fallback hours must admit 09:00")
	}
}
