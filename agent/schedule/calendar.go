// Package schedule holds the business-calendar rules that gate which date
// and time values the agent is willing to collect or book.
package schedule

import (
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Config bounds what counts as a bookable slot.
type Config struct {
	// HorizonDays is how far ahead a booking may be placed.
	HorizonDays int `envconfig:"HORIZON_DAYS" split_words:"true" default:"90"`
	// OpenHour/CloseHour delimit business hours; CloseHour is exclusive.
	OpenHour  int `envconfig:"OPEN_HOUR" split_words:"true" default:"8"`
	CloseHour int `envconfig:"CLOSE_HOUR" split_words:"true" default:"18"`
}

// Calendar validates interpreter-supplied date/time entities. Out-of-range
// values are reported invalid so callers treat them as absent, never as a
// failure.
type Calendar struct {
	horizon   time.Duration
	openHour  int
	closeHour int
}

func NewCalendar(cfg Config) *Calendar {
	horizonDays := cfg.HorizonDays
	if horizonDays <= 0 {
		horizonDays = 90
	}
	open, close := cfg.OpenHour, cfg.CloseHour
	if open < 0 || close <= open || close > 24 {
		open, close = 8, 18
	}
	return &Calendar{
		horizon:   time.Duration(horizonDays) * 24 * time.Hour,
		openHour:  open,
		closeHour: close,
	}
}

// AdmitDate reports whether raw parses as a calendar date that is not in the
// past and within the forward horizon. Today counts as valid.
func (c *Calendar) AdmitDate(raw string, now time.Time) (string, bool) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", false
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if d.Before(today) {
		return "", false
	}
	if d.After(today.Add(c.horizon)) {
		return "", false
	}
	return d.Format(DateLayout), true
}

// AdmitTime reports whether raw parses as an HH:MM slot inside business
// hours.
func (c *Calendar) AdmitTime(raw string) (string, bool) {
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return "", false
	}
	if t.Hour() < c.openHour || t.Hour() >= c.closeHour {
		return "", false
	}
	return t.Format(TimeLayout), true
}

// Alternatives lists fallback slots offered when a requested time is not
// available.
func (c *Calendar) Alternatives() []string {
	slots := make([]string, 0, 4)
	for _, h := range []int{9, 10, 14, 15} {
		if h >= c.openHour && h < c.closeHour {
			slots = append(slots, time.Date(0, 1, 1, h, 0, 0, 0, time.UTC).Format(TimeLayout))
		}
	}
	return slots
}
