package core

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DateFormat is the wire and key format for ledger dates (institution-local).
const DateFormat = "2006-01-02"

// ClockTime is a wall-clock time of day ("HH:MM") with no date attached.
type ClockTime struct {
	Hour   int
	Minute int
}

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute)
}

// ParseClockTime parses "HH:MM" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", CleanString(s))
	if err != nil {
		return ClockTime{}, errors.Wrapf(err, "parsing clock time %q", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Clock centralizes institution-local time arithmetic. Timestamps are stored
// in UTC; every schedule/tolerance/sweep comparison must normalize through a
// Clock first. Mixing UTC instants with local wall-clock hours is exactly the
// defect class this type exists to prevent.
type Clock struct {
	loc *time.Location

	// NowFunc is mockable in tests.
	NowFunc func() time.Time
}

func NewClock(loc *time.Location) *Clock {
	return &Clock{loc: loc, NowFunc: time.Now}
}

// Now returns the current institution-local time.
func (c *Clock) Now() time.Time {
	return c.NowFunc().In(c.loc)
}

// Normalize converts any instant to institution-local time.
func (c *Clock) Normalize(t time.Time) time.Time {
	return t.In(c.loc)
}

// DateOf formats an instant's institution-local calendar date.
func (c *Clock) DateOf(t time.Time) string {
	return t.In(c.loc).Format(DateFormat)
}

// Today is the current institution-local calendar date.
func (c *Clock) Today() string {
	return c.DateOf(c.NowFunc())
}

// On returns the instant at ct on the given local date.
func (c *Clock) On(date string, ct ClockTime) (time.Time, error) {
	d, err := time.ParseInLocation(DateFormat, date, c.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing date %q", date)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), ct.Hour, ct.Minute, 0, 0, c.loc), nil
}

// ValidDate reports whether s is a well-formed DateFormat date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateFormat, s)
	return err == nil
}
