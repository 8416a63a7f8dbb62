// Package week models ISO calendar weeks as a plain integer offset from the
// first ISO week of 1970. All arithmetic and persistence uses the offset; the
// (week, year) projection only exists for display and parsing.
package week

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCalendarDate is returned when a (week, year) pair does not exist.
var ErrInvalidCalendarDate = errors.New("invalid week or year")

// epoch is the Monday of ISO week 1 of 1970.
var epoch = time.Date(1969, time.December, 29, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 24 * 60 * 60

// Week is the number of weeks since the first ISO week of 1970.
type Week int64

// FromCalendar builds a Week from an ISO week number (1..53) and ISO year.
func FromCalendar(isoWeek, year int) (Week, error) {
	if isoWeek < 1 || isoWeek > 53 {
		return 0, fmt.Errorf("%w: week %d of %d", ErrInvalidCalendarDate, isoWeek, year)
	}
	// ISO week 1 is the week containing January 4th.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(isoWeek-1)*7)

	y, w := monday.ISOWeek()
	if y != year || w != isoWeek {
		return 0, fmt.Errorf("%w: week %d of %d", ErrInvalidCalendarDate, isoWeek, year)
	}
	return Of(monday), nil
}

// FromEpoch restores a Week from its persisted offset.
func FromEpoch(n int64) Week {
	return Week(n)
}

// Of returns the week containing the calendar day of t in t's location.
func Of(t time.Time) Week {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := (day.Unix() - epoch.Unix()) / secondsPerDay
	// floor division so days before the epoch land in the right week
	if days < 0 {
		return Week((days - 6) / 7)
	}
	return Week(days / 7)
}

// Parse reads the "week/year" form produced by String.
func Parse(s string) (Week, error) {
	wStr, yStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not of the form week/year", ErrInvalidCalendarDate, s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(wStr))
	if err != nil {
		return 0, fmt.Errorf("%w: week %q", ErrInvalidCalendarDate, wStr)
	}
	y, err := strconv.Atoi(strings.TrimSpace(yStr))
	if err != nil {
		return 0, fmt.Errorf("%w: year %q", ErrInvalidCalendarDate, yStr)
	}
	return FromCalendar(w, y)
}

// Epoch returns the persisted integer encoding.
func (w Week) Epoch() int64 {
	return int64(w)
}

// Monday returns the first day of the week at midnight UTC.
func (w Week) Monday() time.Time {
	return epoch.AddDate(0, 0, 7*int(w))
}

// ISOWeek returns the ISO year and week number, in the order time.Time.ISOWeek uses.
func (w Week) ISOWeek() (year, week int) {
	return w.Monday().ISOWeek()
}

// Next returns the following week.
func (w Week) Next() Week {
	return w + 1
}

// Add offsets the week by n weeks.
func (w Week) Add(n int) Week {
	return w + Week(n)
}

// Sub returns the number of weeks from o to w.
func (w Week) Sub(o Week) int64 {
	return int64(w - o)
}

func (w Week) Before(o Week) bool { return w < o }
func (w Week) After(o Week) bool  { return w > o }

func (w Week) String() string {
	year, wk := w.ISOWeek()
	return fmt.Sprintf("%d/%d", wk, year)
}

func (w Week) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Week) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
