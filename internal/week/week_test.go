package week

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFromCalendarKnownOffsets(t *testing.T) {
	tests := []struct {
		week, year int
		want       int64
	}{
		{1, 1970, 0},
		{53, 2020, 2661},
		{33, 2024, 2850},
		{34, 2024, 2851},
		{1, 2025, 2870},
		{1, 2026, 2922},
	}
	for _, tt := range tests {
		got, err := FromCalendar(tt.week, tt.year)
		if err != nil {
			t.Fatalf("FromCalendar(%d, %d): %v", tt.week, tt.year, err)
		}
		if got.Epoch() != tt.want {
			t.Errorf("FromCalendar(%d, %d) = %d, want %d", tt.week, tt.year, got.Epoch(), tt.want)
		}
	}
}

func TestFromCalendarRoundTrip(t *testing.T) {
	for year := 1950; year <= 2060; year++ {
		for wk := 1; wk <= 53; wk++ {
			w, err := FromCalendar(wk, year)
			if err != nil {
				if wk == 53 {
					continue
				}
				t.Fatalf("FromCalendar(%d, %d): %v", wk, year, err)
			}
			restored := FromEpoch(w.Epoch())
			gotYear, gotWeek := restored.ISOWeek()
			if gotYear != year || gotWeek != wk {
				t.Errorf("round trip of %d/%d = %d/%d", wk, year, gotWeek, gotYear)
			}
		}
	}
}

func TestFromCalendarInvalid(t *testing.T) {
	tests := []struct{ week, year int }{
		{0, 2024},
		{54, 2024},
		{53, 2024}, // 2024 has 52 ISO weeks
		{-1, 2024},
	}
	for _, tt := range tests {
		if _, err := FromCalendar(tt.week, tt.year); !errors.Is(err, ErrInvalidCalendarDate) {
			t.Errorf("FromCalendar(%d, %d) error = %v, want ErrInvalidCalendarDate", tt.week, tt.year, err)
		}
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC), "33/2024"},
		{time.Date(2024, 8, 18, 23, 59, 0, 0, time.UTC), "33/2024"},
		{time.Date(2024, 8, 19, 0, 0, 0, 0, time.UTC), "34/2024"},
		{time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC), "53/2020"},
		{time.Date(1969, 12, 28, 0, 0, 0, 0, time.UTC), "52/1969"},
	}
	for _, tt := range tests {
		if got := Of(tt.day).String(); got != tt.want {
			t.Errorf("Of(%s) = %s, want %s", tt.day.Format("2006-01-02"), got, tt.want)
		}
	}
	if got := Of(time.Date(1969, 12, 28, 0, 0, 0, 0, time.UTC)).Epoch(); got != -1 {
		t.Errorf("Of(1969-12-28) = %d, want -1", got)
	}
}

func TestArithmetic(t *testing.T) {
	w, _ := FromCalendar(52, 2024)
	if got := w.Next().String(); got != "1/2025" {
		t.Errorf("Next() = %s, want 1/2025", got)
	}
	if got := w.Add(3).Sub(w); got != 3 {
		t.Errorf("Sub = %d, want 3", got)
	}
	if !w.Before(w.Next()) || w.After(w.Next()) {
		t.Error("ordering is inconsistent with the epoch offset")
	}
	if got := w.Monday().Weekday(); got != time.Monday {
		t.Errorf("Monday() weekday = %s", got)
	}
}

func TestParse(t *testing.T) {
	w, err := Parse(" 33/2024 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w.Epoch() != 2850 {
		t.Errorf("Parse = %d, want 2850", w.Epoch())
	}
	for _, bad := range []string{"", "33", "x/2024", "33/y", "60/2024"} {
		if _, err := Parse(bad); !errors.Is(err, ErrInvalidCalendarDate) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidCalendarDate", bad, err)
		}
	}
}

func TestJSON(t *testing.T) {
	var payload struct {
		Week Week `json:"week"`
	}
	if err := json.Unmarshal([]byte(`{"week":"34/2024"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Week.Epoch() != 2851 {
		t.Errorf("week = %d, want 2851", payload.Week.Epoch())
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"week":"34/2024"}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestSpan(t *testing.T) {
	open := Open(10)
	closed := Closed(5, 10)
	empty := Closed(12, 12)

	if !open.Contains(10) || open.Contains(9) || !open.Contains(1000) {
		t.Error("open span containment is wrong")
	}
	if !closed.Contains(5) || closed.Contains(10) {
		t.Error("closed span must include start and exclude end")
	}
	if closed.Overlaps(open) || open.Overlaps(closed) {
		t.Error("adjacent spans must not overlap")
	}
	if !Closed(5, 11).Overlaps(open) {
		t.Error("[5,11) and [10,...) overlap")
	}
	if !Open(3).Overlaps(Open(100)) {
		t.Error("two open spans always overlap")
	}
	if empty.Contains(12) {
		t.Error("an empty span contains nothing")
	}
	if !empty.Valid() || Closed(5, 4).Valid() {
		t.Error("validity check is wrong")
	}
}
