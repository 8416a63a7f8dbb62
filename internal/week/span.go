package week

import "fmt"

// Span is a half-open range of weeks: Start is inclusive, End is exclusive
// and nil means the range is still open.
type Span struct {
	Start Week  `json:"start"`
	End   *Week `json:"end"`
}

// Open returns a span starting at start without an end.
func Open(start Week) Span {
	return Span{Start: start}
}

// Closed returns the span [start, end).
func Closed(start, end Week) Span {
	return Span{Start: start, End: &end}
}

// Contains reports whether w lies inside the span.
func (s Span) Contains(w Week) bool {
	return s.Start <= w && (s.End == nil || w < *s.End)
}

// Overlaps is the single predicate used for every interval-pair invariant.
// A span overlaps another when each one starts before the other ends.
func (s Span) Overlaps(o Span) bool {
	return (s.End == nil || *s.End > o.Start) && (o.End == nil || s.Start < *o.End)
}

// Valid reports whether the end, if any, is not before the start.
func (s Span) Valid() bool {
	return s.End == nil || *s.End >= s.Start
}

// IsOpen reports whether the span has no end.
func (s Span) IsOpen() bool {
	return s.End == nil
}

func (s Span) String() string {
	if s.End == nil {
		return fmt.Sprintf("[%s, ...)", s.Start)
	}
	return fmt.Sprintf("[%s, %s)", s.Start, *s.End)
}
