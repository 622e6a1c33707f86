// Package timeslot implements interval arithmetic over minutes-since-midnight.
// All intervals are half-open [start, end) within a single calendar day;
// cross-midnight spans are not representable.
package timeslot

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval: end must be after start")

// DefaultStep is the default enumeration granularity for candidate starts.
const DefaultStep = 60

const minutesPerDay = 24 * 60

// Interval is a half-open [Start, End) window in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

func New(start, end int) (Interval, error) {
	if start < 0 || end > minutesPerDay || end <= start {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps reports whether iv and other share any point. Half-open semantics:
// an interval ending at T and one starting at T do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Subtract removes the busy intervals from window and returns the maximal free
// sub-intervals, sorted by start. Busy intervals are clipped to the window;
// touching busy intervals merge naturally because [a,b) and [b,c) share no point.
func Subtract(window Interval, busy []Interval) []Interval {
	clipped := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if !b.Overlaps(window) {
			continue
		}
		if b.Start < window.Start {
			b.Start = window.Start
		}
		if b.End > window.End {
			b.End = window.End
		}
		clipped = append(clipped, b)
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start < clipped[j].Start })

	var free []Interval
	cursor := window.Start
	for _, b := range clipped {
		if b.Start > cursor {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// CandidateStarts enumerates start times within the free intervals at the given
// step such that start+duration still fits the free interval. Starts align to
// each free interval's own start.
func CandidateStarts(free []Interval, duration, step int) []int {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = DefaultStep
	}
	var starts []int
	for _, f := range free {
		for s := f.Start; s+duration <= f.End; s += step {
			starts = append(starts, s)
		}
	}
	return starts
}

// ParseClock parses "HH:MM" (24h) into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Clock formats minutes since midnight as "HH:MM".
func Clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
