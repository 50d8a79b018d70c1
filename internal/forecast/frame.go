package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Frame is a column-oriented table of timestamps with optional y, cap and floor.
type Frame struct {
	DS    []time.Time
	Y     []float64
	Cap   []float64
	Floor []float64
}

// NewFrame builds a frame from timestamps and values.
func NewFrame(ds []time.Time, y []float64) (*Frame, error) {
	if y != nil && len(ds) != len(y) {
		return nil, errors.New("ds and y must have the same length")
	}
	return &Frame{DS: ds, Y: y}, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.DS)
}

// SetSaturation fills constant cap and floor columns.
func (f *Frame) SetSaturation(capValue, floor float64) {
	f.Cap = constant(len(f.DS), capValue)
	f.Floor = constant(len(f.DS), floor)
}

// Last returns the latest timestamp.
func (f *Frame) Last() time.Time {
	var last time.Time
	for _, t := range f.DS {
		if t.After(last) {
			last = t
		}
	}
	return last
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(t time.Time) bool) *Frame {
	out := &Frame{}
	for i, t := range f.DS {
		if !keep(t) {
			continue
		}
		out.DS = append(out.DS, t)
		if f.Y != nil {
			out.Y = append(out.Y, f.Y[i])
		}
		if f.Cap != nil {
			out.Cap = append(out.Cap, f.Cap[i])
		}
		if f.Floor != nil {
			out.Floor = append(out.Floor, f.Floor[i])
		}
	}
	return out
}

// sorted returns a copy ordered by ds with missing y rows dropped.
func (f *Frame) sorted(dropMissing bool) *Frame {
	idx := make([]int, 0, len(f.DS))
	for i := range f.DS {
		if dropMissing && (f.Y == nil || math.IsNaN(f.Y[i])) {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return f.DS[idx[a]].Before(f.DS[idx[b]])
	})

	out := &Frame{DS: make([]time.Time, len(idx))}
	if f.Y != nil {
		out.Y = make([]float64, len(idx))
	}
	if f.Cap != nil {
		out.Cap = make([]float64, len(idx))
	}
	if f.Floor != nil {
		out.Floor = make([]float64, len(idx))
	}
	for j, i := range idx {
		out.DS[j] = f.DS[i]
		if f.Y != nil {
			out.Y[j] = f.Y[i]
		}
		if f.Cap != nil {
			out.Cap[j] = f.Cap[i]
		}
		if f.Floor != nil {
			out.Floor[j] = f.Floor[i]
		}
	}
	return out
}

// uniqueDates returns the distinct timestamps of ds in ascending order.
func uniqueDates(ds []time.Time) []time.Time {
	out := append([]time.Time(nil), ds...)
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	kept := out[:0]
	for i, t := range out {
		if i > 0 && t.Equal(kept[len(kept)-1]) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Freq is a date offset alias used to generate future timestamps.
type Freq string

const (
	FreqHour       Freq = "H"
	FreqDay        Freq = "D"
	FreqWeek       Freq = "W" // anchored on Sunday
	FreqMonthEnd   Freq = "M"
	FreqMonthStart Freq = "MS"
	FreqQuarterEnd Freq = "Q"
	FreqYearEnd    Freq = "Y"
)

const defaultFrequency = FreqMonthEnd

// ParseFreq parses a frequency alias.
func ParseFreq(s string) (Freq, error) {
	switch Freq(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return defaultFrequency, nil
	case FreqHour:
		return FreqHour, nil
	case FreqDay:
		return FreqDay, nil
	case FreqWeek:
		return FreqWeek, nil
	case FreqMonthEnd:
		return FreqMonthEnd, nil
	case FreqMonthStart:
		return FreqMonthStart, nil
	case FreqQuarterEnd:
		return FreqQuarterEnd, nil
	case FreqYearEnd, "A":
		return FreqYearEnd, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// FutureDates returns the first periods timestamps of the frequency grid
// strictly after last. Anchored offsets (W, M, MS, Q, Y) keep last's clock time.
func FutureDates(last time.Time, periods int, freq Freq) []time.Time {
	out := make([]time.Time, 0, periods)
	t := anchor(last, freq)
	for len(out) < periods {
		if t.After(last) {
			out = append(out, t)
		}
		t = step(t, freq)
	}
	return out
}

// anchor returns the first grid point on or after t.
func anchor(t time.Time, freq Freq) time.Time {
	h, mi, s := t.Clock()
	ns := t.Nanosecond()
	loc := t.Location()
	switch freq {
	case FreqWeek:
		days := (7 - int(t.Weekday())) % 7
		return t.AddDate(0, 0, days)
	case FreqMonthEnd:
		return monthEnd(t.Year(), t.Month(), h, mi, s, ns, loc)
	case FreqMonthStart:
		first := time.Date(t.Year(), t.Month(), 1, h, mi, s, ns, loc)
		if first.Before(t) {
			first = first.AddDate(0, 1, 0)
		}
		return first
	case FreqQuarterEnd:
		qm := ((int(t.Month())-1)/3 + 1) * 3
		return monthEnd(t.Year(), time.Month(qm), h, mi, s, ns, loc)
	case FreqYearEnd:
		return time.Date(t.Year(), time.December, 31, h, mi, s, ns, loc)
	}
	return t
}

func step(t time.Time, freq Freq) time.Time {
	h, mi, s := t.Clock()
	ns := t.Nanosecond()
	loc := t.Location()
	switch freq {
	case FreqHour:
		return t.Add(time.Hour)
	case FreqDay:
		return t.AddDate(0, 0, 1)
	case FreqWeek:
		return t.AddDate(0, 0, 7)
	case FreqMonthEnd:
		return monthEnd(t.Year(), t.Month()+1, h, mi, s, ns, loc)
	case FreqMonthStart:
		return time.Date(t.Year(), t.Month()+1, 1, h, mi, s, ns, loc)
	case FreqQuarterEnd:
		return monthEnd(t.Year(), t.Month()+3, h, mi, s, ns, loc)
	case FreqYearEnd:
		return time.Date(t.Year()+1, time.December, 31, h, mi, s, ns, loc)
	}
	return t.AddDate(0, 0, 1)
}

func monthEnd(year int, month time.Month, h, mi, s, ns int, loc *time.Location) time.Time {
	return time.Date(year, month+1, 0, h, mi, s, ns, loc)
}
