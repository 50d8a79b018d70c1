package diagnostics

import (
	"errors"
	"time"
)

var (
	ErrLessDataThanHorizon = errors.New("less data than horizon")
	ErrNoCutoffs           = errors.New("less data than horizon after initial window; make horizon or initial shorter")
)

// Cutoffs returns the simulated forecast origins for sorted timestamps ds.
//
// The last cutoff is max(ds) - horizon. Earlier cutoffs step back by period
// while they stay at or after min(ds) + initial. When no data lies in
// (cutoff, cutoff+horizon], the cutoff jumps to the last observed date
// before it minus horizon.
func Cutoffs(ds []time.Time, initial, period, horizon time.Duration) ([]time.Time, error) {
	if len(ds) == 0 {
		return nil, ErrLessDataThanHorizon
	}
	first, last := ds[0], ds[len(ds)-1]

	cutoff := last.Add(-horizon)
	if cutoff.Before(first) {
		return nil, ErrLessDataThanHorizon
	}

	result := []time.Time{cutoff}
	for !result[len(result)-1].Before(first.Add(initial)) {
		cutoff = cutoff.Add(-period)
		if !anyWithin(ds, cutoff, cutoff.Add(horizon)) && cutoff.After(first) {
			if closest, ok := lastAtOrBefore(ds, cutoff); ok {
				cutoff = closest.Add(-horizon)
			}
		}
		result = append(result, cutoff)
		if period <= 0 {
			break
		}
	}
	result = result[:len(result)-1]
	if len(result) == 0 {
		return nil, ErrNoCutoffs
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func anyWithin(ds []time.Time, from, to time.Time) bool {
	for _, t := range ds {
		if t.After(from) && !t.After(to) {
			return true
		}
	}
	return false
}

func lastAtOrBefore(ds []time.Time, t time.Time) (time.Time, bool) {
	var out time.Time
	found := false
	for _, d := range ds {
		if !d.After(t) && (!found || d.After(out)) {
			out = d
			found = true
		}
	}
	return out, found
}
