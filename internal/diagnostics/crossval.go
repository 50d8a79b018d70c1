package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"trendcast/internal/forecast"
)

// ErrTooFewPoints is returned when a cutoff leaves fewer than two training rows.
var ErrTooFewPoints = errors.New("less than two datapoints before cutoff; increase initial window")

// CVRow is one out-of-sample prediction.
type CVRow struct {
	DS        time.Time `json:"ds"`
	Cutoff    time.Time `json:"cutoff"`
	Y         float64   `json:"y"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
}

// Horizon is the distance between the prediction and its cutoff.
func (r CVRow) Horizon() time.Duration {
	return r.DS.Sub(r.Cutoff)
}

// CVResult holds the predictions of every cutoff, in cutoff order.
type CVResult struct {
	Rows    []CVRow       `json:"rows"`
	Cutoffs []time.Time   `json:"cutoffs"`
	Initial time.Duration `json:"initial"`
	Period  time.Duration `json:"period"`
	Horizon time.Duration `json:"horizon"`
}

// Progress reports a finished cutoff.
type Progress struct {
	Done   int       `json:"done"`
	Total  int       `json:"total"`
	Cutoff time.Time `json:"cutoff"`
}

// CVOptions configures CrossValidate.
type CVOptions struct {
	Initial time.Duration
	Period  time.Duration
	Horizon time.Duration
	// Workers bounds the number of cutoffs fit concurrently; 0 means NumCPU.
	Workers int
	// OnProgress, if set, is called once per finished cutoff. Calls are serialized.
	OnProgress func(Progress)
}

// CrossValidate refits a fresh copy of m on the history up to each cutoff
// and predicts the following horizon. The result has no rows from a
// partially failed run: any cutoff error fails the whole call.
func CrossValidate(ctx context.Context, m *forecast.Model, opts CVOptions) (*CVResult, error) {
	history, err := m.History()
	if err != nil {
		return nil, err
	}
	if opts.Horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrBadDuration)
	}

	cutoffs, err := Cutoffs(history.DS, opts.Initial, opts.Period, opts.Horizon)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	parts := make([][]CVRow, len(cutoffs))
	progress := make(chan time.Time)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		done := 0
		for cutoff := range progress {
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{Done: done, Total: len(cutoffs), Cutoff: cutoff})
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cutoff := range cutoffs {
		i, cutoff := i, cutoff
		g.Go(func() error {
			rows, err := forecastCutoff(gctx, m, history, cutoff, opts.Horizon)
			if err != nil {
				return fmt.Errorf("cutoff %s: %w", cutoff.Format("2006-01-02"), err)
			}
			parts[i] = rows
			progress <- cutoff
			return nil
		})
	}
	err = g.Wait()
	close(progress)
	<-progressDone
	if err != nil {
		return nil, err
	}

	res := &CVResult{
		Cutoffs: cutoffs,
		Initial: opts.Initial,
		Period:  opts.Period,
		Horizon: opts.Horizon,
	}
	for _, rows := range parts {
		res.Rows = append(res.Rows, rows...)
	}
	return res, nil
}

func forecastCutoff(ctx context.Context, m *forecast.Model, history *forecast.Frame, cutoff time.Time, horizon time.Duration) ([]CVRow, error) {
	train := history.Filter(func(t time.Time) bool { return !t.After(cutoff) })
	if train.Len() < 2 {
		return nil, ErrTooFewPoints
	}

	model := m.Fresh()
	if err := model.Fit(ctx, train); err != nil {
		return nil, err
	}

	end := cutoff.Add(horizon)
	test := history.Filter(func(t time.Time) bool { return t.After(cutoff) && !t.After(end) })
	if test.Len() == 0 {
		return nil, nil
	}
	pred, err := model.Predict(ctx, test)
	if err != nil {
		return nil, err
	}

	rows := make([]CVRow, len(pred.Rows))
	for i, p := range pred.Rows {
		rows[i] = CVRow{
			DS:        p.DS,
			Cutoff:    cutoff,
			Y:         test.Y[i],
			Yhat:      p.Yhat,
			YhatLower: p.YhatLower,
			YhatUpper: p.YhatUpper,
		}
	}
	return rows, nil
}
