package forecast

import (
	"math"
	"sort"
	"time"

	"trendcast/internal/holidays"
)

// HolidaysComponent is the name of the combined holiday effect.
const HolidaysComponent = "holidays"

// column describes one regressor of the design matrix.
type column struct {
	component  string
	mode       Mode
	priorScale float64
}

// block is a contiguous run of columns belonging to one component.
type block struct {
	name       string
	mode       Mode
	start, end int
}

type layout struct {
	columns []column
	blocks  []block
}

func (l layout) width() int {
	return len(l.columns)
}

func buildLayout(opts Options, seasonalities []Seasonality, holidayNames []string) layout {
	var l layout
	for _, s := range seasonalities {
		b := block{name: s.Name, mode: s.Mode, start: len(l.columns)}
		for i := 0; i < 2*s.FourierOrder; i++ {
			l.columns = append(l.columns, column{component: s.Name, mode: s.Mode, priorScale: s.PriorScale})
		}
		b.end = len(l.columns)
		l.blocks = append(l.blocks, b)
	}
	if len(holidayNames) > 0 {
		b := block{name: HolidaysComponent, mode: opts.SeasonalityMode, start: len(l.columns)}
		for _, name := range holidayNames {
			l.columns = append(l.columns, column{component: name, mode: opts.SeasonalityMode, priorScale: opts.HolidaysPriorScale})
		}
		b.end = len(l.columns)
		l.blocks = append(l.blocks, b)
	}
	return l
}

// fourier appends sin/cos pairs of increasing order for each timestamp.
func fourier(dst [][]float64, offset int, ds []time.Time, period float64, order int) {
	for i, t := range ds {
		days := float64(t.Unix())/86400 + float64(t.Nanosecond())/86400e9
		for o := 1; o <= order; o++ {
			x := 2 * math.Pi * float64(o) * days / period
			dst[i][offset+2*(o-1)] = math.Sin(x)
			dst[i][offset+2*(o-1)+1] = math.Cos(x)
		}
	}
}

// features builds the design matrix for the given timestamps.
func (m *Model) features(st *fitState, ds []time.Time) ([][]float64, error) {
	x := newMatrix(len(ds), st.layout.width())
	offset := 0
	for _, s := range st.seasonalities {
		fourier(x, offset, ds, s.Period, s.FourierOrder)
		offset += 2 * s.FourierOrder
	}
	if len(st.holidayNames) == 0 || len(ds) == 0 {
		return x, nil
	}

	first, last := ds[0], ds[0]
	for _, t := range ds {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	list, err := holidays.Between(m.country, first, last)
	if err != nil {
		return nil, err
	}

	colOf := make(map[string]int, len(st.holidayNames))
	for i, name := range st.holidayNames {
		colOf[name] = offset + i
	}
	byDate := make(map[string][]int)
	for _, h := range list {
		col, ok := colOf[h.Name]
		if !ok {
			continue
		}
		key := h.Date.Format("2006-01-02")
		byDate[key] = append(byDate[key], col)
	}
	for i, t := range ds {
		for _, col := range byDate[t.Format("2006-01-02")] {
			x[i][col] = 1
		}
	}
	return x, nil
}

// holidayNames returns the distinct holiday names of a country in the
// years covered by [start, end].
func holidayNames(country string, start, end time.Time) ([]string, error) {
	list, err := holidays.Between(country, start, end)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, h := range list {
		if !seen[h.Name] {
			seen[h.Name] = true
			names = append(names, h.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// evaluator returns the scaled model and its Jacobian for the history.
func (st *fitState) evaluator(t, capScaled []float64, x [][]float64, growth Growth) residualFunc {
	nc := len(st.changepointsT)
	cols := st.layout.columns
	return func(theta, yhat []float64, jac [][]float64) {
		k, m := theta[0], theta[1]
		delta := theta[2 : 2+nc]
		beta := theta[2+nc:]
		for i := range t {
			g := k*t[i] + m
			for j, s := range st.changepointsT {
				if t[i] > s {
					g += delta[j] * (t[i] - s)
				}
			}
			trend, dTrend := g, 1.0
			if growth == GrowthLogistic {
				sig := sigmoid(g)
				trend = capScaled[i] * sig
				dTrend = capScaled[i] * sig * (1 - sig)
			}

			add, mul := 0.0, 0.0
			for j, c := range cols {
				if c.mode == ModeMultiplicative {
					mul += x[i][j] * beta[j]
				} else {
					add += x[i][j] * beta[j]
				}
			}
			yhat[i] = trend*(1+mul) + add

			row := jac[i]
			scale := (1 + mul) * dTrend
			row[0] = scale * t[i]
			row[1] = scale
			for j, s := range st.changepointsT {
				if t[i] > s {
					row[2+j] = scale * (t[i] - s)
				} else {
					row[2+j] = 0
				}
			}
			for j, c := range cols {
				if c.mode == ModeMultiplicative {
					row[2+nc+j] = trend * x[i][j]
				} else {
					row[2+nc+j] = x[i][j]
				}
			}
		}
	}
}

func sigmoid(g float64) float64 {
	if g >= 0 {
		return 1 / (1 + math.Exp(-g))
	}
	e := math.Exp(g)
	return e / (1 + e)
}
