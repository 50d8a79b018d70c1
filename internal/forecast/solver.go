package forecast

import (
	"context"
	"errors"
	"math"
)

// ErrSingular is returned when the normal equations cannot be solved.
var ErrSingular = errors.New("singular system")

// residualFunc evaluates the model at theta, filling yhat and the Jacobian
// d yhat / d theta (n rows, p columns).
type residualFunc func(theta, yhat []float64, jac [][]float64)

// lmProblem is a penalized nonlinear least squares problem:
//
//	minimize  sum_i (y_i - yhat_i(theta))^2 + sum_j penalty_j * theta_j^2
type lmProblem struct {
	y       []float64
	penalty []float64
	eval    residualFunc
	maxIter int
}

type lmResult struct {
	theta      []float64
	objective  float64
	iterations int
	converged  bool
}

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e12
	lmTolerance      = 1e-10
)

// solveLM runs a Levenberg-Marquardt iteration from theta0.
func solveLM(ctx context.Context, prob lmProblem, theta0 []float64) (*lmResult, error) {
	n, p := len(prob.y), len(theta0)
	theta := append([]float64(nil), theta0...)

	yhat := make([]float64, n)
	jac := newMatrix(n, p)
	candYhat := make([]float64, n)
	candJac := newMatrix(n, p)

	prob.eval(theta, yhat, jac)
	obj := objective(prob, theta, yhat)
	damping := lmInitialDamping

	res := &lmResult{}
	for iter := 0; iter < prob.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.iterations = iter + 1

		// A = J'J + diag(penalty), g = J'r - penalty*theta
		a := newMatrix(p, p)
		g := make([]float64, p)
		for i := 0; i < n; i++ {
			r := prob.y[i] - yhat[i]
			row := jac[i]
			for j := 0; j < p; j++ {
				if row[j] == 0 {
					continue
				}
				g[j] += row[j] * r
				for k := j; k < p; k++ {
					a[j][k] += row[j] * row[k]
				}
			}
		}
		for j := 0; j < p; j++ {
			for k := 0; k < j; k++ {
				a[j][k] = a[k][j]
			}
			a[j][j] += prob.penalty[j]
			g[j] -= prob.penalty[j] * theta[j]
		}

		accepted := false
		for damping <= lmMaxDamping {
			damped := newMatrix(p, p)
			for j := 0; j < p; j++ {
				copy(damped[j], a[j])
				damped[j][j] += damping * math.Max(a[j][j], 1e-12)
			}
			delta, err := solveLinear(damped, g)
			if err != nil {
				damping *= 10
				continue
			}

			cand := make([]float64, p)
			for j := range cand {
				cand[j] = theta[j] + delta[j]
			}
			prob.eval(cand, candYhat, candJac)
			candObj := objective(prob, cand, candYhat)
			if !math.IsNaN(candObj) && candObj <= obj {
				improvement := (obj - candObj) / math.Max(obj, 1e-300)
				theta = cand
				yhat, candYhat = candYhat, yhat
				jac, candJac = candJac, jac
				obj = candObj
				damping = math.Max(damping*0.3, 1e-12)
				accepted = true
				if improvement < lmTolerance {
					res.converged = true
				}
				break
			}
			damping *= 10
		}

		if !accepted {
			// no descent direction left: theta is a local minimum
			res.converged = true
		}
		if res.converged {
			break
		}
	}

	res.theta = theta
	res.objective = obj
	return res, nil
}

func objective(prob lmProblem, theta, yhat []float64) float64 {
	sum := 0.0
	for i, y := range prob.y {
		d := y - yhat[i]
		sum += d * d
	}
	for j, t := range theta {
		sum += prob.penalty[j] * t * t
	}
	return sum
}

// solveLinear solves a x = b by Gaussian elimination with partial pivoting.
// a and b are not modified.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, ErrSingular
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, n+1)
		copy(aug[i][:n], a[i])
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		maxRow := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[maxRow][col]) {
				maxRow = r
			}
		}
		aug[col], aug[maxRow] = aug[maxRow], aug[col]

		pivot := aug[col][col]
		if math.Abs(pivot) < 1e-14 || math.IsNaN(pivot) {
			return nil, ErrSingular
		}

		for r := col + 1; r < n; r++ {
			factor := aug[r][col] / pivot
			if factor == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i][n]
		for j := i + 1; j < n; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}
	return x, nil
}

func newMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols]
	}
	return m
}
