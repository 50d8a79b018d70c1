package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSolveLinear(t *testing.T) {
	a := [][]float64{
		{2, 1, -1},
		{-3, -1, 2},
		{-2, 1, 2},
	}
	b := []float64{8, -11, -3}
	x, err := solveLinear(a, b)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	want := []float64{2, 3, -1}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-9 {
			t.Fatalf("x[%d] = %v, want %v", i, x[i], want[i])
		}
	}
	if a[0][0] != 2 {
		t.Fatalf("input matrix modified")
	}
}

func TestSolveLinearSingular(t *testing.T) {
	a := [][]float64{{1, 2}, {2, 4}}
	if _, err := solveLinear(a, []float64{1, 2}); !errors.Is(err, ErrSingular) {
		t.Fatalf("err = %v, want ErrSingular", err)
	}
}

func TestSolveLMExponential(t *testing.T) {
	// y = a * exp(b x)
	xs := []float64{0, 0.25, 0.5, 0.75, 1}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2 * math.Exp(0.7*x)
	}
	eval := func(theta, yhat []float64, jac [][]float64) {
		for i, x := range xs {
			e := math.Exp(theta[1] * x)
			yhat[i] = theta[0] * e
			jac[i][0] = e
			jac[i][1] = theta[0] * x * e
		}
	}
	prob := lmProblem{y: ys, penalty: []float64{0, 0}, eval: eval, maxIter: 200}
	res, err := solveLM(context.Background(), prob, []float64{1, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(res.theta[0]-2) > 1e-4 || math.Abs(res.theta[1]-0.7) > 1e-4 {
		t.Fatalf("theta = %v, want [2 0.7]", res.theta)
	}
}

func TestSolveLMCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prob := lmProblem{
		y:       []float64{1},
		penalty: []float64{0},
		eval:    func(theta, yhat []float64, jac [][]float64) { yhat[0] = theta[0]; jac[0][0] = 1 },
		maxIter: 10,
	}
	if _, err := solveLM(ctx, prob, []float64{0}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
