package forecast

import (
	"fmt"
	"math"

	domsvc "FinCast/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is a closed-form L2-regularized least squares regressor.
// The intercept is fitted on centered data and is not penalized.
type Ridge struct{}

var _ domsvc.Regressor = Ridge{}

// Fit solves (XcᵀXc + αI)β = Xcᵀyc on the column-centered window.
func (Ridge) Fit(X [][]float64, y []float64, alpha float64) (domsvc.Model, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty training window", ErrBackendFit)
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, n, len(y))
	}
	if alpha < 0 || math.IsNaN(alpha) {
		return nil, fmt.Errorf("%w: alpha=%v", ErrInvalidParams, alpha)
	}
	k := len(X[0])
	if k == 0 {
		return nil, fmt.Errorf("%w: zero feature columns", ErrShapeMismatch)
	}

	xm := make([]float64, k)
	for i, row := range X {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), k)
		}
		floats.Add(xm, row)
	}
	floats.Scale(1/float64(n), xm)
	ym := stat.Mean(y, nil)

	xc := mat.NewDense(n, k, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-xm[j])
		}
		yc.SetVec(i, y[i]-ym)
	}

	gram := mat.NewSymDense(k, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < k; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	beta, err := solveSym(gram, &rhs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendFit, err)
	}

	coef := make([]float64, k)
	for j := range coef {
		coef[j] = beta.AtVec(j)
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", ErrBackendFit)
		}
	}
	return &ridgeModel{coef: coef, intercept: ym - floats.Dot(xm, coef)}, nil
}

// solveSym prefers Cholesky and falls back to LU when the system is not
// positive definite. A singular system is an error.
func solveSym(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var x mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(a) {
		if err := chol.SolveVecTo(&x, b); err != nil {
			return nil, fmt.Errorf("cholesky solve: %w", err)
		}
		return &x, nil
	}
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("lu solve: %w", err)
	}
	return &x, nil
}

type ridgeModel struct {
	coef      []float64
	intercept float64
}

func (m *ridgeModel) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.coef) {
			return nil, fmt.Errorf("%w: row %d has %d columns, model has %d", ErrShapeMismatch, i, len(row), len(m.coef))
		}
		out[i] = floats.Dot(row, m.coef) + m.intercept
	}
	return out, nil
}

func (m *ridgeModel) Coefficients() []float64 {
	c := make([]float64, len(m.coef))
	copy(c, m.coef)
	return c
}

func (m *ridgeModel) Intercept() float64 { return m.intercept }
