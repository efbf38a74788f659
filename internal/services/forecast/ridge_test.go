package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestRidgeShrinksWithAlpha(t *testing.T) {
	X, y, _ := wavyData(50)

	var prev = math.Inf(1)
	for _, alpha := range []float64{0.01, 0.1, 1, 10, 100} {
		m, err := Ridge{}.Fit(X, y, alpha)
		require.NoError(t, err)
		norm := floats.Norm(m.Coefficients(), 2)
		assert.Less(t, norm, prev, "alpha=%v", alpha)
		prev = norm
	}
}

func TestRidgeInterceptNotPenalized(t *testing.T) {
	// y is a constant offset with no feature signal: a huge alpha must still
	// recover the mean through the intercept.
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{7, 7, 7, 7}

	m, err := Ridge{}.Fit(X, y, 1e6)
	require.NoError(t, err)
	assert.InDelta(t, 0, m.Coefficients()[0], 1e-12)
	assert.InDelta(t, 7, m.Intercept(), 1e-12)

	pred, err := m.Predict([][]float64{{100}})
	require.NoError(t, err)
	assert.InDelta(t, 7, pred[0], 1e-9)
}

func TestRidgeZeroAlphaMatchesOLS(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []float64{1, 3, 5, 7, 9}

	m, err := Ridge{}.Fit(X, y, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2, m.Coefficients()[0], 1e-12)
	assert.InDelta(t, 1, m.Intercept(), 1e-12)
}

func TestRidgeSingularSystem(t *testing.T) {
	// a constant column centers to zero; without regularization the normal
	// equations are singular.
	X := [][]float64{{3}, {3}, {3}, {3}}
	y := []float64{1, 2, 3, 4}

	_, err := Ridge{}.Fit(X, y, 0)
	assert.ErrorIs(t, err, ErrBackendFit)

	m, err := Ridge{}.Fit(X, y, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, m.Intercept(), 1e-12)
}

func TestRidgeRejectsBadInput(t *testing.T) {
	_, err := Ridge{}.Fit(nil, nil, 1)
	assert.ErrorIs(t, err, ErrBackendFit)

	_, err = Ridge{}.Fit([][]float64{{1}, {2}}, []float64{1}, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Ridge{}.Fit([][]float64{{1}, {2, 3}}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Ridge{}.Fit([][]float64{{1}, {2}}, []float64{1, 2}, -1)
	assert.ErrorIs(t, err, ErrInvalidParams)

	m, err := Ridge{}.Fit([][]float64{{1}, {2}}, []float64{1, 2}, 1)
	require.NoError(t, err)
	_, err = m.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestScores(t *testing.T) {
	assert.Equal(t, 1.0, R2Score([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.InDelta(t, 0.5, R2Score([]float64{1, 2, 3}, []float64{1.5, 2, 2.5}), 1e-12)
	assert.Less(t, R2Score([]float64{1, 2, 3}, []float64{3, 2, 1}), 0.0)
	assert.Equal(t, 1.0, R2Score([]float64{4, 4}, []float64{4, 4}))
	assert.Equal(t, 0.0, R2Score([]float64{4, 4}, []float64{4, 5}))

	assert.InDelta(t, 1.0/6, MeanSquaredError([]float64{1, 2, 3}, []float64{1.5, 2, 2.5}), 1e-12)
	assert.True(t, math.IsNaN(MeanSquaredError(nil, nil)))
}
