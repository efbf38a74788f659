package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination 1 - SS_res/SS_tot.
// A constant target scores 1 when fitted exactly and 0 otherwise.
func R2Score(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return math.NaN()
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i, v := range yTrue {
		r := v - yPred[i]
		ssRes += r * r
		d := v - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// MeanSquaredError is the arithmetic mean of squared residuals.
func MeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return math.NaN()
	}
	var sum float64
	for i, v := range yTrue {
		r := v - yPred[i]
		sum += r * r
	}
	return sum / float64(len(yTrue))
}
