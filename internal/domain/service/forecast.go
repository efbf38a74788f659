package service

import "context"

// Regressor fits a regularized linear model on a training window.
type Regressor interface {
	Fit(X [][]float64, y []float64, alpha float64) (Model, error)
}

// Model is a fitted regressor. Instances are never refitted.
type Model interface {
	Predict(X [][]float64) ([]float64, error)
	Coefficients() []float64
	Intercept() float64
}

// TextGenerator turns a prompt into generated text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
