// Package ml implements the estimators, preprocessing pipelines, and model
// registry behind the prediction API.
package ml

import "errors"

// ErrModelNotLoaded is returned by the registry when the pipeline for the
// requested task was not available at load time. The condition is not
// retryable by the caller; it clears only when the registry reloads.
var ErrModelNotLoaded = errors.New("model not loaded")

// Classifier is the capability contract the registry requires from a
// classification estimator.
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
}

// Regressor is the capability contract for a regression estimator.
type Regressor interface {
	Predict(features []float64) (float64, error)
}
