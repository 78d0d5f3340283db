package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Imputer replaces NaN inputs with per-feature medians learned at fit time.
type Imputer struct {
	Medians []float64 `json:"medians"`
}

// Scaler standardizes inputs with per-feature means and deviations learned at
// fit time.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

func fitImputer(features [][]float64) Imputer {
	featureCount := len(features[0])
	medians := make([]float64, featureCount)
	column := make([]float64, 0, len(features))
	for j := 0; j < featureCount; j++ {
		column = column[:0]
		for _, row := range features {
			if !math.IsNaN(row[j]) {
				column = append(column, row[j])
			}
		}
		medians[j] = median(column)
	}
	return Imputer{Medians: medians}
}

func (im Imputer) apply(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if math.IsNaN(v) && j < len(im.Medians) {
			out[j] = im.Medians[j]
		} else {
			out[j] = v
		}
	}
	return out
}

func fitScaler(features [][]float64) Scaler {
	featureCount := len(features[0])
	means := make([]float64, featureCount)
	stds := make([]float64, featureCount)
	n := float64(len(features))
	for j := 0; j < featureCount; j++ {
		sum := 0.0
		for _, row := range features {
			sum += row[j]
		}
		means[j] = sum / n

		varSum := 0.0
		for _, row := range features {
			d := row[j] - means[j]
			varSum += d * d
		}
		stds[j] = math.Sqrt(varSum / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return Scaler{Means: means, Stds: stds}
}

func (sc Scaler) apply(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j < len(sc.Means) {
			out[j] = (v - sc.Means[j]) / sc.Stds[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// ClassificationPipeline chains imputation, scaling, and a forest classifier.
type ClassificationPipeline struct {
	FeatureNames []string          `json:"feature_names"`
	Imputer      Imputer           `json:"imputer"`
	Scaler       Scaler            `json:"scaler"`
	Forest       *ForestClassifier `json:"forest"`
}

// RegressionPipeline chains imputation, scaling, and a forest regressor.
type RegressionPipeline struct {
	FeatureNames []string         `json:"feature_names"`
	Imputer      Imputer          `json:"imputer"`
	Scaler       Scaler           `json:"scaler"`
	Forest       *ForestRegressor `json:"forest"`
}

// FitClassificationPipeline learns preprocessing statistics on the raw matrix
// and trains the forest on the transformed rows.
func FitClassificationPipeline(featureNames []string, features [][]float64, labels []int, opts ForestOptions) (*ClassificationPipeline, error) {
	if len(features) == 0 {
		return nil, errors.New("features empty")
	}
	imputer := fitImputer(features)
	imputed := applyAll(imputer.apply, features)
	scaler := fitScaler(imputed)
	scaled := applyAll(scaler.apply, imputed)

	forest, err := TrainForestClassifier(scaled, labels, opts)
	if err != nil {
		return nil, err
	}
	return &ClassificationPipeline{
		FeatureNames: featureNames,
		Imputer:      imputer,
		Scaler:       scaler,
		Forest:       forest,
	}, nil
}

// FitRegressionPipeline is the regression counterpart of
// FitClassificationPipeline.
func FitRegressionPipeline(featureNames []string, features [][]float64, targets []float64, opts ForestOptions) (*RegressionPipeline, error) {
	if len(features) == 0 {
		return nil, errors.New("features empty")
	}
	imputer := fitImputer(features)
	imputed := applyAll(imputer.apply, features)
	scaler := fitScaler(imputed)
	scaled := applyAll(scaler.apply, imputed)

	forest, err := TrainForestRegressor(scaled, targets, opts)
	if err != nil {
		return nil, err
	}
	return &RegressionPipeline{
		FeatureNames: featureNames,
		Imputer:      imputer,
		Scaler:       scaler,
		Forest:       forest,
	}, nil
}

func applyAll(fn func([]float64) []float64, features [][]float64) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		out[i] = fn(row)
	}
	return out
}

func (p *ClassificationPipeline) transform(row []float64) ([]float64, error) {
	if len(row) != len(p.FeatureNames) {
		return nil, fmt.Errorf("expected %d features, got %d", len(p.FeatureNames), len(row))
	}
	return p.Scaler.apply(p.Imputer.apply(row)), nil
}

// Predict returns the class label for a raw feature row.
func (p *ClassificationPipeline) Predict(row []float64) (int, error) {
	transformed, err := p.transform(row)
	if err != nil {
		return 0, err
	}
	return p.Forest.Predict(transformed)
}

// PredictProba returns per-class probabilities for a raw feature row.
func (p *ClassificationPipeline) PredictProba(row []float64) ([]float64, error) {
	transformed, err := p.transform(row)
	if err != nil {
		return nil, err
	}
	return p.Forest.PredictProba(transformed)
}

// Predict returns the regression estimate for a raw feature row.
func (p *RegressionPipeline) Predict(row []float64) (float64, error) {
	if len(row) != len(p.FeatureNames) {
		return 0, fmt.Errorf("expected %d features, got %d", len(p.FeatureNames), len(row))
	}
	return p.Forest.Predict(p.Scaler.apply(p.Imputer.apply(row)))
}

// Save writes the pipeline as a JSON artifact.
func (p *ClassificationPipeline) Save(path string) error {
	return saveJSON(path, p)
}

// Save writes the pipeline as a JSON artifact.
func (p *RegressionPipeline) Save(path string) error {
	return saveJSON(path, p)
}

// LoadClassificationPipeline reads a pipeline artifact from disk.
func LoadClassificationPipeline(path string) (*ClassificationPipeline, error) {
	var pipeline ClassificationPipeline
	if err := loadJSON(path, &pipeline); err != nil {
		return nil, err
	}
	if pipeline.Forest == nil || len(pipeline.Forest.Trees) == 0 {
		return nil, errors.New("artifact has no trained forest")
	}
	return &pipeline, nil
}

// LoadRegressionPipeline reads a pipeline artifact from disk.
func LoadRegressionPipeline(path string) (*RegressionPipeline, error) {
	var pipeline RegressionPipeline
	if err := loadJSON(path, &pipeline); err != nil {
		return nil, err
	}
	if pipeline.Forest == nil || len(pipeline.Forest.Trees) == 0 {
		return nil, errors.New("artifact has no trained forest")
	}
	return &pipeline, nil
}

func saveJSON(path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func loadJSON(path string, v any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
