package ml

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"exointel/features"
)

// Class labels. The label encoding is fixed by the trainer: 0 is FALSE
// POSITIVE, 1 is CONFIRMED.
const (
	LabelFalsePositive = "FALSE POSITIVE"
	LabelConfirmed     = "CONFIRMED"
)

// Artifact file names produced by cmd/train_model and consumed here.
const (
	ClassificationPipelineFile = "classification_pipeline.json"
	RegressionPipelineFile     = "regression_pipeline.json"
	ClassificationMetricsFile  = "classification_metrics.json"
	RegressionMetricsFile      = "regression_metrics.json"
)

// defaultStdError is used when no trained regression metric is available.
const defaultStdError = 0.5

// ClassificationMetrics is the side-file written next to the classification
// pipeline.
type ClassificationMetrics struct {
	Accuracy float64 `json:"accuracy"`
}

// RegressionMetrics is the side-file written next to the regression pipeline.
type RegressionMetrics struct {
	RMSE     float64 `json:"rmse"`
	StdError float64 `json:"std_error"`
}

// ClassificationResult is the structured output of a classification call.
type ClassificationResult struct {
	Prediction    string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
	Confidence    float64            `json:"confidence"`
}

// ConfidenceInterval bounds a regression estimate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// RegressionResult is the structured output of a regression call.
type RegressionResult struct {
	Prediction         float64            `json:"prediction"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Unit               string             `json:"unit"`
}

// Info summarizes registry state for the models/info endpoint.
type Info struct {
	ClassificationModel   string                 `json:"classification_model,omitempty"`
	RegressionModel       string                 `json:"regression_model,omitempty"`
	ClassificationMetrics *ClassificationMetrics `json:"classification_metrics"`
	RegressionMetrics     *RegressionMetrics     `json:"regression_metrics"`
	ModelsLoaded          bool                   `json:"models_loaded"`
	Features              []string               `json:"features"`
}

// Registry owns the fitted pipelines and serves predictions. Pipelines are
// read-only after load; Reload swaps them atomically under the lock.
type Registry struct {
	mu         sync.RWMutex
	dir        string
	classifier Classifier
	regressor  Regressor
	clfMetrics *ClassificationMetrics
	regMetrics *RegressionMetrics

	cache  *lru.Cache[string, any]
	logger *zap.Logger
}

// NewRegistry creates an empty registry reading artifacts from dir.
// cacheSize <= 0 disables the inference cache.
func NewRegistry(dir string, cacheSize int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{dir: dir, logger: logger}
	if cacheSize > 0 {
		// Size is validated above; lru.New only fails on size <= 0.
		r.cache, _ = lru.New[string, any](cacheSize)
	}
	return r
}

// Load reads whatever artifacts exist in the registry directory. Each of the
// four files may be absent; a missing pipeline leaves that task disabled and
// missing metrics fall back to defaults.
func (r *Registry) Load() {
	var (
		classifier Classifier
		regressor  Regressor
		clfMetrics *ClassificationMetrics
		regMetrics *RegressionMetrics
	)

	path := filepath.Join(r.dir, ClassificationPipelineFile)
	if fileExists(path) {
		pipeline, err := LoadClassificationPipeline(path)
		if err != nil {
			r.logger.Warn("failed to load classification pipeline", zap.String("path", path), zap.Error(err))
		} else {
			classifier = pipeline
			r.logger.Info("loaded classification pipeline", zap.String("path", path))
		}
	} else {
		r.logger.Info("classification pipeline not found", zap.String("path", path))
	}

	path = filepath.Join(r.dir, RegressionPipelineFile)
	if fileExists(path) {
		pipeline, err := LoadRegressionPipeline(path)
		if err != nil {
			r.logger.Warn("failed to load regression pipeline", zap.String("path", path), zap.Error(err))
		} else {
			regressor = pipeline
			r.logger.Info("loaded regression pipeline", zap.String("path", path))
		}
	} else {
		r.logger.Info("regression pipeline not found", zap.String("path", path))
	}

	path = filepath.Join(r.dir, ClassificationMetricsFile)
	if fileExists(path) {
		var metrics ClassificationMetrics
		if err := loadJSON(path, &metrics); err != nil {
			r.logger.Warn("failed to load classification metrics", zap.String("path", path), zap.Error(err))
		} else {
			clfMetrics = &metrics
		}
	}

	path = filepath.Join(r.dir, RegressionMetricsFile)
	if fileExists(path) {
		var metrics RegressionMetrics
		if err := loadJSON(path, &metrics); err != nil {
			r.logger.Warn("failed to load regression metrics", zap.String("path", path), zap.Error(err))
		} else {
			regMetrics = &metrics
		}
	}

	r.mu.Lock()
	r.classifier = classifier
	r.regressor = regressor
	r.clfMetrics = clfMetrics
	r.regMetrics = regMetrics
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Purge()
	}
}

// SetClassifier replaces the classification estimator. Used by tests and by
// callers composing a registry without disk artifacts.
func (r *Registry) SetClassifier(c Classifier) {
	r.mu.Lock()
	r.classifier = c
	r.mu.Unlock()
	if r.cache != nil {
		r.cache.Purge()
	}
}

// SetRegressor replaces the regression estimator.
func (r *Registry) SetRegressor(reg Regressor) {
	r.mu.Lock()
	r.regressor = reg
	r.mu.Unlock()
	if r.cache != nil {
		r.cache.Purge()
	}
}

// SetRegressionMetrics replaces the stored regression metrics.
func (r *Registry) SetRegressionMetrics(m *RegressionMetrics) {
	r.mu.Lock()
	r.regMetrics = m
	r.mu.Unlock()
}

// PredictClassification classifies a validated feature vector.
func (r *Registry) PredictClassification(vector features.Vector) (ClassificationResult, error) {
	r.mu.RLock()
	classifier := r.classifier
	r.mu.RUnlock()
	if classifier == nil {
		return ClassificationResult{}, ErrModelNotLoaded
	}

	row := vector.Slice(features.Names())
	key := cacheKey("clf", row)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.(ClassificationResult), nil
		}
	}

	label, err := classifier.Predict(row)
	if err != nil {
		return ClassificationResult{}, err
	}
	probs, err := classifier.PredictProba(row)
	if err != nil {
		return ClassificationResult{}, err
	}
	if len(probs) < 2 {
		probs = append(probs, make([]float64, 2-len(probs))...)
	}

	prediction := LabelFalsePositive
	if label == 1 {
		prediction = LabelConfirmed
	}

	result := ClassificationResult{
		Prediction: prediction,
		Probabilities: map[string]float64{
			LabelConfirmed:     probs[1],
			LabelFalsePositive: probs[0],
		},
		Confidence: math.Max(probs[0], probs[1]),
	}
	if r.cache != nil {
		r.cache.Add(key, result)
	}
	return result, nil
}

// PredictRegression estimates planetary radius for a validated feature
// vector. The radius feature is zeroed before inference: training masked the
// target the same way, and serving must reproduce it exactly.
func (r *Registry) PredictRegression(vector features.Vector) (RegressionResult, error) {
	r.mu.RLock()
	regressor := r.regressor
	metrics := r.regMetrics
	r.mu.RUnlock()
	if regressor == nil {
		return RegressionResult{}, ErrModelNotLoaded
	}

	masked := vector.Clone()
	masked["koi_prad"] = 0
	row := masked.Slice(features.Names())

	key := cacheKey("reg", row)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.(RegressionResult), nil
		}
	}

	prediction, err := regressor.Predict(row)
	if err != nil {
		return RegressionResult{}, err
	}
	if prediction < 0.1 {
		prediction = 0.1
	}

	stdError := defaultStdError
	if metrics != nil && metrics.StdError > 0 {
		stdError = metrics.StdError
	}

	// Approximate 95% interval at 2 standard errors, floored at the smallest
	// physical radius the schema admits.
	result := RegressionResult{
		Prediction: prediction,
		ConfidenceInterval: ConfidenceInterval{
			Lower: round4(math.Max(0.1, prediction-2*stdError)),
			Upper: round4(prediction + 2*stdError),
		},
		Unit: "Earth radii",
	}
	if r.cache != nil {
		r.cache.Add(key, result)
	}
	return result, nil
}

// Info reports which pipelines are loaded and their stored metrics.
func (r *Registry) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := Info{
		ClassificationMetrics: r.clfMetrics,
		RegressionMetrics:     r.regMetrics,
		ModelsLoaded:          r.classifier != nil && r.regressor != nil,
		Features:              features.Names(),
	}
	if r.classifier != nil {
		info.ClassificationModel = ClassificationPipelineFile
	}
	if r.regressor != nil {
		info.RegressionModel = RegressionPipelineFile
	}
	return info
}

func cacheKey(task string, row []float64) string {
	var b strings.Builder
	b.WriteString(task)
	for _, v := range row {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
