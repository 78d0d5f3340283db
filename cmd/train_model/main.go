package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"exointel/ml"
)

func main() {
	samples := flag.Int("samples", 5000, "synthetic catalog size")
	outDir := flag.String("out", "./models", "artifact output directory")
	trees := flag.Int("trees", 100, "number of trees per forest")
	maxDepth := flag.Int("max_depth", 10, "max tree depth")
	testRatio := flag.Float64("test_ratio", 0.2, "held-out test fraction")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	log.Printf("generating synthetic catalog: %d samples", *samples)
	catalog, err := ml.GenerateSyntheticCatalog(*samples, *seed)
	if err != nil {
		log.Fatalf("failed to generate catalog: %v", err)
	}

	trainX, testX, trainLabels, testLabels, trainRadii, testRadii := splitCatalog(catalog, *testRatio)

	opts := ml.ForestOptions{Trees: *trees, MaxDepth: *maxDepth, Seed: *seed}

	log.Printf("training classification pipeline")
	clfPipeline, err := ml.FitClassificationPipeline(catalog.FeatureNames, trainX, trainLabels, opts)
	if err != nil {
		log.Fatalf("failed to train classifier: %v", err)
	}
	accuracy := evaluateClassifier(clfPipeline, testX, testLabels)
	log.Printf("classification accuracy=%.4f", accuracy)

	// The regression target is koi_prad itself, so it is masked to zero in
	// the training inputs. The serving path repeats this mask; training and
	// serving must agree or the model sees its own target.
	log.Printf("training regression pipeline")
	radiusIdx := featureIndex(catalog.FeatureNames, "koi_prad")
	regTrainX := maskColumn(trainX, radiusIdx)
	regTestX := maskColumn(testX, radiusIdx)

	regPipeline, err := ml.FitRegressionPipeline(catalog.FeatureNames, regTrainX, trainRadii, opts)
	if err != nil {
		log.Fatalf("failed to train regressor: %v", err)
	}
	rmse := evaluateRegressor(regPipeline, regTestX, testRadii)
	log.Printf("regression rmse=%.4f", rmse)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	if err := clfPipeline.Save(filepath.Join(*outDir, ml.ClassificationPipelineFile)); err != nil {
		log.Fatalf("failed to save classification pipeline: %v", err)
	}
	if err := regPipeline.Save(filepath.Join(*outDir, ml.RegressionPipelineFile)); err != nil {
		log.Fatalf("failed to save regression pipeline: %v", err)
	}
	if err := saveMetrics(filepath.Join(*outDir, ml.ClassificationMetricsFile), ml.ClassificationMetrics{Accuracy: accuracy}); err != nil {
		log.Fatalf("failed to save classification metrics: %v", err)
	}
	if err := saveMetrics(filepath.Join(*outDir, ml.RegressionMetricsFile), ml.RegressionMetrics{RMSE: rmse, StdError: rmse}); err != nil {
		log.Fatalf("failed to save regression metrics: %v", err)
	}

	fmt.Printf("artifacts saved to %s\n", *outDir)
}

func splitCatalog(catalog *ml.SyntheticCatalog, testRatio float64) (trainX, testX [][]float64, trainLabels, testLabels []int, trainRadii, testRadii []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	split := int(float64(len(catalog.X)) * (1 - testRatio))
	for i := range catalog.X {
		if i < split {
			trainX = append(trainX, catalog.X[i])
			trainLabels = append(trainLabels, catalog.Labels[i])
			trainRadii = append(trainRadii, catalog.Radii[i])
		} else {
			testX = append(testX, catalog.X[i])
			testLabels = append(testLabels, catalog.Labels[i])
			testRadii = append(testRadii, catalog.Radii[i])
		}
	}
	return
}

func evaluateClassifier(pipeline *ml.ClassificationPipeline, testX [][]float64, testLabels []int) float64 {
	if len(testX) == 0 {
		return 0
	}
	correct := 0
	for i, row := range testX {
		label, err := pipeline.Predict(row)
		if err != nil {
			continue
		}
		if label == testLabels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX))
}

func evaluateRegressor(pipeline *ml.RegressionPipeline, testX [][]float64, testTargets []float64) float64 {
	if len(testX) == 0 {
		return 0
	}
	sumSq := 0.0
	for i, row := range testX {
		prediction, err := pipeline.Predict(row)
		if err != nil {
			continue
		}
		d := prediction - testTargets[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(testX)))
}

func featureIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func maskColumn(rows [][]float64, idx int) [][]float64 {
	if idx < 0 {
		return rows
	}
	masked := make([][]float64, len(rows))
	for i, row := range rows {
		out := append([]float64(nil), row...)
		out[idx] = 0
		masked[i] = out
	}
	return masked
}

func saveMetrics(path string, metrics any) error {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
