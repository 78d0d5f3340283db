package ml

import (
	"errors"
	"math"
	"math/rand"
)

// ForestOptions controls forest training.
type ForestOptions struct {
	Trees       int
	MaxDepth    int
	SplitTrials int // candidate features per split; 0 uses sqrt(feature count)
	Seed        int64
}

func (o ForestOptions) normalized(featureCount int) ForestOptions {
	if o.Trees <= 0 {
		o.Trees = 100
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 10
	}
	if o.SplitTrials <= 0 {
		o.SplitTrials = int(math.Ceil(math.Sqrt(float64(featureCount))))
	}
	return o
}

// ForestClassifier is a bootstrap-aggregated ensemble of classification trees.
type ForestClassifier struct {
	Trees   []*Tree `json:"trees"`
	Classes int     `json:"classes"`
}

// ForestRegressor averages the leaf means of an ensemble of regression trees.
type ForestRegressor struct {
	Trees []*Tree `json:"trees"`
}

// TrainForestClassifier fits a random forest on integer class labels.
func TrainForestClassifier(features [][]float64, labels []int, opts ForestOptions) (*ForestClassifier, error) {
	if len(features) == 0 || len(labels) == 0 {
		return nil, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return nil, errors.New("features and labels size mismatch")
	}

	classes := 0
	targets := make([]float64, len(labels))
	for i, label := range labels {
		if label < 0 {
			return nil, errors.New("labels must be non-negative")
		}
		if label+1 > classes {
			classes = label + 1
		}
		targets[i] = float64(label)
	}

	opts = opts.normalized(len(features[0]))
	rng := rand.New(rand.NewSource(opts.Seed))

	forest := &ForestClassifier{Classes: classes}
	for i := 0; i < opts.Trees; i++ {
		sampleFeatures, sampleTargets := bootstrap(features, targets, rng)
		tree, err := growTree(sampleFeatures, sampleTargets, treeConfig{
			task:        taskClassify,
			classes:     classes,
			maxDepth:    opts.MaxDepth,
			splitTrials: opts.SplitTrials,
			rng:         rng,
		})
		if err != nil {
			return nil, err
		}
		forest.Trees = append(forest.Trees, tree)
	}
	return forest, nil
}

// TrainForestRegressor fits a random forest on continuous targets.
func TrainForestRegressor(features [][]float64, targets []float64, opts ForestOptions) (*ForestRegressor, error) {
	if len(features) == 0 || len(targets) == 0 {
		return nil, errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return nil, errors.New("features and targets size mismatch")
	}

	opts = opts.normalized(len(features[0]))
	rng := rand.New(rand.NewSource(opts.Seed))

	forest := &ForestRegressor{}
	for i := 0; i < opts.Trees; i++ {
		sampleFeatures, sampleTargets := bootstrap(features, targets, rng)
		tree, err := growTree(sampleFeatures, sampleTargets, treeConfig{
			task:        taskRegress,
			maxDepth:    opts.MaxDepth,
			splitTrials: opts.SplitTrials,
			rng:         rng,
		})
		if err != nil {
			return nil, err
		}
		forest.Trees = append(forest.Trees, tree)
	}
	return forest, nil
}

// PredictProba averages the leaf class histograms across the ensemble. The
// returned slice is indexed by class label and sums to 1.
func (f *ForestClassifier) PredictProba(features []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("forest not trained")
	}
	probs := make([]float64, f.Classes)
	for _, tree := range f.Trees {
		counts, err := tree.classCounts(features)
		if err != nil {
			return nil, err
		}
		total := 0
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			continue
		}
		for class, c := range counts {
			if class < len(probs) {
				probs[class] += float64(c) / float64(total)
			}
		}
	}
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if sum == 0 {
		return nil, errors.New("forest produced no votes")
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// Predict returns the class with the highest averaged probability.
func (f *ForestClassifier) Predict(features []float64) (int, error) {
	probs, err := f.PredictProba(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for class, p := range probs {
		if p > probs[best] {
			best = class
		}
	}
	return best, nil
}

// Predict returns the mean of the per-tree leaf values.
func (f *ForestRegressor) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("forest not trained")
	}
	sum := 0.0
	for _, tree := range f.Trees {
		value, err := tree.value(features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(f.Trees)), nil
}

func bootstrap(features [][]float64, targets []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(features)
	sampleFeatures := make([][]float64, n)
	sampleTargets := make([]float64, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		sampleFeatures[i] = features[j]
		sampleTargets[i] = targets[j]
	}
	return sampleFeatures, sampleTargets
}
