package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// treeTask selects the split criterion and leaf payload.
type treeTask int

const (
	taskClassify treeTask = iota
	taskRegress
)

// TreeNode is one node of a flattened decision tree. Children are indices
// into the node slice; leaves carry either a class histogram or a mean value.
type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	IsLeaf      bool    `json:"is_leaf"`
	ClassCounts []int   `json:"class_counts,omitempty"`
	Value       float64 `json:"value,omitempty"`
}

// Tree is a CART decision tree used as a forest member.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

type treeConfig struct {
	task        treeTask
	classes     int
	maxDepth    int
	minSamples  int
	splitTrials int // candidate features examined per split; 0 means all
	rng         *rand.Rand
}

// walk descends to the leaf for a feature row and returns its index.
func (t *Tree) walk(features []float64) (int, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("tree is empty")
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return idx, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// classCounts returns the class histogram at the leaf for a feature row.
func (t *Tree) classCounts(features []float64) ([]int, error) {
	idx, err := t.walk(features)
	if err != nil {
		return nil, err
	}
	counts := t.Nodes[idx].ClassCounts
	if counts == nil {
		return nil, errors.New("leaf has no class counts")
	}
	return counts, nil
}

// value returns the mean target value at the leaf for a feature row.
func (t *Tree) value(features []float64) (float64, error) {
	idx, err := t.walk(features)
	if err != nil {
		return 0, err
	}
	return t.Nodes[idx].Value, nil
}

func growTree(features [][]float64, targets []float64, cfg treeConfig) (*Tree, error) {
	if len(features) == 0 || len(targets) == 0 {
		return nil, errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return nil, errors.New("features and targets size mismatch")
	}
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = 10
	}
	if cfg.minSamples <= 0 {
		cfg.minSamples = 2
	}
	return &Tree{Nodes: buildNodes(features, targets, 0, cfg)}, nil
}

func buildNodes(features [][]float64, targets []float64, depth int, cfg treeConfig) []TreeNode {
	if depth >= cfg.maxDepth || len(targets) < cfg.minSamples || isUniform(targets) {
		return []TreeNode{leafNode(targets, cfg)}
	}

	featureIdx, threshold, ok := findBestSplit(features, targets, cfg)
	if !ok {
		return []TreeNode{leafNode(targets, cfg)}
	}

	leftFeatures, leftTargets, rightFeatures, rightTargets := partition(features, targets, featureIdx, threshold)
	if len(leftTargets) == 0 || len(rightTargets) == 0 {
		return []TreeNode{leafNode(targets, cfg)}
	}

	leftNodes := buildNodes(leftFeatures, leftTargets, depth+1, cfg)
	rightNodes := buildNodes(rightFeatures, rightTargets, depth+1, cfg)

	root := TreeNode{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func leafNode(targets []float64, cfg treeConfig) TreeNode {
	node := TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, IsLeaf: true}
	if cfg.task == taskClassify {
		counts := make([]int, cfg.classes)
		for _, t := range targets {
			counts[int(t)]++
		}
		node.ClassCounts = counts
		return node
	}
	node.Value = mean(targets)
	return node
}

func findBestSplit(features [][]float64, targets []float64, cfg treeConfig) (int, float64, bool) {
	featureCount := len(features[0])
	candidates := candidateFeatures(featureCount, cfg)

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.MaxFloat64

	values := make([]float64, len(features))
	for _, featureIdx := range candidates {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftTargets, rightTargets := partitionTargets(features, targets, featureIdx, threshold)
		if len(leftTargets) == 0 || len(rightTargets) == 0 {
			continue
		}
		var score float64
		if cfg.task == taskClassify {
			score = weightedGini(leftTargets, rightTargets)
		} else {
			score = weightedVariance(leftTargets, rightTargets)
		}
		if score < bestScore {
			bestScore = score
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// candidateFeatures picks the feature subset examined at a split. With a rng
// and splitTrials set, a random subset is drawn (bagging diversity);
// otherwise every feature is a candidate.
func candidateFeatures(featureCount int, cfg treeConfig) []int {
	if cfg.rng == nil || cfg.splitTrials <= 0 || cfg.splitTrials >= featureCount {
		all := make([]int, featureCount)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := cfg.rng.Perm(featureCount)
	return perm[:cfg.splitTrials]
}

func partition(features [][]float64, targets []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftFeatures, rightFeatures [][]float64
	var leftTargets, rightTargets []float64
	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, row)
			leftTargets = append(leftTargets, targets[i])
		} else {
			rightFeatures = append(rightFeatures, row)
			rightTargets = append(rightTargets, targets[i])
		}
	}
	return leftFeatures, leftTargets, rightFeatures, rightTargets
}

func partitionTargets(features [][]float64, targets []float64, featureIdx int, threshold float64) ([]float64, []float64) {
	var left, right []float64
	for i, row := range features {
		if row[featureIdx] <= threshold {
			left = append(left, targets[i])
		} else {
			right = append(right, targets[i])
		}
	}
	return left, right
}

func weightedGini(left, right []float64) float64 {
	leftWeight := float64(len(left))
	rightWeight := float64(len(right))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(left) + (rightWeight/total)*gini(right)
}

func gini(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, t := range targets {
		counts[int(t)]++
	}
	impurity := 1.0
	for _, count := range counts {
		p := float64(count) / float64(len(targets))
		impurity -= p * p
	}
	return impurity
}

func weightedVariance(left, right []float64) float64 {
	leftWeight := float64(len(left))
	rightWeight := float64(len(right))
	total := leftWeight + rightWeight
	return (leftWeight/total)*variance(left) + (rightWeight/total)*variance(right)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isUniform(targets []float64) bool {
	if len(targets) == 0 {
		return true
	}
	first := targets[0]
	for _, t := range targets[1:] {
		if t != first {
			return false
		}
	}
	return true
}
