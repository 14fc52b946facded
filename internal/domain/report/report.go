// Package report is the thin model-evaluation collaborator: it fits a
// caller-provided classifier on a seeded split and reports discrimination
// quality at each requested threshold. The pipeline's real work happens
// upstream; nothing here is feature logic.
package report

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Classifier is the contract a supervised model must satisfy.
type Classifier interface {
	// Fit trains on the feature matrix and binary labels.
	Fit(ctx context.Context, features [][]float64, labels []int) error
	// PredictProba returns the positive-class probability per row.
	PredictProba(ctx context.Context, features [][]float64) ([]float64, error)
}

// Factory builds a fresh classifier for a given seed.
type Factory func(seed int64) Classifier

// Metrics is one threshold's evaluation.
type Metrics struct {
	Threshold  float64
	AUC        float64
	LogLoss    float64
	Accuracy   float64
	Precision  float64
	Recall     float64
	F1         float64
	TrueCount  int
	FalseCount int
}

// Default evaluation configuration.
const (
	DefaultTestFraction = 0.25
	probabilityEpsilon  = 1e-15
)

// Run splits features/labels with the seed, fits a classifier from the
// factory and evaluates the held-out predictions at every threshold.
func Run(ctx context.Context, features [][]float64, labels []int, factory Factory, thresholds []float64, seed int64) ([]Metrics, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature rows, %d labels", ErrShapeMismatch, len(features), len(labels))
	}
	if len(features) == 0 {
		return nil, ErrEmptyInput
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	trainX, testX, trainY, testY := Split(features, labels, seed, DefaultTestFraction)

	model := factory(seed)
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit failed: %w", err)
	}
	probs, err := model.PredictProba(ctx, testX)
	if err != nil {
		return nil, fmt.Errorf("predict failed: %w", err)
	}
	if len(probs) != len(testY) {
		return nil, fmt.Errorf("%w: %d probabilities for %d held-out rows", ErrShapeMismatch, len(probs), len(testY))
	}

	auc := AUC(testY, probs)
	loss := LogLoss(testY, probs)

	out := make([]Metrics, 0, len(thresholds))
	for _, th := range thresholds {
		m := confusion(testY, probs, th)
		m.AUC = auc
		m.LogLoss = loss
		out = append(out, m)
	}
	return out, nil
}

// Split shuffles rows with the seed and carves off the test fraction.
// The same seed always yields the same partition.
func Split(features [][]float64, labels []int, seed int64, testFraction float64) (trainX, testX [][]float64, trainY, testY []int) {
	n := len(features)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split, not cryptography
	rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })

	testN := int(math.Round(float64(n) * testFraction))
	if testN < 1 && n > 1 {
		testN = 1
	}
	for i, idx := range order {
		if i < testN {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		}
	}
	return trainX, testX, trainY, testY
}

// AUC computes the area under the ROC curve via the rank statistic
// (probability that a random positive outranks a random negative), with
// tie correction. Degenerate label sets yield NaN.
func AUC(labels []int, probs []float64) float64 {
	n := len(labels)
	pos, neg := 0, 0
	for _, y := range labels {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] < probs[order[b]] })

	// Average ranks across ties, then sum positive ranks.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // 1-based average rank of the tie run
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var posRankSum float64
	for i, y := range labels {
		if y == 1 {
			posRankSum += ranks[i]
		}
	}
	return (posRankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

// LogLoss computes the mean negative log-likelihood with probability
// clipping, so a confident wrong prediction stays finite.
func LogLoss(labels []int, probs []float64) float64 {
	if len(labels) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, y := range labels {
		p := math.Min(math.Max(probs[i], probabilityEpsilon), 1-probabilityEpsilon)
		if y == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(labels))
}

// confusion evaluates threshold-dependent metrics. Empty classes follow
// the usual degenerate conventions (precision of zero predictions is 0).
func confusion(labels []int, probs []float64, threshold float64) Metrics {
	var tp, fp, tn, fn int
	for i, y := range labels {
		predicted := probs[i] > threshold
		switch {
		case predicted && y == 1:
			tp++
		case predicted && y != 1:
			fp++
		case !predicted && y == 1:
			fn++
		default:
			tn++
		}
	}
	m := Metrics{
		Threshold:  threshold,
		TrueCount:  tp + fp,
		FalseCount: tn + fn,
	}
	total := float64(len(labels))
	if total > 0 {
		m.Accuracy = float64(tp+tn) / total
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
