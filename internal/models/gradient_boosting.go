package models

import (
	"math"
	"sort"
)

// boostStump is a single depth-1 regression tree on the residuals.
type boostStump struct {
	Feature   int
	Threshold float64
	LeftVal   float64
	RightVal  float64
}

type GradientBoosting struct {
	NEstimators   int
	LearningRate  float64
	MinSamples    int
	MaxThresholds int
	BaseScore     float64
	Trees         []boostStump
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{NEstimators: 50, LearningRate: 0.1, MaxThresholds: 32}
}

func (gb *GradientBoosting) Name() string { return "GradientBoosting" }

func Sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return nil
	}
	pos := 0
	for i := 0; i < n; i++ {
		if y[i] == 1 {
			pos++
		}
	}
	base := float64(pos) / float64(n)
	base = math.Min(math.Max(base, 1e-3), 1-1e-3)
	gb.BaseScore = math.Log(base / (1.0 - base))

	F := make([]float64, n)
	for i := range F {
		F[i] = gb.BaseScore
	}

	for m := 0; m < gb.NEstimators; m++ {
		r := make([]float64, n)
		for i := 0; i < n; i++ {
			r[i] = float64(y[i]) - Sigmoid(F[i])
		}

		best := boostStump{Feature: -1}
		bestSSE := math.MaxFloat64
		for j := 0; j < len(X[0]); j++ {
			for _, thr := range quantileThresholds(X, j, gb.MaxThresholds) {
				leftSum, leftCount := 0.0, 0.0
				rightSum, rightCount := 0.0, 0.0
				for i := 0; i < n; i++ {
					if X[i][j] <= thr {
						leftSum += r[i]
						leftCount++
					} else {
						rightSum += r[i]
						rightCount++
					}
				}
				if leftCount == 0 || rightCount == 0 {
					continue
				}
				if int(leftCount) < gb.MinSamples || int(rightCount) < gb.MinSamples {
					continue
				}
				leftAvg := leftSum / leftCount
				rightAvg := rightSum / rightCount

				sse := 0.0
				for i := 0; i < n; i++ {
					d := r[i] - rightAvg
					if X[i][j] <= thr {
						d = r[i] - leftAvg
					}
					sse += d * d
				}
				if sse < bestSSE {
					bestSSE = sse
					best = boostStump{Feature: j, Threshold: thr, LeftVal: leftAvg, RightVal: rightAvg}
				}
			}
		}
		if best.Feature == -1 {
			break
		}
		gb.Trees = append(gb.Trees, best)
		for i := 0; i < n; i++ {
			inc := best.LeftVal
			if X[i][best.Feature] > best.Threshold {
				inc = best.RightVal
			}
			F[i] += gb.LearningRate * inc
		}
	}
	return nil
}

// DecisionFunction returns the raw additive score before squashing.
func (gb *GradientBoosting) DecisionFunction(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		f := gb.BaseScore
		for _, t := range gb.Trees {
			inc := t.LeftVal
			if X[i][t.Feature] > t.Threshold {
				inc = t.RightVal
			}
			f += gb.LearningRate * inc
		}
		out[i] = f
	}
	return out
}

func (gb *GradientBoosting) PredictProba(X [][]float64) []float64 {
	out := gb.DecisionFunction(X)
	for i := range out {
		out[i] = Sigmoid(out[i])
	}
	return out
}

func (gb *GradientBoosting) Predict(X [][]float64) []int {
	p := gb.PredictProba(X)
	out := make([]int, len(p))
	for i := range p {
		if p[i] >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

// FeatureImportances weights each stump by the magnitude of its value split.
func (gb *GradientBoosting) FeatureImportances() []float64 {
	maxFeat := -1
	for _, t := range gb.Trees {
		if t.Feature > maxFeat {
			maxFeat = t.Feature
		}
	}
	out := make([]float64, maxFeat+1)
	for _, t := range gb.Trees {
		out[t.Feature] += math.Abs(t.LeftVal - t.RightVal)
	}
	return out
}

// quantileThresholds picks evenly spaced quantiles of feature j.
func quantileThresholds(X [][]float64, j int, nCand int) []float64 {
	if nCand <= 0 {
		nCand = 16
	}
	n := len(X)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = X[i][j]
	}
	sort.Float64s(vals)
	out := make([]float64, 0, nCand)
	for k := 1; k < nCand; k++ {
		idx := int(math.Round(float64(k) / float64(nCand) * float64(n-1)))
		if idx <= 0 || idx >= n {
			continue
		}
		thr := vals[idx]
		if len(out) == 0 || thr != out[len(out)-1] {
			out = append(out, thr)
		}
	}
	if len(out) == 0 {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[i]
		}
		out = append(out, sum/float64(n))
	}
	return out
}
