package models

import (
	"math"
	"math/rand"
)

type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	IsLeaf    bool
	Proba     float64
}

type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MaxThresholds   int
	MaxFeatures     int
	Root            *TreeNode
}

func NewDecisionTree() *DecisionTree {
	return &DecisionTree{MaxDepth: 6, MinSamplesSplit: 100, MaxThresholds: 64}
}

func (dt *DecisionTree) Name() string { return "DecisionTree" }

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	dt.Root = dt.build(X, y, idx, 0)
	return nil
}

func (dt *DecisionTree) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		if dt.probaOne(X[i]) >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

func (dt *DecisionTree) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = dt.probaOne(X[i])
	}
	return out
}

func (dt *DecisionTree) probaOne(x []float64) float64 {
	n := dt.Root
	if n == nil {
		return 0.5
	}
	for !n.IsLeaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
		if n == nil {
			return 0.5
		}
	}
	return n.Proba
}

// FeatureImportances counts split usage per feature over the whole tree.
func (dt *DecisionTree) FeatureImportances() []float64 {
	counts := map[int]float64{}
	maxFeat := 0
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n == nil || n.IsLeaf {
			return
		}
		counts[n.Feature]++
		if n.Feature > maxFeat {
			maxFeat = n.Feature
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(dt.Root)
	out := make([]float64, maxFeat+1)
	for f, c := range counts {
		out[f] = c
	}
	return out
}

func (dt *DecisionTree) build(X [][]float64, y []int, idx []int, depth int) *TreeNode {
	node := &TreeNode{}
	if len(idx) < dt.MinSamplesSplit || depth >= dt.MaxDepth {
		node.IsLeaf = true
		node.Proba = classProba(y, idx)
		return node
	}
	p := classProba(y, idx)
	if p == 0 || p == 1 {
		node.IsLeaf = true
		node.Proba = p
		return node
	}

	bestFeature := -1
	bestThr := 0.0
	bestImp := math.MaxFloat64
	var bestLeft, bestRight []int

	for _, f := range pickFeatures(len(X[0]), dt.MaxFeatures) {
		for _, thr := range candidateThresholds(X, idx, f, dt.MaxThresholds) {
			lIdx, rIdx := splitIdx(X, idx, f, thr)
			if len(lIdx) == 0 || len(rIdx) == 0 {
				continue
			}
			imp := giniImpurity(y, lIdx, rIdx)
			if imp < bestImp {
				bestImp, bestFeature, bestThr = imp, f, thr
				bestLeft, bestRight = lIdx, rIdx
			}
		}
	}

	if bestFeature == -1 {
		node.IsLeaf = true
		node.Proba = p
		return node
	}
	node.Feature = bestFeature
	node.Threshold = bestThr
	node.Left = dt.build(X, y, bestLeft, depth+1)
	node.Right = dt.build(X, y, bestRight, depth+1)
	return node
}

func classProba(y []int, idx []int) float64 {
	sum := 0
	for _, i := range idx {
		sum += y[i]
	}
	return float64(sum) / float64(len(idx))
}

func splitIdx(X [][]float64, idx []int, f int, thr float64) ([]int, []int) {
	l := make([]int, 0, len(idx))
	r := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][f] <= thr {
			l = append(l, i)
		} else {
			r = append(r, i)
		}
	}
	return l, r
}

func giniImpurity(y []int, lIdx, rIdx []int) float64 {
	g := func(ids []int) float64 {
		if len(ids) == 0 {
			return 0
		}
		p := 0.0
		for _, i := range ids {
			p += float64(y[i])
		}
		p = p / float64(len(ids))
		return p * (1 - p)
	}
	wl := float64(len(lIdx))
	wr := float64(len(rIdx))
	n := wl + wr
	return (wl/n)*g(lIdx) + (wr/n)*g(rIdx)
}

// candidateThresholds samples up to maxC raw values of feature f; exhaustive
// threshold search is not worth it on 30-dim inputs.
func candidateThresholds(X [][]float64, idx []int, f int, maxC int) []float64 {
	values := make([]float64, len(idx))
	for j, i := range idx {
		values[j] = X[i][f]
	}
	rand.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	m := maxC
	if m > len(values) {
		m = len(values)
	}
	return values[:m]
}

func pickFeatures(nFeats, maxFeats int) []int {
	idx := make([]int, nFeats)
	for i := range idx {
		idx[i] = i
	}
	if maxFeats <= 0 || maxFeats >= nFeats {
		return idx
	}
	rand.Shuffle(nFeats, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:maxFeats]
}
