package models

import "math"

// Logistic is a plain logistic-regression classifier trained with SGD.
// It deliberately exposes only a decision function, no PredictProba, so
// serving exercises the margin-to-probability squashing path.
type Logistic struct {
	Weights      []float64
	Bias         float64
	LearningRate float64
	Epochs       int
}

func NewLogistic() *Logistic {
	return &Logistic{LearningRate: 0.05, Epochs: 20}
}

func (lm *Logistic) Name() string { return "Logistic" }

func (lm *Logistic) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return nil
	}
	nFeats := len(X[0])
	if len(lm.Weights) != nFeats {
		lm.Weights = make([]float64, nFeats)
		lm.Bias = 0
	}
	lr := lm.LearningRate
	if lr <= 0 {
		lr = 0.05
	}
	epochs := lm.Epochs
	if epochs <= 0 {
		epochs = 20
	}
	for e := 0; e < epochs; e++ {
		for i := range X {
			p := Sigmoid(lm.marginOne(X[i]))
			g := p - float64(y[i])
			for j := 0; j < nFeats; j++ {
				lm.Weights[j] -= lr * g * X[i][j]
			}
			lm.Bias -= lr * g
		}
	}
	return nil
}

func (lm *Logistic) marginOne(x []float64) float64 {
	s := lm.Bias
	for j, w := range lm.Weights {
		if j < len(x) {
			s += w * x[j]
		}
	}
	return s
}

func (lm *Logistic) DecisionFunction(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = lm.marginOne(X[i])
	}
	return out
}

func (lm *Logistic) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, m := range lm.DecisionFunction(X) {
		if m >= 0 {
			out[i] = 1
		}
	}
	return out
}

func (lm *Logistic) FeatureImportances() []float64 {
	out := make([]float64, len(lm.Weights))
	for i, w := range lm.Weights {
		out[i] = math.Abs(w)
	}
	return out
}
