package inference

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fraudsynth/internal/artifacts"
	"fraudsynth/internal/features"
	"fraudsynth/internal/models"
	"fraudsynth/internal/tables"
)

// DefaultThreshold is the probability cutoff used when a request does not
// supply one.
const DefaultThreshold = 0.45

// Probability extracts per-row fraud probabilities from whatever the model
// supports, in preference order: a direct probability output, a decision
// function squashed through the logistic function, or the raw prediction.
func Probability(m models.Classifier, X [][]float64) []float64 {
	if pc, ok := m.(models.ProbabilityClassifier); ok {
		return pc.PredictProba(X)
	}
	if mc, ok := m.(models.MarginClassifier); ok {
		out := mc.DecisionFunction(X)
		for i := range out {
			out[i] = models.Sigmoid(out[i])
		}
		return out
	}
	preds := m.Predict(X)
	out := make([]float64, len(preds))
	for i, p := range preds {
		out[i] = float64(p)
	}
	return out
}

// Result is a single scored transaction. Ephemeral unless the caller logs it.
type Result struct {
	Probability    float64
	Decision       int
	Filled         map[string]float64
	ScaledVector   []float64
	TimeAmountOnly bool
	Threshold      float64
}

// Engine bundles the read-only serving state handed to every request
// handler: the artifact bundle and the loaded model. No handler mutates it.
type Engine struct {
	Bundle *artifacts.Bundle
	Model  models.Classifier
	Log    *zap.Logger
}

func NewEngine(bundle *artifacts.Bundle, model models.Classifier, log *zap.Logger) *Engine {
	return &Engine{Bundle: bundle, Model: model, Log: log}
}

// EffectiveThreshold applies the request-supplied override, else the default.
func (e *Engine) EffectiveThreshold(override *float64) float64 {
	if override != nil {
		return *override
	}
	return DefaultThreshold
}

// ScoreOne fills, scales and scores one raw input mapping.
func (e *Engine) ScoreOne(raw map[string]any, threshold *float64) (*Result, error) {
	filled, vec, timeAmountOnly := features.FillAndOrder(raw, e.Bundle.Medians)
	scaled, err := e.Bundle.Scaler.Transform(vec)
	if err != nil {
		return nil, fmt.Errorf("inference error: %w", err)
	}
	prob := Probability(e.Model, [][]float64{scaled})[0]
	thr := e.EffectiveThreshold(threshold)
	decision := 0
	if prob >= thr {
		decision = 1
	}
	return &Result{
		Probability:    prob,
		Decision:       decision,
		Filled:         filled,
		ScaledVector:   scaled,
		TimeAmountOnly: timeAmountOnly,
		Threshold:      thr,
	}, nil
}

// ScoreTable scores every row of an uploaded table. Columns are matched onto
// the feature set case-insensitively; unmatched features are median-filled.
// A single row failure fails the whole batch. The returned columns are the
// input columns plus the two prediction columns, appended only when absent.
func (e *Engine) ScoreTable(t *tables.Table, threshold *float64) ([]string, []map[string]any, float64, error) {
	if t.Empty() {
		return nil, nil, 0, fmt.Errorf("uploaded table has no rows")
	}
	lower := t.LowerColumns()
	thr := e.EffectiveThreshold(threshold)

	rows := make([]map[string]any, 0, len(t.Records))
	for i, rec := range t.Records {
		raw := map[string]any{}
		for _, feat := range features.FeatureOrder {
			if col, ok := lower[strings.ToLower(feat)]; ok {
				if v, present := rec[col]; present {
					raw[feat] = v
				}
			}
		}
		res, err := e.ScoreOne(raw, &thr)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("row %d: %w", i+1, err)
		}

		out := make(map[string]any, len(t.Columns)+2)
		for _, c := range t.Columns {
			out[c] = rec[c]
		}
		out["fraud_probability"] = res.Probability
		out["model_decision"] = res.Decision
		rows = append(rows, out)
	}

	cols := append([]string{}, t.Columns...)
	if !contains(cols, "fraud_probability") {
		cols = append(cols, "fraud_probability")
	}
	if !contains(cols, "model_decision") {
		cols = append(cols, "model_decision")
	}
	return cols, rows, thr, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
