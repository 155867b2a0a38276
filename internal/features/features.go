package features

import (
	"strconv"
	"strings"
)

// FeatureOrder is the fixed model input order: the order the scaler was fit
// with. V1..V28 are already PCA components in the training data, so no
// further reduction happens downstream.
var FeatureOrder = buildFeatureOrder()

func buildFeatureOrder() []string {
	out := make([]string, 0, 30)
	out = append(out, "Time")
	for i := 1; i <= 28; i++ {
		out = append(out, "V"+strconv.Itoa(i))
	}
	return append(out, "Amount")
}

// FillAndOrder produces a total feature mapping from a sparse raw input.
// A field is taken from the input only when present and coercible to a
// float; everything else is silently filled with that field's median.
// The returned flag is true when the caller supplied only Time/Amount
// (and at least one of them), which the UI treats as a cheap-input score.
func FillAndOrder(raw map[string]any, medians map[string]float64) (map[string]float64, []float64, bool) {
	filled := make(map[string]float64, len(FeatureOrder))
	vec := make([]float64, 0, len(FeatureOrder))
	for _, name := range FeatureOrder {
		v, ok := coerceFloat(raw[name])
		if !ok {
			v = medians[name]
		}
		filled[name] = v
		vec = append(vec, v)
	}

	timeAmountOnly := len(raw) > 0
	for k := range raw {
		if k != "Time" && k != "Amount" {
			timeAmountOnly = false
			break
		}
	}
	return filled, vec, timeAmountOnly
}

// coerceFloat accepts the value shapes that survive JSON decoding and CSV
// parsing: numbers, numeric strings, and nothing else.
func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
