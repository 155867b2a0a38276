package data

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"

	"fraudsynth/internal/features"
	"fraudsynth/internal/tables"
)

// GenerateSyntheticTransactions produces creditcard-style rows: a running
// Time in seconds, 28 centered components and an Amount, with the fraud
// class shifted on a handful of components so models have signal to find.
func GenerateSyntheticTransactions(n int, fraudRate float64, rng *rand.Rand) (X [][]float64, y []int) {
	X = make([][]float64, 0, n)
	y = make([]int, 0, n)

	// components that separate fraud from legit, loosely mimicking the
	// strongest PCA directions in the Kaggle set
	shifted := []int{3, 9, 11, 13, 16}

	t := 0.0
	for i := 0; i < n; i++ {
		t += rng.ExpFloat64() * 2.0
		fraud := rng.Float64() < fraudRate

		row := make([]float64, len(features.FeatureOrder))
		row[0] = t
		for j := 1; j <= 28; j++ {
			row[j] = rng.NormFloat64()
		}
		if fraud {
			for _, j := range shifted {
				row[j] -= 2.5 + rng.NormFloat64()
			}
		}

		amount := math.Exp(rng.NormFloat64()*1.2 + 3.0)
		if fraud && rng.Float64() < 0.3 {
			amount *= 4
		}
		row[len(row)-1] = math.Round(amount*100) / 100

		X = append(X, row)
		if fraud {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return X, y
}

// QualityCheckTable fabricates the synthetic_quality_check artifact: sampled
// generated rows dressed with plausible transaction metadata so the
// dashboard's quality view has something human-readable to show.
func QualityCheckTable(X [][]float64, y []int, limit int, seed uint64) *tables.Table {
	faker := gofakeit.New(seed)
	t := &tables.Table{Columns: []string{
		"transaction_id", "merchant", "country", "Time", "Amount", "true_label",
	}}
	n := len(X)
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		row := X[i]
		t.Records = append(t.Records, map[string]string{
			"transaction_id": faker.UUID(),
			"merchant":       faker.Company(),
			"country":        faker.CountryAbr(),
			"Time":           strconv.FormatFloat(row[0], 'g', -1, 64),
			"Amount":         strconv.FormatFloat(row[len(row)-1], 'g', -1, 64),
			"true_label":     strconv.Itoa(y[i]),
		})
	}
	return t
}

// Medians computes per-feature medians over raw (unscaled) rows, keyed by
// the fixed feature order.
func Medians(X [][]float64) map[string]float64 {
	out := make(map[string]float64, len(features.FeatureOrder))
	if len(X) == 0 {
		return out
	}
	col := make([]float64, len(X))
	for j, name := range features.FeatureOrder {
		for i := range X {
			col[i] = X[i][j]
		}
		out[name] = median(col)
	}
	return out
}

func median(vals []float64) float64 {
	cp := append([]float64{}, vals...)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}
