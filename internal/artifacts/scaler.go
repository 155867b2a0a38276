package artifacts

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
)

// StandardScaler standardizes features with the mean/scale captured at
// training time. It must be fit on vectors in the same fixed feature order
// the serving path uses.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	nFeats := len(X[0])
	s.Mean = make([]float64, nFeats)
	s.Scale = make([]float64, nFeats)
	n := float64(len(X))
	for j := 0; j < nFeats; j++ {
		sum := 0.0
		for i := range X {
			sum += X[i][j]
		}
		s.Mean[j] = sum / n
		ss := 0.0
		for i := range X {
			d := X[i][j] - s.Mean[j]
			ss += d * d
		}
		sd := math.Sqrt(ss / n)
		if sd == 0 {
			sd = 1
		}
		s.Scale[j] = sd
	}
}

// Transform maps a raw ordered vector into model space.
func (s *StandardScaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(vec))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// SaveScaler gob-encodes the scaler to path.
func SaveScaler(path string, s *StandardScaler) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(s)
}

func loadScaler(path string) (*StandardScaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s StandardScaler
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("scaler file %s is malformed", path)
	}
	return &s, nil
}
