package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fraudsynth/internal/features"
	"fraudsynth/internal/tables"
)

// Artifact file names inside the artifact directory.
const (
	ScalerFile   = "scaler.gob"
	ModelFile    = "fraud_detector.gob"
	MetadataFile = "fraud_metadata.json"
)

// Metadata is the optional sidecar written by the trainer.
type Metadata struct {
	ModelType          string             `json:"model_type,omitempty"`
	OperatingThreshold float64            `json:"operating_threshold,omitempty"`
	FeatureMedians     map[string]float64 `json:"feature_medians,omitempty"`
	TrainedAt          string             `json:"trained_at,omitempty"`
}

// Bundle is the immutable set of serving artifacts, loaded once at process
// startup. A restart is required to pick up new files.
type Bundle struct {
	Dir      string
	Scaler   *StandardScaler
	Metadata Metadata
	Medians  map[string]float64
}

// Load reads the scaler (required) and metadata (optional) from dir and
// derives the median map: metadata first, then test_scored column medians,
// then zeros.
func Load(dir string) (*Bundle, error) {
	scaler, err := loadScaler(filepath.Join(dir, ScalerFile))
	if err != nil {
		return nil, err
	}
	b := &Bundle{Dir: dir, Scaler: scaler}

	if raw, err := os.ReadFile(filepath.Join(dir, MetadataFile)); err == nil {
		_ = json.Unmarshal(raw, &b.Metadata)
	}
	b.Medians = b.loadMedians()
	return b, nil
}

func (b *Bundle) loadMedians() map[string]float64 {
	if len(b.Metadata.FeatureMedians) > 0 {
		return b.Metadata.FeatureMedians
	}
	if t := tables.ReadAnyOptional(filepath.Join(b.Dir, "test_scored")); !t.Empty() {
		if meds := columnMedians(t); len(meds) > 0 {
			return meds
		}
	}
	meds := make(map[string]float64, len(features.FeatureOrder))
	for _, k := range features.FeatureOrder {
		meds[k] = 0
	}
	return meds
}

func columnMedians(t *tables.Table) map[string]float64 {
	lower := t.LowerColumns()
	out := map[string]float64{}
	for _, feat := range features.FeatureOrder {
		col, ok := lower[strings.ToLower(feat)]
		if !ok {
			continue
		}
		vals := make([]float64, 0, len(t.Records))
		for _, rec := range t.Records {
			if f, ok := t.Float(rec, col); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			continue
		}
		out[feat] = median(vals)
	}
	if len(out) == 0 {
		return nil
	}
	// missing columns still need an entry so imputation stays total
	for _, feat := range features.FeatureOrder {
		if _, ok := out[feat]; !ok {
			out[feat] = 0
		}
	}
	return out
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// DirFor resolves the artifact directory for an optional model variant:
// sibling model_artifacts_<name> or artifacts/<name>, else the base dir.
func DirFor(base, model string) string {
	if model == "" {
		return base
	}
	parent := filepath.Dir(base)
	cand := filepath.Join(parent, "model_artifacts_"+model)
	if st, err := os.Stat(cand); err == nil && st.IsDir() {
		return cand
	}
	alt := filepath.Join(parent, "artifacts", model)
	if st, err := os.Stat(alt); err == nil && st.IsDir() {
		return alt
	}
	return base
}
