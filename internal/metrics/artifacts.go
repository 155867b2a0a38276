package metrics

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"fraudsynth/internal/features"
	"fraudsynth/internal/models"
	"fraudsynth/internal/tables"
)

// CurveData is the immediately usable result of a curve computation.
type CurveData struct {
	ROCFpr []float64
	ROCTpr []float64
	ROCAuc float64

	PRRecall    []float64
	PRPrecision []float64
	PRAp        float64

	FeatureImportance []FeatureImportance
}

// FeatureImportance is one named importance entry, sorted descending when
// emitted.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ComputeAndSaveCurves recomputes ROC/PR curves from the scored test table
// and feature importances from the model, persisting roc_curve, pr_curve and
// feature_importance in the artifact directory (CSV always, XLSX best
// effort).
func ComputeAndSaveCurves(dir string, model models.Classifier) (*CurveData, error) {
	scored, err := tables.ReadAny(filepath.Join(dir, "test_scored"))
	if err != nil {
		return nil, err
	}
	labelCol, probaCol, err := FindLabelProbaColumns(scored)
	if err != nil {
		return nil, err
	}
	y, scores := ExtractScores(scored, labelCol, probaCol)

	out := &CurveData{}
	out.ROCFpr, out.ROCTpr, out.ROCAuc = ROC(y, scores)
	rocT := &tables.Table{Columns: []string{"fpr", "tpr"}}
	for i := range out.ROCFpr {
		rocT.Records = append(rocT.Records, map[string]string{
			"fpr": formatFloat(out.ROCFpr[i]),
			"tpr": formatFloat(out.ROCTpr[i]),
		})
	}
	if err := tables.WriteAllFormats(filepath.Join(dir, "roc_curve"), rocT); err != nil {
		return nil, err
	}

	out.PRRecall, out.PRPrecision, out.PRAp = PR(y, scores)
	prT := &tables.Table{Columns: []string{"recall", "precision", "ap"}}
	for i := range out.PRRecall {
		rec := map[string]string{
			"recall":    formatFloat(out.PRRecall[i]),
			"precision": formatFloat(out.PRPrecision[i]),
		}
		// ap is a scalar; store it on the first row only
		if i == 0 {
			rec["ap"] = formatFloat(out.PRAp)
		}
		prT.Records = append(prT.Records, rec)
	}
	if err := tables.WriteAllFormats(filepath.Join(dir, "pr_curve"), prT); err != nil {
		return nil, err
	}

	out.FeatureImportance = ModelImportances(model)
	if len(out.FeatureImportance) > 0 {
		fiT := &tables.Table{Columns: []string{"feature", "importance"}}
		for _, fi := range out.FeatureImportance {
			fiT.Records = append(fiT.Records, map[string]string{
				"feature":    fi.Feature,
				"importance": formatFloat(fi.Importance),
			})
		}
		if err := tables.WriteAllFormats(filepath.Join(dir, "feature_importance"), fiT); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ModelImportances reads importances off the model when it supports them,
// naming entries by the feature order when lengths line up.
func ModelImportances(model models.Classifier) []FeatureImportance {
	fi, ok := model.(models.FeatureImporter)
	if !ok {
		return nil
	}
	imps := fi.FeatureImportances()
	if len(imps) == 0 {
		return nil
	}
	out := make([]FeatureImportance, 0, len(imps))
	for i, v := range imps {
		name := fmt.Sprintf("f%d", i)
		if len(imps) <= len(features.FeatureOrder) {
			name = features.FeatureOrder[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: v})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

// EnsureCurveArtifacts recreates missing curve/importance files at startup.
// Every failure is logged and swallowed: serving must come up regardless.
func EnsureCurveArtifacts(dir string, model models.Classifier, log *zap.Logger) {
	needed := []string{"roc_curve", "pr_curve", "feature_importance"}
	missing := false
	for _, base := range needed {
		if tables.ReadAnyOptional(filepath.Join(dir, base)) == nil {
			missing = true
			break
		}
	}
	if !missing {
		return
	}
	if _, err := ComputeAndSaveCurves(dir, model); err != nil {
		log.Warn("could not build curve artifacts at startup", zap.Error(err))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
