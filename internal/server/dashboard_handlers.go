package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fraudsynth/internal/artifacts"
	"fraudsynth/internal/metrics"
	"fraudsynth/internal/tables"
)

// handleMetrics serves the dashboard sections. Every missing artifact
// degrades to an empty array, never an error.
func (s *Server) handleMetrics(c *gin.Context) {
	dir := artifacts.DirFor(s.engine.Bundle.Dir, c.Query("model"))

	quality := []map[string]any{}
	if t := tables.ReadAnyOptional(filepath.Join(dir, "synthetic_quality_check")); !t.Empty() {
		quality = t.JSONRecords(1000)
	}

	threshold := []map[string]any{}
	sweep := tables.ReadAnyOptional(filepath.Join(dir, "threshold_sweep"))
	if sweep.Empty() {
		// older artifact name
		sweep = tables.ReadAnyOptional(filepath.Join(dir, "precision_recall_vs_threshold"))
	}
	if !sweep.Empty() {
		threshold = sweep.JSONRecords(0)
	}

	samples := []map[string]any{}
	if t := tables.ReadAnyOptional(filepath.Join(dir, "test_scored")); !t.Empty() {
		keep := presentColumns(t, "Amount", "true_label", "fraud_probability", "model_decision")
		if len(keep) > 0 {
			samples = projectColumns(t.JSONRecords(200), keep)
		}
	}

	c.JSON(http.StatusOK, gin.H{"quality": quality, "threshold": threshold, "samples": samples})
}

// handleTopRisks returns the highest-probability rows of the top_risks
// artifact. This one 404s when the artifact is missing.
func (s *Server) handleTopRisks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	t, err := tables.ReadAny(filepath.Join(s.engine.Bundle.Dir, "top_risks"))
	if err != nil {
		if errors.Is(err, tables.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	probCol := ""
	for _, col := range t.Columns {
		if strings.Contains(col, "fraud_probability") {
			probCol = col
			break
		}
	}
	if probCol == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "top_risks table has no fraud_probability column"})
		return
	}

	rows := t.JSONRecords(0)
	sort.SliceStable(rows, func(a, b int) bool {
		return asFloat(rows[a][probCol]) > asFloat(rows[b][probCol])
	})
	if limit < len(rows) {
		rows = rows[:limit]
	}
	keep := presentColumns(t, "Time", "Amount", "fraud_probability", "true_label", "model_decision")
	c.JSON(http.StatusOK, gin.H{"rows": projectColumns(rows, keep)})
}

// handleCurves serves ROC/PR curves and feature importances, recomputing
// from the scored test set when the curve files are absent. Missing data
// yields nulls/empty lists, never a failure.
func (s *Server) handleCurves(c *gin.Context) {
	dir := artifacts.DirFor(s.engine.Bundle.Dir, c.Query("model"))

	var roc, pr gin.H

	if t := tables.ReadAnyOptional(filepath.Join(dir, "roc_curve")); !t.Empty() {
		lower := t.LowerColumns()
		fprCol, fok := lower["fpr"]
		tprCol, tok := lower["tpr"]
		if fok && tok {
			fpr := numericColumn(t, fprCol)
			tpr := numericColumn(t, tprCol)
			roc = gin.H{"fpr": fpr, "tpr": tpr, "auc": metrics.TrapezoidAUC(fpr, tpr)}
		}
	}

	prT := tables.ReadAnyOptional(filepath.Join(dir, "pr_curve"))
	if prT.Empty() {
		prT = tables.ReadAnyOptional(filepath.Join(dir, "precision_vs_recall"))
	}
	if !prT.Empty() {
		lower := prT.LowerColumns()
		recCol, rok := lower["recall"]
		precCol, pok := lower["precision"]
		if rok && pok {
			pr = gin.H{
				"recall":    numericColumn(prT, recCol),
				"precision": numericColumn(prT, precCol),
				"ap":        firstNumeric(prT, lower["ap"]),
			}
		}
	}

	if roc == nil || pr == nil {
		if scored := tables.ReadAnyOptional(filepath.Join(dir, "test_scored")); !scored.Empty() {
			if labelCol, probaCol, err := metrics.FindLabelProbaColumns(scored); err == nil {
				y, scores := metrics.ExtractScores(scored, labelCol, probaCol)
				if roc == nil {
					fpr, tpr, auc := metrics.ROC(y, scores)
					roc = gin.H{"fpr": fpr, "tpr": tpr, "auc": auc}
				}
				if pr == nil {
					recall, precision, ap := metrics.PR(y, scores)
					pr = gin.H{"recall": recall, "precision": precision, "ap": ap}
				}
			}
		}
	}

	feat := curveImportances(dir)
	if len(feat) == 0 {
		feat = metrics.ModelImportances(s.engine.Model)
		if len(feat) > 15 {
			feat = feat[:15]
		}
	}
	if feat == nil {
		feat = []metrics.FeatureImportance{}
	}

	c.JSON(http.StatusOK, gin.H{"roc": roc, "pr": pr, "feature_importance": feat})
}

// curveImportances reads the feature_importance artifact, sorted descending
// and capped at 15 entries.
func curveImportances(dir string) []metrics.FeatureImportance {
	t := tables.ReadAnyOptional(filepath.Join(dir, "feature_importance"))
	if t.Empty() {
		return nil
	}
	lower := t.LowerColumns()
	featCol, fok := lower["feature"]
	impCol, iok := lower["importance"]
	if !fok || !iok {
		return nil
	}
	out := make([]metrics.FeatureImportance, 0, len(t.Records))
	for _, rec := range t.Records {
		v, _ := t.Float(rec, impCol)
		out = append(out, metrics.FeatureImportance{Feature: rec[featCol], Importance: v})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if len(out) > 15 {
		out = out[:15]
	}
	return out
}

func presentColumns(t *tables.Table, wanted ...string) []string {
	have := map[string]bool{}
	for _, c := range t.Columns {
		have[c] = true
	}
	out := []string{}
	for _, w := range wanted {
		if have[w] {
			out = append(out, w)
		}
	}
	return out
}

func projectColumns(rows []map[string]any, keep []string) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		p := make(map[string]any, len(keep))
		for _, k := range keep {
			p[k] = row[k]
		}
		out = append(out, p)
	}
	return out
}

func numericColumn(t *tables.Table, col string) []float64 {
	out := make([]float64, 0, len(t.Records))
	for _, rec := range t.Records {
		v, _ := t.Float(rec, col) // unparseable cells degrade to 0
		out = append(out, v)
	}
	return out
}

// firstNumeric returns the first parseable value of a column, or nil.
func firstNumeric(t *tables.Table, col string) any {
	if col == "" {
		return nil
	}
	for _, rec := range t.Records {
		if v, ok := t.Float(rec, col); ok {
			return v
		}
	}
	return nil
}

func asFloat(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
