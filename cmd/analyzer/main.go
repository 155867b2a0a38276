package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"fraudsynth/internal/metrics"
	"fraudsynth/internal/tables"
)

// The analyzer audits an artifact directory offline: it recomputes ROC/PR
// from the scored test table, reports the best-F1 operating point, and
// renders the curve PNGs.
func main() {
	dir := flag.String("artifacts", "model_artifacts", "Artifact directory to audit")
	outDir := flag.String("out", "", "Directory for PNG output (defaults to the artifact dir)")
	flag.Parse()

	if *outDir == "" {
		*outDir = *dir
	}

	scored, err := tables.ReadAny(filepath.Join(*dir, "test_scored"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "no scored test table:", err)
		os.Exit(1)
	}
	labelCol, probaCol, err := metrics.FindLabelProbaColumns(scored)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	y, scores := metrics.ExtractScores(scored, labelCol, probaCol)

	fpr, tpr, rocAUC := metrics.ROC(y, scores)
	recall, precision, ap := metrics.PR(y, scores)
	thr, f1 := metrics.BestF1Threshold(y, scores)
	prec, rec, _ := metrics.PRF1At(y, scores, thr)

	fmt.Printf("rows=%d | roc_auc=%.4f | pr_auc=%.4f\n", len(y), rocAUC, ap)
	fmt.Printf("best threshold=%.3f | f1=%.4f | precision=%.4f | recall=%.4f\n", thr, f1, prec, rec)

	if err := metrics.PlotROC(filepath.Join(*outDir, "roc_curve.png"), fpr, tpr, rocAUC); err != nil {
		fmt.Fprintln(os.Stderr, "roc plot:", err)
	}
	if err := metrics.PlotPR(filepath.Join(*outDir, "pr_curve.png"), recall, precision, ap); err != nil {
		fmt.Fprintln(os.Stderr, "pr plot:", err)
	}
}
