package metrics

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotROC renders the ROC curve with the chance diagonal to a PNG.
func PlotROC(path string, fpr, tpr []float64, auc float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC (AUC=%.4f)", auc)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	diag := plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}}
	if err := plotutil.AddLinePoints(p, "ROC", toXYs(fpr, tpr)); err != nil {
		return err
	}
	if err := plotutil.AddLines(p, "chance", diag); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// PlotPR renders the precision-recall curve to a PNG.
func PlotPR(path string, recall, precision []float64, ap float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Precision-Recall (AP=%.4f)", ap)
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	if err := plotutil.AddLinePoints(p, "PR", toXYs(recall, precision)); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

func toXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}
