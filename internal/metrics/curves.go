package metrics

import (
	"sort"
)

// ROC returns the ROC curve points and the area under it, scores sorted
// descending, one point per distinct score plus the (0,0) and (1,1) ends.
func ROC(y []int, scores []float64) (fpr, tpr []float64, auc float64) {
	order := sortDesc(scores)
	pos, neg := 0, 0
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return []float64{0, 1}, []float64{0, 1}, 0
	}

	fpr = []float64{0}
	tpr = []float64{0}
	tp, fp := 0, 0
	prev := scores[order[0]] + 1
	for _, i := range order {
		if scores[i] != prev {
			fpr = append(fpr, float64(fp)/float64(neg))
			tpr = append(tpr, float64(tp)/float64(pos))
			prev = scores[i]
		}
		if y[i] == 1 {
			tp++
		} else {
			fp++
		}
	}
	fpr = append(fpr, 1)
	tpr = append(tpr, 1)
	return fpr, tpr, TrapezoidAUC(fpr, tpr)
}

// PR returns the precision-recall curve and the average precision.
func PR(y []int, scores []float64) (recall, precision []float64, ap float64) {
	order := sortDesc(scores)
	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 {
		return []float64{0}, []float64{1}, 0
	}

	recall = []float64{0}
	precision = []float64{1}
	tp, fp := 0, 0
	prevRec := 0.0
	for _, i := range order {
		if y[i] == 1 {
			tp++
		} else {
			fp++
		}
		rec := float64(tp) / float64(pos)
		prec := float64(tp) / float64(tp+fp)
		recall = append(recall, rec)
		precision = append(precision, prec)
		ap += (rec - prevRec) * prec
		prevRec = rec
	}
	return recall, precision, ap
}

// TrapezoidAUC integrates y over x; x must be non-decreasing.
func TrapezoidAUC(x, y []float64) float64 {
	auc := 0.0
	for i := 1; i < len(x); i++ {
		auc += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return auc
}

// SweepPoint is one row of the threshold_sweep artifact.
type SweepPoint struct {
	Threshold float64
	Precision float64
	Recall    float64
	F1        float64
}

// ThresholdSweep evaluates precision/recall/F1 across evenly spaced cutoffs.
func ThresholdSweep(y []int, scores []float64, steps int) []SweepPoint {
	if steps <= 0 {
		steps = 100
	}
	out := make([]SweepPoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p, r, f1 := PRF1At(y, scores, t)
		out = append(out, SweepPoint{Threshold: t, Precision: p, Recall: r, F1: f1})
	}
	return out
}

// PRF1At computes precision, recall and F1 at one cutoff.
func PRF1At(y []int, scores []float64, thr float64) (precision, recall, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range y {
		pred := 0
		if scores[i] >= thr {
			pred = 1
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return
}

// BestF1Threshold scans 200 cutoffs for the one maximizing F1.
func BestF1Threshold(y []int, scores []float64) (thr, best float64) {
	if len(scores) == 0 {
		return 0.5, 0
	}
	steps := 200
	best = -1
	thr = 0.5
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		if _, _, f1 := PRF1At(y, scores, t); f1 > best {
			best, thr = f1, t
		}
	}
	return
}

func sortDesc(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	return order
}
