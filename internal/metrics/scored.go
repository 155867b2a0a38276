package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"fraudsynth/internal/tables"
)

var labelCandidates = map[string]bool{
	"true_label": true,
	"label":      true,
	"y_true":     true,
	"y":          true,
	"target":     true,
}

var probaPattern = regexp.MustCompile(`(?i)(fraud.*prob|proba|prob|score)`)

// FindLabelProbaColumns locates the (true label, probability) columns in a
// scored table, tolerating the column spellings different training runs
// produce.
func FindLabelProbaColumns(t *tables.Table) (labelCol, probaCol string, err error) {
	for _, c := range t.Columns {
		if labelCol == "" && labelCandidates[strings.ToLower(c)] {
			labelCol = c
		}
	}
	for _, c := range t.Columns {
		if probaPattern.MatchString(c) {
			probaCol = c
			break
		}
	}
	if labelCol == "" || probaCol == "" {
		return "", "", fmt.Errorf("could not locate label/probability columns in scored table")
	}
	return labelCol, probaCol, nil
}

// ExtractScores pulls labels and scores out of a scored table, unparseable
// cells degraded to 0 as the source data pipeline does.
func ExtractScores(t *tables.Table, labelCol, probaCol string) (y []int, scores []float64) {
	y = make([]int, 0, len(t.Records))
	scores = make([]float64, 0, len(t.Records))
	for _, rec := range t.Records {
		lv, _ := t.Float(rec, labelCol)
		sv, _ := t.Float(rec, probaCol)
		label := 0
		if lv >= 0.5 {
			label = 1
		}
		y = append(y, label)
		scores = append(scores, sv)
	}
	return y, scores
}
