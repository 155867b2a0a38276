package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fraudsynth/internal/artifacts"
	"fraudsynth/internal/data"
	"fraudsynth/internal/features"
	"fraudsynth/internal/inference"
	"fraudsynth/internal/metrics"
	"fraudsynth/internal/models"
	"fraudsynth/internal/tables"
	"fraudsynth/pkg/utils"
)

// The trainer produces the complete artifact bundle the API serves from:
// scaler, model, metadata, and every dashboard table.
func main() {
	logger := utils.Logger()
	defer logger.Sync()

	artifactDir := flag.String("artifacts", "model_artifacts", "Output artifact directory")
	n := flag.Int("n", 120000, "Number of synthetic transactions")
	fraudRate := flag.Float64("fraud_rate", 0.02, "Fraction of fraudulent rows")
	algo := flag.String("algo", "gb", "Algorithm: dt|rf|gb|logistic")
	estimators := flag.Int("estimators", 50, "Estimators for rf/gb")
	maxDepth := flag.Int("max_depth", 6, "Max tree depth")
	minSamples := flag.Int("min_samples", 100, "Min samples per split")
	lr := flag.Float64("lr", 0.1, "Learning rate (gb/logistic)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "RNG seed")
	topRisks := flag.Int("top_risks", 100, "Rows kept in top_risks")
	plots := flag.Bool("plots", true, "Render ROC/PR PNGs")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	logger.Info("generating synthetic transactions", zap.Int("n", *n), zap.Float64("fraud_rate", *fraudRate))
	X, y := data.GenerateSyntheticTransactions(*n, *fraudRate, rng)

	trainIdx, testIdx := stratifiedSplit(y, 0.8, rng)
	Xtrain, ytrain := take(X, y, trainIdx)
	Xtest, ytest := take(X, y, testIdx)
	logger.Info("split", zap.Int("train", len(Xtrain)), zap.Int("test", len(Xtest)))

	scaler := &artifacts.StandardScaler{}
	scaler.Fit(Xtrain)
	XtrainS := transformAll(scaler, Xtrain)
	XtestS := transformAll(scaler, Xtest)

	model := constructModel(*algo, *estimators, *maxDepth, *minSamples, *lr)
	logger.Info("training", zap.String("model", model.Name()))
	if err := model.Fit(XtrainS, ytrain); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	probs := inference.Probability(model, XtestS)
	thr, f1 := metrics.BestF1Threshold(ytest, probs)
	prec, rec, _ := metrics.PRF1At(ytest, probs, thr)
	_, _, rocAUC := metrics.ROC(ytest, probs)
	_, _, ap := metrics.PR(ytest, probs)
	logger.Info("holdout metrics",
		zap.String("model", model.Name()),
		zap.Float64("roc_auc", rocAUC),
		zap.Float64("pr_auc", ap),
		zap.Float64("f1", f1),
		zap.Float64("precision", prec),
		zap.Float64("recall", rec),
		zap.Float64("threshold", thr),
	)

	if err := os.MkdirAll(*artifactDir, 0o755); err != nil {
		logger.Fatal("mkdir artifacts", zap.Error(err))
	}

	if err := artifacts.SaveScaler(filepath.Join(*artifactDir, artifacts.ScalerFile), scaler); err != nil {
		logger.Fatal("save scaler", zap.Error(err))
	}
	if err := models.Save(filepath.Join(*artifactDir, artifacts.ModelFile), model); err != nil {
		logger.Fatal("save model", zap.Error(err))
	}

	medians := data.Medians(Xtrain)
	meta := artifacts.Metadata{
		ModelType:          models.TypeOf(model),
		OperatingThreshold: thr,
		FeatureMedians:     medians,
		TrainedAt:          time.Now().UTC().Format(time.RFC3339),
	}
	raw, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(*artifactDir, artifacts.MetadataFile), raw, 0o644); err != nil {
		logger.Fatal("save metadata", zap.Error(err))
	}

	writeMediansTable(*artifactDir, medians, logger)
	scored := scoredTable(Xtest, ytest, probs, thr)
	if err := tables.WriteAllFormats(filepath.Join(*artifactDir, "test_scored"), scored); err != nil {
		logger.Fatal("save test_scored", zap.Error(err))
	}
	writeTopRisks(*artifactDir, scored, probs, *topRisks, logger)
	writeThresholdSweep(*artifactDir, ytest, probs, logger)

	quality := data.QualityCheckTable(Xtest, ytest, 1000, uint64(*seed))
	if err := tables.WriteCSV(filepath.Join(*artifactDir, "synthetic_quality_check.csv"), quality); err != nil {
		logger.Warn("save quality check", zap.Error(err))
	}

	curves, err := metrics.ComputeAndSaveCurves(*artifactDir, model)
	if err != nil {
		logger.Fatal("save curves", zap.Error(err))
	}
	if *plots {
		if err := metrics.PlotROC(filepath.Join(*artifactDir, "roc_curve.png"), curves.ROCFpr, curves.ROCTpr, curves.ROCAuc); err != nil {
			logger.Warn("roc plot", zap.Error(err))
		}
		if err := metrics.PlotPR(filepath.Join(*artifactDir, "pr_curve.png"), curves.PRRecall, curves.PRPrecision, curves.PRAp); err != nil {
			logger.Warn("pr plot", zap.Error(err))
		}
	}

	logger.Info("artifact bundle written", zap.String("dir", *artifactDir))
}

func constructModel(algo string, estimators, maxDepth, minSamples int, lr float64) models.Trainable {
	switch algo {
	case "rf":
		rf := models.NewRandomForest()
		rf.NEstimators = estimators
		rf.MaxDepth = maxDepth
		rf.MinSamples = minSamples
		return rf
	case "dt":
		dt := models.NewDecisionTree()
		dt.MaxDepth = maxDepth
		dt.MinSamplesSplit = minSamples
		return dt
	case "logistic":
		lm := models.NewLogistic()
		lm.LearningRate = lr
		return lm
	default:
		gb := models.NewGradientBoosting()
		gb.NEstimators = estimators
		gb.LearningRate = lr
		gb.MinSamples = minSamples
		return gb
	}
}

// stratifiedSplit keeps the fraud rate equal across train and test.
func stratifiedSplit(y []int, trainFrac float64, rng *rand.Rand) (train, test []int) {
	var pos, neg []int
	for i, v := range y {
		if v == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	rng.Shuffle(len(pos), func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })
	rng.Shuffle(len(neg), func(i, j int) { neg[i], neg[j] = neg[j], neg[i] })

	pTrain := int(trainFrac * float64(len(pos)))
	nTrain := int(trainFrac * float64(len(neg)))
	train = append(append([]int{}, pos[:pTrain]...), neg[:nTrain]...)
	test = append(append([]int{}, pos[pTrain:]...), neg[nTrain:]...)
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test
}

func take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

func transformAll(s *artifacts.StandardScaler, X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		v, err := s.Transform(X[i])
		if err != nil {
			panic(err) // trainer fits and transforms the same shape
		}
		out[i] = v
	}
	return out
}

// scoredTable writes raw-space feature columns plus label and predictions,
// the shape the serving fallbacks and median derivation expect.
func scoredTable(X [][]float64, y []int, probs []float64, thr float64) *tables.Table {
	cols := append([]string{}, features.FeatureOrder...)
	cols = append(cols, "true_label", "fraud_probability", "model_decision")
	t := &tables.Table{Columns: cols}
	for i := range X {
		rec := make(map[string]string, len(cols))
		for j, name := range features.FeatureOrder {
			rec[name] = strconv.FormatFloat(X[i][j], 'g', -1, 64)
		}
		rec["true_label"] = strconv.Itoa(y[i])
		rec["fraud_probability"] = strconv.FormatFloat(probs[i], 'g', -1, 64)
		decision := "0"
		if probs[i] >= thr {
			decision = "1"
		}
		rec["model_decision"] = decision
		t.Records = append(t.Records, rec)
	}
	return t
}

func writeMediansTable(dir string, medians map[string]float64, logger *zap.Logger) {
	t := &tables.Table{Columns: []string{"feature", "median"}}
	for _, name := range features.FeatureOrder {
		t.Records = append(t.Records, map[string]string{
			"feature": name,
			"median":  strconv.FormatFloat(medians[name], 'g', -1, 64),
		})
	}
	if err := tables.WriteCSV(filepath.Join(dir, "medians.csv"), t); err != nil {
		logger.Warn("save medians", zap.Error(err))
	}
}

func writeTopRisks(dir string, scored *tables.Table, probs []float64, limit int, logger *zap.Logger) {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	// highest probability first
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	if limit > len(idx) {
		limit = len(idx)
	}
	t := &tables.Table{Columns: scored.Columns}
	for _, i := range idx[:limit] {
		t.Records = append(t.Records, scored.Records[i])
	}
	if err := tables.WriteAllFormats(filepath.Join(dir, "top_risks"), t); err != nil {
		logger.Warn("save top_risks", zap.Error(err))
	}
}

func writeThresholdSweep(dir string, y []int, probs []float64, logger *zap.Logger) {
	t := &tables.Table{Columns: []string{"threshold", "precision", "recall", "f1"}}
	for _, pt := range metrics.ThresholdSweep(y, probs, 100) {
		t.Records = append(t.Records, map[string]string{
			"threshold": strconv.FormatFloat(pt.Threshold, 'g', -1, 64),
			"precision": strconv.FormatFloat(pt.Precision, 'g', -1, 64),
			"recall":    strconv.FormatFloat(pt.Recall, 'g', -1, 64),
			"f1":        strconv.FormatFloat(pt.F1, 'g', -1, 64),
		})
	}
	if err := tables.WriteCSV(filepath.Join(dir, "threshold_sweep.csv"), t); err != nil {
		logger.Warn("save threshold_sweep", zap.Error(err))
	}
}
