package models

// Classifier is the minimum contract a serving model supports.
type Classifier interface {
	Predict(X [][]float64) []int
	Name() string
}

// ProbabilityClassifier is implemented by models that produce calibrated
// fraud probabilities directly.
type ProbabilityClassifier interface {
	PredictProba(X [][]float64) []float64
}

// MarginClassifier is implemented by models that only expose an unsquashed
// decision score. Callers squash it through the logistic function.
type MarginClassifier interface {
	DecisionFunction(X [][]float64) []float64
}

// FeatureImporter is implemented by models that can rank input features.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// Trainable is the trainer-side contract. The API process never fits.
type Trainable interface {
	Classifier
	Fit(X [][]float64, y []int) error
}
