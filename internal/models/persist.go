package models

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Model-type names recorded in fraud_metadata.json and used to pick the
// concrete gob type at load time.
const (
	TypeDecisionTree     = "decision_tree"
	TypeRandomForest     = "random_forest"
	TypeGradientBoosting = "gradient_boosting"
	TypeLogistic         = "logistic"
)

// TypeOf returns the persisted type name for a classifier.
func TypeOf(m Classifier) string {
	switch m.(type) {
	case *DecisionTree:
		return TypeDecisionTree
	case *RandomForest:
		return TypeRandomForest
	case *GradientBoosting:
		return TypeGradientBoosting
	case *Logistic:
		return TypeLogistic
	default:
		return ""
	}
}

// Save gob-encodes the classifier to path.
func Save(path string, m Classifier) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(m)
}

// Load gob-decodes a classifier of the given type name from path.
func Load(path, modelType string) (Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := gob.NewDecoder(f)

	switch modelType {
	case TypeRandomForest:
		var rf RandomForest
		if err := dec.Decode(&rf); err != nil {
			return nil, err
		}
		return &rf, nil
	case TypeDecisionTree:
		var dt DecisionTree
		if err := dec.Decode(&dt); err != nil {
			return nil, err
		}
		return &dt, nil
	case TypeLogistic:
		var lm Logistic
		if err := dec.Decode(&lm); err != nil {
			return nil, err
		}
		return &lm, nil
	case TypeGradientBoosting, "":
		var gb GradientBoosting
		if err := dec.Decode(&gb); err != nil {
			return nil, err
		}
		return &gb, nil
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}
}
