package detection

import (
	"fmt"
	"math"
)

// Label is the binary class assigned to a region.
type Label int

const (
	NonPerson Label = 0
	Person    Label = 1
)

// String returns the label name.
func (l Label) String() string {
	if l == Person {
		return "person"
	}
	return "non-person"
}

// Result is the classification of one region.
type Result struct {
	Label      Label
	Confidence float64 // probability of the person class (0-1)
}

// Scaler transforms raw features into the space the model was trained in.
type Scaler interface {
	Scale(x []float64) ([]float64, error)
}

// Model is a trained binary classifier.
type Model interface {
	// PredictWithConfidence returns the predicted label and the
	// probability of the person class for an already-scaled vector.
	PredictWithConfidence(x []float64) (Label, float64, error)
}

// Classifier scores a region's feature vector.
type Classifier interface {
	Classify(v FeatureVector) (Result, error)
}

// Pipeline chains a Scaler and a Model. It is stateless and safe for
// concurrent use as long as its parts are.
type Pipeline struct {
	scaler Scaler
	model  Model
}

// NewClassifier wraps a scaler and model behind the Classifier contract.
func NewClassifier(scaler Scaler, model Model) *Pipeline {
	return &Pipeline{scaler: scaler, model: model}
}

// Classify scales v and runs the model on it.
func (p *Pipeline) Classify(v FeatureVector) (Result, error) {
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Result{}, fmt.Errorf("%w: non-finite value at index %d", ErrMalformedVector, i)
		}
	}

	scaled, err := p.scaler.Scale(v[:])
	if err != nil {
		return Result{}, fmt.Errorf("%w: scale: %v", ErrMalformedVector, err)
	}

	label, conf, err := p.model.PredictWithConfidence(scaled)
	if err != nil {
		return Result{}, fmt.Errorf("%w: predict: %v", ErrMalformedVector, err)
	}
	if math.IsNaN(conf) {
		return Result{}, fmt.Errorf("%w: model returned NaN confidence", ErrMalformedVector)
	}

	return Result{Label: label, Confidence: clamp(conf, 0, 1)}, nil
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
