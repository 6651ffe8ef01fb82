package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// The trained scikit-learn StandardScaler and SVC are exported to JSON once,
// offline, and loaded here. Field names follow the scikit-learn attributes.
//
// scaler: {"mean": mean_, "scale": scale_}
// model:  {"kernel", "gamma", "coef0", "degree", "classes": classes_,
//          "support_vectors": support_vectors_, "dual_coef": dual_coef_[0],
//          "intercept": intercept_[0], "prob_a": probA_[0], "prob_b": probB_[0]}

type scalerArtifact struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type svmArtifact struct {
	Kernel         string      `json:"kernel"`
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         float64     `json:"degree"`
	Classes        []int       `json:"classes"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef"`
	Intercept      float64     `json:"intercept"`
	ProbA          float64     `json:"prob_a"`
	ProbB          float64     `json:"prob_b"`
}

// StandardScaler subtracts the training mean and divides by the training scale.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler builds a scaler from per-feature mean and scale.
// Zero scales are treated as 1, matching scikit-learn.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: scaler mean/scale lengths %d/%d", ErrArtifactMalformed, len(mean), len(scale))
	}
	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
	}
	for i, v := range s.scale {
		if v == 0 {
			s.scale[i] = 1
		}
	}
	if floats.HasNaN(s.mean) || floats.HasNaN(s.scale) {
		return nil, fmt.Errorf("%w: scaler contains NaN", ErrArtifactMalformed)
	}
	return s, nil
}

// Dim returns the number of features the scaler expects.
func (s *StandardScaler) Dim() int { return len(s.mean) }

// Scale returns (x - mean) / scale.
func (s *StandardScaler) Scale(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.mean), len(x))
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.mean)
	floats.Div(out, s.scale)
	return out, nil
}

// Kernel identifies the SVM kernel function.
type Kernel string

const (
	KernelLinear  Kernel = "linear"
	KernelRBF     Kernel = "rbf"
	KernelPoly    Kernel = "poly"
	KernelSigmoid Kernel = "sigmoid"
)

// SVM is a trained binary support vector classifier with Platt-scaled
// probabilities. The decision function has the scikit-learn sign: positive
// means classes[1].
type SVM struct {
	kernel    Kernel
	gamma     float64
	coef0     float64
	degree    float64
	classes   [2]int
	sv        *mat.Dense // nSV x nFeatures
	dualCoef  *mat.VecDense
	intercept float64
	probA     float64
	probB     float64
}

// minProb bounds pairwise probabilities the same way libsvm does.
const minProb = 1e-7

// Dim returns the number of features the model expects.
func (m *SVM) Dim() int {
	_, c := m.sv.Dims()
	return c
}

// Decision returns the signed distance to the separating surface.
func (m *SVM) Decision(x []float64) (float64, error) {
	nSV, nF := m.sv.Dims()
	if len(x) != nF {
		return 0, fmt.Errorf("model expects %d features, got %d", nF, len(x))
	}

	k := mat.NewVecDense(nSV, nil)
	switch m.kernel {
	case KernelLinear, KernelPoly, KernelSigmoid:
		k.MulVec(m.sv, mat.NewVecDense(nF, x))
		for i := 0; i < nSV; i++ {
			dot := k.AtVec(i)
			switch m.kernel {
			case KernelPoly:
				k.SetVec(i, math.Pow(m.gamma*dot+m.coef0, m.degree))
			case KernelSigmoid:
				k.SetVec(i, math.Tanh(m.gamma*dot+m.coef0))
			}
		}
	case KernelRBF:
		for i := 0; i < nSV; i++ {
			d := floats.Distance(m.sv.RawRowView(i), x, 2)
			k.SetVec(i, math.Exp(-m.gamma*d*d))
		}
	default:
		return 0, fmt.Errorf("unsupported kernel %q", m.kernel)
	}

	return mat.Dot(m.dualCoef, k) + m.intercept, nil
}

// PredictWithConfidence implements Model.
func (m *SVM) PredictWithConfidence(x []float64) (Label, float64, error) {
	f, err := m.Decision(x)
	if err != nil {
		return NonPerson, 0, err
	}

	predicted := m.classes[0]
	if f > 0 {
		predicted = m.classes[1]
	}

	// libsvm's sigmoid gives P(classes[0]) from its own decision value,
	// which is the negated scikit-learn one.
	p0 := clamp(sigmoidPredict(-f, m.probA, m.probB), minProb, 1-minProb)
	pPerson := 1 - p0
	if m.classes[0] == int(Person) {
		pPerson = p0
	}

	label := NonPerson
	if predicted == int(Person) {
		label = Person
	}
	return label, pPerson, nil
}

// sigmoidPredict is libsvm's numerically stable 1 / (1 + exp(dec*A + B)).
func sigmoidPredict(dec, a, b float64) float64 {
	fApB := dec*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

// newSVM validates a decoded artifact and builds the model.
func newSVM(a svmArtifact) (*SVM, error) {
	if len(a.SupportVectors) == 0 {
		return nil, fmt.Errorf("%w: no support vectors", ErrArtifactMalformed)
	}
	if len(a.DualCoef) != len(a.SupportVectors) {
		return nil, fmt.Errorf("%w: %d dual coefficients for %d support vectors",
			ErrArtifactMalformed, len(a.DualCoef), len(a.SupportVectors))
	}
	if len(a.Classes) != 2 {
		return nil, fmt.Errorf("%w: binary model needs 2 classes, got %d", ErrArtifactMalformed, len(a.Classes))
	}

	kernel := Kernel(a.Kernel)
	switch kernel {
	case KernelLinear, KernelRBF, KernelPoly, KernelSigmoid:
	default:
		return nil, fmt.Errorf("%w: unsupported kernel %q", ErrArtifactMalformed, a.Kernel)
	}
	if kernel != KernelLinear && a.Gamma <= 0 {
		return nil, fmt.Errorf("%w: kernel %s needs a positive gamma", ErrArtifactMalformed, kernel)
	}

	nF := len(a.SupportVectors[0])
	if nF == 0 {
		return nil, fmt.Errorf("%w: empty support vector", ErrArtifactMalformed)
	}
	data := make([]float64, 0, len(a.SupportVectors)*nF)
	for i, row := range a.SupportVectors {
		if len(row) != nF {
			return nil, fmt.Errorf("%w: support vector %d has %d features, want %d",
				ErrArtifactMalformed, i, len(row), nF)
		}
		data = append(data, row...)
	}

	degree := a.Degree
	if degree == 0 {
		degree = 3
	}

	return &SVM{
		kernel:    kernel,
		gamma:     a.Gamma,
		coef0:     a.Coef0,
		degree:    degree,
		classes:   [2]int{a.Classes[0], a.Classes[1]},
		sv:        mat.NewDense(len(a.SupportVectors), nF, data),
		dualCoef:  mat.NewVecDense(len(a.DualCoef), append([]float64(nil), a.DualCoef...)),
		intercept: a.Intercept,
		probA:     a.ProbA,
		probB:     a.ProbB,
	}, nil
}

// LoadScaler reads a StandardScaler artifact.
func LoadScaler(path string) (*StandardScaler, error) {
	var a scalerArtifact
	if err := readArtifact(path, &a); err != nil {
		return nil, err
	}
	s, err := NewStandardScaler(a.Mean, a.Scale)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return s, nil
}

// LoadSVM reads an SVM artifact.
func LoadSVM(path string) (*SVM, error) {
	var a svmArtifact
	if err := readArtifact(path, &a); err != nil {
		return nil, err
	}
	m, err := newSVM(a)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return m, nil
}

// LoadClassifier loads both artifacts and checks they agree with each other
// and with the feature layout.
func LoadClassifier(scalerPath, modelPath string) (*Pipeline, error) {
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, err
	}
	model, err := LoadSVM(modelPath)
	if err != nil {
		return nil, err
	}
	if scaler.Dim() != FeatureLen {
		return nil, &ArtifactError{Path: scalerPath,
			Err: fmt.Errorf("%w: scaler has %d features, want %d", ErrArtifactMalformed, scaler.Dim(), FeatureLen)}
	}
	if model.Dim() != FeatureLen {
		return nil, &ArtifactError{Path: modelPath,
			Err: fmt.Errorf("%w: model has %d features, want %d", ErrArtifactMalformed, model.Dim(), FeatureLen)}
	}
	return NewClassifier(scaler, model), nil
}

func readArtifact(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ArtifactError{Path: path, Err: ErrArtifactMissing}
		}
		return &ArtifactError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ArtifactError{Path: path, Err: fmt.Errorf("%w: %v", ErrArtifactMalformed, err)}
	}
	return nil
}
