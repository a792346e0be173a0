package vision

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/mlavoie/feedgo/internal/debug"
)

// Model is a multinomial logistic classifier exported from the training
// pipeline as a JSON artifact: one weight vector and intercept per class
// over a flattened RGB feature vector.
type Model struct {
	Classes     []string    `json:"classes"`
	InputWidth  int         `json:"input_width"`
	InputHeight int         `json:"input_height"`
	Coef        [][]float64 `json:"coef"`
	Intercept   []float64   `json:"intercept"`

	emptyIndex int
}

// EmptyClass is the class name the dispense decision keys on.
const EmptyClass = "empty"

// LoadModel reads and validates a model artifact. Called once at
// startup; a failure here is fatal upstream.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model artifact: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}

	debug.Info("Model loaded: %d classes, input %dx%d", len(m.Classes), m.InputWidth, m.InputHeight)
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(m.Classes))
	}
	if m.InputWidth <= 0 || m.InputHeight <= 0 {
		return fmt.Errorf("invalid input geometry %dx%d", m.InputWidth, m.InputHeight)
	}
	if len(m.Coef) != len(m.Classes) || len(m.Intercept) != len(m.Classes) {
		return fmt.Errorf("coef/intercept rows (%d/%d) do not match %d classes",
			len(m.Coef), len(m.Intercept), len(m.Classes))
	}

	features := m.FeatureCount()
	for i, row := range m.Coef {
		if len(row) != features {
			return fmt.Errorf("coef row %d has %d weights, want %d", i, len(row), features)
		}
	}

	m.emptyIndex = -1
	for i, name := range m.Classes {
		if name == EmptyClass {
			m.emptyIndex = i
		}
	}
	if m.emptyIndex < 0 {
		return fmt.Errorf("no %q class among %v", EmptyClass, m.Classes)
	}
	return nil
}

// FeatureCount returns the expected flattened feature vector length.
func (m *Model) FeatureCount() int {
	return m.InputWidth * m.InputHeight * 3
}

// EmptyIndex returns the index of the empty class in probability order.
func (m *Model) EmptyIndex() int {
	return m.emptyIndex
}

// PredictProba returns softmax class probabilities for a flattened
// feature vector. Deterministic: no state is read or written.
func (m *Model) PredictProba(features []float64) ([]float64, error) {
	if len(features) != m.FeatureCount() {
		return nil, fmt.Errorf("feature vector length %d, want %d", len(features), m.FeatureCount())
	}

	scores := make([]float64, len(m.Classes))
	for i, row := range m.Coef {
		s := m.Intercept[i]
		for j, w := range row {
			s += w * features[j]
		}
		scores[i] = s
	}

	// Softmax with max subtraction for numerical stability.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}
