package vision

import (
	"fmt"

	"github.com/mlavoie/feedgo/internal/debug"
)

// Result is the outcome of classifying one frame. Immutable value;
// Confidence is the maximum class probability, which is not necessarily
// the empty-class probability.
type Result struct {
	Empty      bool
	Confidence float64
}

// Classifier maps a Frame to a bowl state using the loaded model.
// Pure and deterministic: the same buffer always yields the same Result.
type Classifier struct {
	model     *Model
	threshold float64
}

// NewClassifier wraps a loaded model with a decision threshold.
// The bowl reads empty only when the empty-class probability strictly
// exceeds the threshold.
func NewClassifier(m *Model, threshold float64) *Classifier {
	return &Classifier{model: m, threshold: threshold}
}

// Classify resizes the frame to the model input geometry, reorders
// BGR to RGB, flattens to a feature vector and queries the model.
func (c *Classifier) Classify(f Frame) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	features := c.preprocess(f)
	probs, err := c.model.PredictProba(features)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	pEmpty := probs[c.model.EmptyIndex()]
	confidence := probs[0]
	for _, p := range probs[1:] {
		if p > confidence {
			confidence = p
		}
	}

	debug.Verbose("Classifier: p(empty)=%.3f confidence=%.3f threshold=%.2f", pEmpty, confidence, c.threshold)

	return Result{
		Empty:      pEmpty > c.threshold,
		Confidence: confidence,
	}, nil
}

// preprocess mirrors the training pipeline: nearest-neighbour resize to
// the model input size, BGR→RGB reorder, row-major flatten.
func (c *Classifier) preprocess(f Frame) []float64 {
	dstW, dstH := c.model.InputWidth, c.model.InputHeight
	features := make([]float64, 0, dstW*dstH*3)

	for y := 0; y < dstH; y++ {
		srcY := y * f.Height / dstH
		for x := 0; x < dstW; x++ {
			srcX := x * f.Width / dstW
			i := (srcY*f.Width + srcX) * f.Channels
			b, g, r := f.Pix[i], f.Pix[i+1], f.Pix[i+2]
			features = append(features, float64(r), float64(g), float64(b))
		}
	}
	return features
}
