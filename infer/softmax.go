package infer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Softmax converts logits into a probability distribution.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// ReadNumLabels returns the label count declared by a HuggingFace config.json
// (id2label, falling back to num_labels). It returns 0 when neither is set.
func ReadNumLabels(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var cfg struct {
		ID2Label  map[string]string `json:"id2label"`
		NumLabels int               `json:"num_labels"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(cfg.ID2Label) > 0 {
		return len(cfg.ID2Label), nil
	}
	return cfg.NumLabels, nil
}
