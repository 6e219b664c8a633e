package answerer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"istechat/answerer/infer"
)

// Model artifact names inside ModelConfig.Dir.
const (
	ModelFile       = "model.onnx"
	TokenizerFile   = "tokenizer.json"
	ModelConfigFile = "config.json"
)

// Classifier produces a probability distribution over label indices for
// normalized text.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]float32, error)
	NumLabels() int
	ModelID() string
	Close() error
}

// OrtClassifier is a thin wrapper over infer.Classifier.
type OrtClassifier struct {
	mu  sync.RWMutex
	enc *infer.Classifier
	cfg ModelConfig
}

// NewOrtClassifier checks the model directory and initializes the ONNX session.
func NewOrtClassifier(cfg ModelConfig, logger *zap.Logger) (*OrtClassifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModelID == "" {
		cfg.ModelID = filepath.Base(filepath.Clean(cfg.Dir))
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: model directory %s", ErrMissingArtifact, cfg.Dir)
	}
	modelPath := filepath.Join(cfg.Dir, ModelFile)
	tokenizerPath := filepath.Join(cfg.Dir, TokenizerFile)
	for _, p := range []string{modelPath, tokenizerPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, p)
		}
	}
	numLabels := cfg.NumLabels
	if numLabels <= 0 {
		n, err := infer.ReadNumLabels(filepath.Join(cfg.Dir, ModelConfigFile))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			numLabels = n
		}
	}
	enc := &infer.Classifier{}
	if err := enc.Init(infer.Config{
		LibraryPath:   cfg.OrtLibrary,
		ModelPath:     modelPath,
		TokenizerPath: tokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
		NumLabels:     numLabels,
		Device:        cfg.Device,
	}); err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	logger.Info("classifier loaded",
		zap.String("model", modelPath),
		zap.String("device", enc.Device()),
		zap.Int("labels", enc.NumLabels()))
	return &OrtClassifier{enc: enc, cfg: cfg}, nil
}

// Classify runs the model and returns softmax probabilities.
func (o *OrtClassifier) Classify(ctx context.Context, text string) ([]float32, error) {
	if o == nil {
		return nil, errors.New("classifier is not initialized")
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.enc == nil {
		return nil, errors.New("classifier is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logits, err := o.enc.Logits(text)
	if err != nil {
		return nil, err
	}
	return infer.Softmax(logits), nil
}

// NumLabels returns the number of classifier outputs.
func (o *OrtClassifier) NumLabels() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.enc == nil {
		return 0
	}
	return o.enc.NumLabels()
}

// ModelID returns the identifier used for cache keys.
func (o *OrtClassifier) ModelID() string {
	return o.cfg.ModelID
}

// Close releases ORT resources.
func (o *OrtClassifier) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enc == nil {
		return nil
	}
	o.enc.Close()
	o.enc = nil
	return nil
}

// argmax returns the first index holding the largest value.
func argmax(values []float32) (int, float32) {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best, values[best]
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
