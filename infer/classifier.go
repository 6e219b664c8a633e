// Package infer runs exported sequence-classification models with ONNX Runtime.
package infer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Execution targets accepted in Config.Device.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

const (
	inputIDs      = "input_ids"
	attentionMask = "attention_mask"
	tokenTypeIDs  = "token_type_ids"
	outputLogits  = "logits"
)

// Config locates the model artifacts.
type Config struct {
	LibraryPath   string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// NumLabels overrides the label count read from the model's output shape.
	NumLabels int
	Device    string
}

// Classifier wraps an ONNX Runtime session and a HuggingFace tokenizer.
// Logits may be called from several goroutines; runs are serialized.
type Classifier struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tk         *tokenizer.Tokenizer
	inputNames []string
	numLabels  int
	maxSeqLen  int
	device     string
}

var (
	envMu   sync.Mutex
	envRefs int
)

// Init loads the tokenizer and creates the inference session.
func (c *Classifier) Init(cfg Config) error {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 256
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}
	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("inspect model %s: %w", cfg.ModelPath, err)
	}
	names, err := selectInputs(inputs)
	if err != nil {
		releaseEnvironment()
		return err
	}
	numLabels := cfg.NumLabels
	if numLabels <= 0 {
		numLabels = outputWidth(outputs)
	}
	if numLabels <= 0 {
		releaseEnvironment()
		return errors.New("cannot determine label count from model output; set numLabels")
	}
	session, device, err := newSession(cfg.ModelPath, names, cfg.Device)
	if err != nil {
		releaseEnvironment()
		return err
	}
	c.session = session
	c.tk = tk
	c.inputNames = names
	c.numLabels = numLabels
	c.maxSeqLen = cfg.MaxSeqLen
	c.device = device
	return nil
}

// NumLabels returns the width of the logits vector.
func (c *Classifier) NumLabels() int { return c.numLabels }

// Device reports the execution target the session was created on.
func (c *Classifier) Device() string { return c.device }

// Logits tokenizes text and returns the raw model scores.
func (c *Classifier) Logits(text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, errors.New("classifier is not initialized")
	}
	enc, err := c.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := truncate(toInt64(enc.Ids), c.maxSeqLen)
	mask := truncate(toInt64(enc.AttentionMask), c.maxSeqLen)
	types := truncate(toInt64(enc.TypeIds), c.maxSeqLen)
	if len(ids) == 0 {
		return nil, errors.New("tokenizer produced no ids")
	}
	if len(mask) != len(ids) {
		mask = ones(len(ids))
	}
	if len(types) != len(ids) {
		types = make([]int64, len(ids))
	}
	shape := ort.NewShape(1, int64(len(ids)))
	byName := map[string][]int64{inputIDs: ids, attentionMask: mask, tokenTypeIDs: types}

	inputs := make([]ort.Value, 0, len(c.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range c.inputNames {
		t, err := ort.NewTensor(shape, byName[name])
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c.numLabels)))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()
	if err := c.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	logits := make([]float32, c.numLabels)
	copy(logits, out.GetData())
	return logits, nil
}

// Close releases the session and, with the last classifier, the runtime.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	_ = c.session.Destroy()
	c.session = nil
	releaseEnvironment()
}

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			if _, err := os.Stat(libraryPath); err != nil {
				return fmt.Errorf("onnxruntime library: %w", err)
			}
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

func newSession(modelPath string, inputs []string, device string) (*ort.DynamicAdvancedSession, string, error) {
	device = strings.ToLower(strings.TrimSpace(device))
	switch device {
	case "", DeviceAuto:
		if s, err := createSession(modelPath, inputs, true); err == nil {
			return s, DeviceCUDA, nil
		}
		s, err := createSession(modelPath, inputs, false)
		return s, DeviceCPU, err
	case DeviceCUDA:
		s, err := createSession(modelPath, inputs, true)
		return s, DeviceCUDA, err
	case DeviceCPU:
		s, err := createSession(modelPath, inputs, false)
		return s, DeviceCPU, err
	default:
		return nil, "", fmt.Errorf("unknown device %q", device)
	}
}

func createSession(modelPath string, inputs []string, cuda bool) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("enable cuda: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, []string{outputLogits}, opts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func selectInputs(infos []ort.InputOutputInfo) ([]string, error) {
	have := make(map[string]bool, len(infos))
	for _, info := range infos {
		have[info.Name] = true
	}
	if !have[inputIDs] || !have[attentionMask] {
		return nil, fmt.Errorf("model must accept %s and %s", inputIDs, attentionMask)
	}
	names := []string{inputIDs, attentionMask}
	if have[tokenTypeIDs] {
		names = append(names, tokenTypeIDs)
	}
	return names, nil
}

func outputWidth(infos []ort.InputOutputInfo) int {
	for _, info := range infos {
		if info.Name != outputLogits || len(info.Dimensions) == 0 {
			continue
		}
		return int(info.Dimensions[len(info.Dimensions)-1])
	}
	return 0
}

// truncate keeps the first max-1 positions and the final (separator) position.
func truncate(v []int64, max int) []int64 {
	if max <= 0 || len(v) <= max {
		return v
	}
	out := make([]int64, 0, max)
	out = append(out, v[:max-1]...)
	return append(out, v[len(v)-1])
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
