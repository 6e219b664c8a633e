package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"istechat/answerer/answerer"
)

type constClassifier struct {
	probs []float32
}

func (c constClassifier) Classify(context.Context, string) ([]float32, error) {
	return append([]float32(nil), c.probs...), nil
}
func (c constClassifier) NumLabels() int  { return len(c.probs) }
func (c constClassifier) ModelID() string { return "const" }
func (c constClassifier) Close() error    { return nil }

func strPtr(s string) *string { return &s }

// useStubService swaps the artifact loader for an in-memory engine.
func useStubService(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	orig := loadService
	t.Cleanup(func() {
		loadService = orig
		configPath, logLevel = "", ""
		batchOpts = batchOptions{}
		askTopK, askJSON = 0, false
		inspectLabels = false
	})
	loadService = func(cfg answerer.Config, logger *zap.Logger) (*answerer.Service, error) {
		catalog, err := answerer.NewLabelCatalog([]answerer.LabelEntry{
			{ID: 0, Label: "kayit", Answer: "Kayıt işlemleri öğrenci işleri biriminden yapılır.", Category: strPtr("akademik"),
				SuggestedLinks: []string{"https://example.edu/kayit"}},
			{ID: 1, Answer: "Yemekhane 07:30'da açılır."},
		})
		if err != nil {
			return nil, err
		}
		return answerer.NewService(constClassifier{probs: []float32{0.9, 0.1}}, catalog, nil, cfg, logger)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	useStubService(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "answerer-cli dev")
}

func TestAskCommand(t *testing.T) {
	useStubService(t)
	out, err := runCLI(t, "ask", "Kayıt", "nasıl", "yapılır?")
	require.NoError(t, err)
	assert.Contains(t, out, "Kayıt işlemleri öğrenci işleri biriminden yapılır.")
	assert.Contains(t, out, "Kategori: akademik")
	assert.Contains(t, out, "Güven:    0.900")
	assert.Contains(t, out, "https://example.edu/kayit")
}

func TestAskCommandJSON(t *testing.T) {
	useStubService(t)
	out, err := runCLI(t, "ask", "--json", "burs")
	require.NoError(t, err)
	var got answerer.GeneratedAnswer
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 0.9, got.Confidence, 1e-6)
	assert.Equal(t, []string{"https://example.edu/kayit"}, got.SuggestedLinks)
}

func TestAskRequiresQuestion(t *testing.T) {
	useStubService(t)
	_, err := runCLI(t, "ask")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	useStubService(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(input, []byte("id,soru\nq1,Kayıt nasıl?\nq2,Yemekhane?\n"), 0o644))
	output := filepath.Join(dir, "out", "answers.csv")

	out, err := runCLI(t, "batch", "--input", input, "--output", output, "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, output)
	assert.Contains(t, out, "#q1 Kayıt nasıl?")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Soru", rows[0][1])
	assert.Equal(t, []string{"q1", "Kayıt nasıl?", "Kayıt işlemleri öğrenci işleri biriminden yapılır.",
		"akademik", "", "0.900", "", "https://example.edu/kayit"}, rows[1])
}

func TestBatchRequiresInput(t *testing.T) {
	useStubService(t)
	_, err := runCLI(t, "batch")
	assert.ErrorContains(t, err, "--input")
}

func TestInspectCommand(t *testing.T) {
	useStubService(t)
	out, err := runCLI(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "labels:      2")
	assert.Contains(t, out, "index:       disabled")
}

func TestInspectListsLabels(t *testing.T) {
	useStubService(t)
	out, err := runCLI(t, "inspect", "--labels")
	require.NoError(t, err)
	assert.Contains(t, out, "   0  kayit")
	assert.Contains(t, out, "akademik")
	assert.Contains(t, out, "   1  ")
}

func TestResolveOutputPathDefaultsToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	path, err := resolveOutputPath("", dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "result_"))
	assert.Equal(t, ".csv", filepath.Ext(path))
}

func TestWriteResultCSVLengthMismatch(t *testing.T) {
	err := writeResultCSV(filepath.Join(t.TempDir(), "x.csv"), []answerer.InputRecord{{Question: "a"}}, nil)
	assert.ErrorContains(t, err, "mismatch")
}

func TestSummarizeRecord(t *testing.T) {
	assert.Equal(t, "#3 burs", summarizeRecord(answerer.InputRecord{Index: "3", Question: " burs "}))
	assert.Equal(t, "(boş metin)", summarizeRecord(answerer.InputRecord{}))
	long := strings.Repeat("a", 70)
	assert.Equal(t, strings.Repeat("a", 60)+"…", summarizeRecord(answerer.InputRecord{Question: long}))
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(answerer.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = newLogger(answerer.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = newLogger(answerer.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
