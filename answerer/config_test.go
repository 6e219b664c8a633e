package answerer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, "./models/current", cfg.Model.Dir)
	assert.Equal(t, "auto", cfg.Model.Device)
	assert.Equal(t, 256, cfg.Model.MaxSeqLen)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, DefaultScoreThreshold, cfg.Search.ScoreThreshold)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 200, cfg.Server.MaxHistoryItems)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("absent.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, "./data/chat_history.db", cfg.Database.Path)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cacheDir := filepath.Join(dir, "cache")
	path := writeFile(t, dir, "config.yaml", `
model:
  dir: /srv/models/v3
  device: cpu
vectorStore:
  path: /srv/models/vector_store.json
search:
  topK: 5
  scoreThreshold: 0.45
cache:
  dir: `+cacheDir+`
workers: 8
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models/v3", cfg.Model.Dir)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.Equal(t, "/srv/models/vector_store.json", cfg.VectorStore.Path)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.InDelta(t, 0.45, cfg.Search.ScoreThreshold, 1e-6)
	assert.Equal(t, 8, cfg.Workers)
	assert.DirExists(t, cacheDir)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.yaml", "model:\n  dir: from-file\n")
	t.Setenv("ANSWERER_MODEL_DIR", "from-env")
	t.Setenv("ANSWERER_WORKERS", "2")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model.Dir)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "ANSWERER_SERVER_ADDR=127.0.0.1:9090\n")
	t.Cleanup(func() { os.Unsetenv("ANSWERER_SERVER_ADDR") })
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	_, err := LoadConfig(writeFile(t, dir, "bad.yaml", "model: [unterminated"))
	assert.ErrorContains(t, err, "decode config")
}

func TestApplyEnvBadWorkers(t *testing.T) {
	var cfg Config
	err := applyEnv(&cfg, func(name string) (string, bool) {
		if name == EnvPrefix+"WORKERS" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "WORKERS")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "nested", "config.yaml")
	in := Config{Model: ModelConfig{Dir: "m", Device: "cuda"}, Search: SearchConfig{TopK: 7}}
	require.NoError(t, SaveConfig(path, in))
	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "m", out.Model.Dir)
	assert.Equal(t, "cuda", out.Model.Device)
	assert.Equal(t, 7, out.Search.TopK)
	assert.NoFileExists(t, path+".tmp")
}
