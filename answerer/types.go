package answerer

// LabelEntry is the canonical answer and metadata for one classifier output index.
type LabelEntry struct {
	ID               int      `json:"id"`
	Label            string   `json:"label"`
	Answer           string   `json:"answer"`
	Category         *string  `json:"category"`
	Subcategory      *string  `json:"subcategory"`
	Tags             []string `json:"tags"`
	QuestionExamples []string `json:"question_examples"`
	SuggestedLinks   []string `json:"suggested_links"`
}

// CorpusRow is the metadata of one indexed historical question.
type CorpusRow struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Category       *string  `json:"category"`
	Subcategory    *string  `json:"subcategory"`
	Tags           []string `json:"tags"`
	SuggestedLinks []string `json:"suggested_links"`
}

func (r CorpusRow) clone() CorpusRow {
	r.Category = cloneOptional(r.Category)
	r.Subcategory = cloneOptional(r.Subcategory)
	r.Tags = cloneStrings(r.Tags)
	r.SuggestedLinks = cloneStrings(r.SuggestedLinks)
	return r
}

func (r CorpusRow) similar(score float32) SimilarQuestion {
	c := r.clone()
	return SimilarQuestion{
		Question:       c.Question,
		Answer:         c.Answer,
		Category:       c.Category,
		Subcategory:    c.Subcategory,
		Score:          score,
		Tags:           c.Tags,
		SuggestedLinks: c.SuggestedLinks,
	}
}

// SimilarQuestion is a corpus row matched by a similarity search.
type SimilarQuestion struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Category       *string  `json:"category,omitempty"`
	Subcategory    *string  `json:"subcategory,omitempty"`
	Score          float32  `json:"score"`
	Tags           []string `json:"tags"`
	SuggestedLinks []string `json:"suggestedLinks"`
}

// GeneratedAnswer is the result of Predict.
type GeneratedAnswer struct {
	Text             string   `json:"text"`
	Category         *string  `json:"category"`
	Subcategory      *string  `json:"subcategory"`
	Confidence       float32  `json:"confidence"`
	SimilarQuestions []string `json:"similarQuestions"`
	SuggestedLinks   []string `json:"suggestedLinks"`
}

// InputRecord is one question read from a batch input file.
type InputRecord struct {
	Index    string `json:"index,omitempty"`
	Question string `json:"question"`
}

// ModelConfig describes the classifier artifacts and execution target.
type ModelConfig struct {
	Dir        string `yaml:"dir"`
	OrtLibrary string `yaml:"ortLibrary"`
	Device     string `yaml:"device"`
	MaxSeqLen  int    `yaml:"maxSeqLen"`
	NumLabels  int    `yaml:"numLabels"`
	ModelID    string `yaml:"modelId"`
}

// SearchConfig holds the similarity merge policy.
type SearchConfig struct {
	TopK           int     `yaml:"topK"`
	ScoreThreshold float32 `yaml:"scoreThreshold"`
}

// VectorStoreConfig points at the optional similarity index bundle.
type VectorStoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the classifier distribution cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxHistoryItems int    `yaml:"maxHistoryItems"`
	Version         string `yaml:"version"`
}

// DatabaseConfig locates the chat history database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config aggregates runtime settings persisted to config.yaml.
type Config struct {
	Model       ModelConfig       `yaml:"model"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Workers     int               `yaml:"workers"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Columns     ColumnCandidates  `yaml:"columns"`
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Model.Dir == "" {
		c.Model.Dir = "./models/current"
	}
	if c.Model.Device == "" {
		c.Model.Device = "auto"
	}
	if c.Model.MaxSeqLen <= 0 {
		c.Model.MaxSeqLen = 256
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 3
	}
	if c.Search.ScoreThreshold == 0 {
		c.Search.ScoreThreshold = DefaultScoreThreshold
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.MaxHistoryItems <= 0 {
		c.Server.MaxHistoryItems = 200
	}
	if c.Server.Version == "" {
		c.Server.Version = "0.1.0"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/chat_history.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneOptional(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
