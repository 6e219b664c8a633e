package answerer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultScoreThreshold is the minimum similarity kept by Search callers that
// do not configure one.
const DefaultScoreThreshold float32 = 0.3

// CSRMatrix is a compressed sparse row matrix of corpus term weights.
type CSRMatrix struct {
	Shape   [2]int    `json:"shape"`
	Indptr  []int     `json:"indptr"`
	Indices []int     `json:"indices"`
	Data    []float64 `json:"data"`
}

func (m *CSRMatrix) validate() error {
	rows, cols := m.Shape[0], m.Shape[1]
	if rows < 0 || cols <= 0 {
		return fmt.Errorf("invalid matrix shape %v", m.Shape)
	}
	if len(m.Indptr) != rows+1 {
		return fmt.Errorf("matrix indptr has %d entries, want %d", len(m.Indptr), rows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("matrix has %d indices but %d values", len(m.Indices), len(m.Data))
	}
	if m.Indptr[0] != 0 || m.Indptr[rows] != len(m.Indices) {
		return errors.New("matrix indptr does not span the stored values")
	}
	for i := 0; i < rows; i++ {
		if m.Indptr[i+1] < m.Indptr[i] {
			return fmt.Errorf("matrix indptr decreases at row %d", i)
		}
	}
	for _, col := range m.Indices {
		if col < 0 || col >= cols {
			return fmt.Errorf("matrix column %d outside [0,%d)", col, cols)
		}
	}
	return nil
}

type vectorStoreFile struct {
	Vectorizer *TermWeighting `json:"vectorizer"`
	Matrix     *CSRMatrix     `json:"matrix"`
	Metadata   []CorpusRow    `json:"metadata"`
}

type posting struct {
	row    int
	weight float64
}

// VectorStore is an immutable TF-IDF index over known questions. It is safe
// for concurrent use.
type VectorStore struct {
	weighting *TermWeighting
	rows      []CorpusRow
	// postings[col] lists the rows with a non-zero weight for col, by row.
	postings [][]posting
}

// LoadVectorStore reads a vector store bundle. An empty path or an absent file
// yields ErrOptionalArtifactMissing.
func LoadVectorStore(path string) (*VectorStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: vector store path not configured", ErrOptionalArtifactMissing)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrOptionalArtifactMissing, path)
		}
		return nil, fmt.Errorf("read vector store: %w", err)
	}
	var file vectorStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode vector store: %w", err)
	}
	return NewVectorStore(file.Vectorizer, file.Matrix, file.Metadata)
}

// NewVectorStore validates the parts of a bundle and builds the lookup structure.
func NewVectorStore(weighting *TermWeighting, matrix *CSRMatrix, rows []CorpusRow) (*VectorStore, error) {
	if weighting == nil {
		return nil, errors.New("vector store: vectorizer is missing")
	}
	if matrix == nil {
		return nil, errors.New("vector store: matrix is missing")
	}
	weighting.applyDefaults()
	if err := weighting.validate(); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	if err := matrix.validate(); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	if matrix.Shape[1] != len(weighting.IDF) {
		return nil, fmt.Errorf("vector store: matrix has %d columns, vocabulary has %d", matrix.Shape[1], len(weighting.IDF))
	}
	if matrix.Shape[0] != len(rows) {
		return nil, fmt.Errorf("vector store: matrix has %d rows, metadata has %d", matrix.Shape[0], len(rows))
	}
	postings := make([][]posting, matrix.Shape[1])
	for row := 0; row < matrix.Shape[0]; row++ {
		for k := matrix.Indptr[row]; k < matrix.Indptr[row+1]; k++ {
			col := matrix.Indices[k]
			postings[col] = append(postings[col], posting{row: row, weight: matrix.Data[k]})
		}
	}
	stored := make([]CorpusRow, len(rows))
	for i, r := range rows {
		stored[i] = r.clone()
	}
	return &VectorStore{weighting: weighting, rows: stored, postings: postings}, nil
}

// Size returns the number of indexed questions.
func (vs *VectorStore) Size() int {
	if vs == nil {
		return 0
	}
	return len(vs.rows)
}

// VocabularySize returns the number of terms known to the fitted model.
func (vs *VectorStore) VocabularySize() int {
	if vs == nil {
		return 0
	}
	return len(vs.weighting.Vocabulary)
}

// Search returns at most topK rows scoring at least threshold, best first.
// Equal scores keep corpus order.
func (vs *VectorStore) Search(query string, topK int, threshold float32) []SimilarQuestion {
	if vs == nil || topK <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	scores := vs.score(Tokenize(query))
	hits := make([]int, 0, len(scores))
	// Scores are reported as float32, so the cut-off is compared at that precision.
	for row, s := range scores {
		if float32(s) >= threshold {
			hits = append(hits, row)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return scores[hits[i]] > scores[hits[j]]
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]SimilarQuestion, len(hits))
	for i, row := range hits {
		out[i] = vs.rows[row].similar(float32(scores[row]))
	}
	return out
}

// score computes the dot product of the query vector with every corpus row.
func (vs *VectorStore) score(tokens []string) []float64 {
	scores := make([]float64, len(vs.rows))
	for _, tw := range vs.weighting.Transform(tokens) {
		for _, p := range vs.postings[tw.Col] {
			scores[p.row] += tw.Weight * p.weight
		}
	}
	return scores
}
