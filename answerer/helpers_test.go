package answerer

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fitStore fits a smoothed TF-IDF model over the rows' questions the same way
// the training job exports it, so tests can build realistic bundles.
func fitStore(t testing.TB, rows []CorpusRow) (*TermWeighting, *CSRMatrix) {
	t.Helper()
	tw := &TermWeighting{Vocabulary: map[string]int{}, NgramRange: [2]int{1, 2}, Norm: "l2", MinTokenLength: 2}
	docs := make([][]string, len(rows))
	df := map[string]int{}
	for i, r := range rows {
		docs[i] = tw.Features(Tokenize(r.Question))
		seen := map[string]bool{}
		for _, term := range docs[i] {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	tw.IDF = make([]float64, len(terms))
	n := float64(len(rows))
	for col, term := range terms {
		tw.Vocabulary[term] = col
		tw.IDF[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	m := &CSRMatrix{Shape: [2]int{len(rows), len(terms)}, Indptr: []int{0}}
	for _, doc := range docs {
		counts := map[int]float64{}
		for _, term := range doc {
			counts[tw.Vocabulary[term]]++
		}
		cols := make([]int, 0, len(counts))
		for col := range counts {
			cols = append(cols, col)
		}
		sort.Ints(cols)
		vec := make([]termWeight, len(cols))
		for i, col := range cols {
			vec[i] = termWeight{Col: col, Weight: counts[col] * tw.IDF[col]}
		}
		normalizeWeights(vec, "l2")
		for _, v := range vec {
			m.Indices = append(m.Indices, v.Col)
			m.Data = append(m.Data, v.Weight)
		}
		m.Indptr = append(m.Indptr, len(m.Indices))
	}
	return tw, m
}

func newTestStore(t testing.TB, rows []CorpusRow) *VectorStore {
	t.Helper()
	tw, m := fitStore(t, rows)
	vs, err := NewVectorStore(tw, m, rows)
	require.NoError(t, err)
	return vs
}

func writeStoreFile(t testing.TB, dir string, rows []CorpusRow) string {
	t.Helper()
	tw, m := fitStore(t, rows)
	data, err := json.Marshal(vectorStoreFile{Vectorizer: tw, Matrix: m, Metadata: rows})
	require.NoError(t, err)
	path := filepath.Join(dir, "vector_store.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func strPtr(s string) *string { return &s }

// fakeClassifier returns a fixed distribution per normalized text.
type fakeClassifier struct {
	mu       sync.Mutex
	dists    map[string][]float32
	fallback []float32
	err      error
	calls    int
	labels   int
	closed   bool
}

func (f *fakeClassifier) Classify(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.dists[text]; ok {
		return cloneVector(d), nil
	}
	return cloneVector(f.fallback), nil
}

func (f *fakeClassifier) NumLabels() int  { return f.labels }
func (f *fakeClassifier) ModelID() string { return "fake-model" }

func (f *fakeClassifier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
