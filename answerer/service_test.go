package answerer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const registrationAnswer = "Kayıt işlemleri öğrenci işleri biriminden yapılır."

func registrationCatalog(t *testing.T) *LabelCatalog {
	t.Helper()
	cat, err := NewLabelCatalog([]LabelEntry{
		{ID: 0, Label: "kayit", Answer: registrationAnswer, Category: strPtr("akademik"),
			SuggestedLinks: []string{"https://example.edu/kayit"}},
		{ID: 1, Label: "yemek", Answer: "Yemekhane 07:30'da açılır.", Category: strPtr("kampüs")},
		{ID: 2, Label: "burs", Answer: "Burs başvuruları eylülde.", SuggestedLinks: []string{"https://example.edu/sss"}},
	})
	require.NoError(t, err)
	return cat
}

func registrationIndex(t *testing.T) *VectorStore {
	return newTestStore(t, []CorpusRow{
		{Question: "kayıt işlemleri nasıl", Answer: "Öğrenci işleri.", SuggestedLinks: []string{"https://example.edu/sss", "https://example.edu/kayit"}},
		{Question: "yemekhane ne zaman açık", Answer: "07:30."},
		{Question: "burs başvurusu", Answer: "Eylül.", SuggestedLinks: []string{"https://example.edu/burs"}},
	})
}

func newTestService(t *testing.T, clf Classifier, index *VectorStore) *Service {
	t.Helper()
	svc, err := NewService(clf, registrationCatalog(t), index, Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func TestPredictRegistrationScenario(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.92, 0.05, 0.03}}
	svc := newTestService(t, clf, registrationIndex(t))

	got, err := svc.Predict(context.Background(), "Kayıt işlemleri nasıl?", 3)
	require.NoError(t, err)
	assert.Equal(t, registrationAnswer, got.Text)
	require.NotNil(t, got.Category)
	assert.Equal(t, "akademik", *got.Category)
	assert.Nil(t, got.Subcategory)
	assert.InDelta(t, 0.92, got.Confidence, 1e-6)
	assert.Equal(t, []string{"kayıt işlemleri nasıl"}, got.SimilarQuestions)
	assert.Equal(t, []string{"https://example.edu/kayit", "https://example.edu/sss"}, got.SuggestedLinks)
}

func TestPredictClassifiesNormalizedText(t *testing.T) {
	clf := &fakeClassifier{
		labels:   3,
		fallback: []float32{1, 0, 0},
		dists:    map[string][]float32{"burs ne zaman": {0.1, 0.1, 0.8}},
	}
	svc := newTestService(t, clf, nil)
	got, err := svc.Predict(context.Background(), "  BURS ne zaman?? ", 0)
	require.NoError(t, err)
	assert.Equal(t, "Burs başvuruları eylülde.", got.Text)
}

func TestPredictWithoutIndex(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.2, 0.7, 0.1}}
	svc := newTestService(t, clf, nil)
	assert.False(t, svc.HasIndex())

	got, err := svc.Predict(context.Background(), "yemekhane", 3)
	require.NoError(t, err)
	assert.Equal(t, "Yemekhane 07:30'da açılır.", got.Text)
	assert.Empty(t, got.SimilarQuestions)
	assert.NotNil(t, got.SimilarQuestions)
	assert.Equal(t, []string{}, got.SuggestedLinks)
}

func TestPredictTieTakesFirstIndex(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.4, 0.4, 0.2}}
	svc := newTestService(t, clf, nil)
	got, err := svc.Predict(context.Background(), "x", 3)
	require.NoError(t, err)
	assert.Equal(t, registrationAnswer, got.Text)
}

func TestPredictEmptyQuestion(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.1, 0.1, 0.8}}
	svc := newTestService(t, clf, registrationIndex(t))
	got, err := svc.Predict(context.Background(), "", 3)
	require.NoError(t, err)
	assert.Equal(t, "Burs başvuruları eylülde.", got.Text)
	assert.Empty(t, got.SimilarQuestions)
	assert.Equal(t, []string{"https://example.edu/sss"}, got.SuggestedLinks)
}

func TestPredictSimilarBoundedByTopK(t *testing.T) {
	rows := make([]CorpusRow, 0, 6)
	for i := 0; i < 6; i++ {
		rows = append(rows, CorpusRow{Question: fmt.Sprintf("harç ücreti %d", i)})
	}
	clf := &fakeClassifier{labels: 3, fallback: []float32{1, 0, 0}}
	svc := newTestService(t, clf, newTestStore(t, rows))
	got, err := svc.Predict(context.Background(), "harç ücreti", 2)
	require.NoError(t, err)
	assert.Len(t, got.SimilarQuestions, 2)
}

func TestPredictHugeTopK(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.92, 0.05, 0.03}}
	svc := newTestService(t, clf, registrationIndex(t))
	got, err := svc.Predict(context.Background(), "kayıt işlemleri nasıl", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, []string{"kayıt işlemleri nasıl"}, got.SimilarQuestions)
}

func TestPredictMergesLinksOfUntitledNeighbour(t *testing.T) {
	tw := &TermWeighting{
		Vocabulary: map[string]int{"burs": 0},
		IDF:        []float64{1},
		Norm:       "l2",
	}
	m := &CSRMatrix{Shape: [2]int{2, 1}, Indptr: []int{0, 1, 2}, Indices: []int{0, 0}, Data: []float64{1, 1}}
	index, err := NewVectorStore(tw, m, []CorpusRow{
		{Question: "", SuggestedLinks: []string{"https://example.edu/burs", "https://example.edu/sss"}},
		{Question: "burs başvurusu", SuggestedLinks: []string{"https://example.edu/takvim"}},
	})
	require.NoError(t, err)
	clf := &fakeClassifier{labels: 3, fallback: []float32{0.1, 0.1, 0.8}}
	svc := newTestService(t, clf, index)

	got, err := svc.Predict(context.Background(), "burs", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"burs başvurusu"}, got.SimilarQuestions)
	assert.Equal(t, []string{
		"https://example.edu/sss",
		"https://example.edu/burs",
		"https://example.edu/takvim",
	}, got.SuggestedLinks)
}

func TestPredictInferenceError(t *testing.T) {
	boom := errors.New("session exploded")
	clf := &fakeClassifier{labels: 3, err: boom}
	svc := newTestService(t, clf, nil)
	_, err := svc.Predict(context.Background(), "kayıt", 3)
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, boom)
}

func TestPredictEmptyDistribution(t *testing.T) {
	clf := &fakeClassifier{labels: 3, fallback: []float32{}}
	svc := newTestService(t, clf, nil)
	_, err := svc.Predict(context.Background(), "kayıt", 3)
	assert.ErrorIs(t, err, ErrInference)
}

func TestPredictUnknownLabel(t *testing.T) {
	clf := &fakeClassifier{fallback: []float32{0, 0, 0, 0, 1}}
	svc := newTestService(t, clf, nil)
	_, err := svc.Predict(context.Background(), "kayıt", 3)
	assert.ErrorIs(t, err, ErrInconsistentCatalog)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, registrationCatalog(t), nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrClassifierRequired)

	_, err = NewService(&fakeClassifier{}, nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrCatalogRequired)

	_, err = NewService(&fakeClassifier{labels: 5}, registrationCatalog(t), nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrInconsistentCatalog)
}

func TestPredictAllKeepsOrder(t *testing.T) {
	clf := &fakeClassifier{
		labels:   3,
		fallback: []float32{1, 0, 0},
		dists: map[string][]float32{
			"yemek": {0, 1, 0},
			"burs":  {0, 0, 1},
		},
	}
	svc, err := NewService(clf, registrationCatalog(t), nil, Config{Workers: 3}, nil)
	require.NoError(t, err)

	texts := []string{"burs", "yemek", "kayıt", "Burs", "YEMEK", "kayıt nasıl", "burs?"}
	got, err := svc.PredictAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	want := []string{"Burs başvuruları eylülde.", "Yemekhane 07:30'da açılır.", registrationAnswer,
		"Burs başvuruları eylülde.", "Yemekhane 07:30'da açılır.", registrationAnswer, "Burs başvuruları eylülde."}
	for i := range texts {
		assert.Equal(t, want[i], got[i].Text, "question %d", i)
	}
	assert.Equal(t, len(texts), clf.callCount())
}

func TestPredictAllEmpty(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{labels: 3}, nil)
	got, err := svc.PredictAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPredictAllFailure(t *testing.T) {
	clf := &fakeClassifier{labels: 3, err: errors.New("down")}
	svc := newTestService(t, clf, nil)
	_, err := svc.PredictAll(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrInference)
}

func TestServiceInfoAndClose(t *testing.T) {
	clf := &fakeClassifier{labels: 3}
	svc := newTestService(t, clf, registrationIndex(t))
	info := svc.Info()
	assert.Equal(t, "fake-model", info.ModelID)
	assert.Equal(t, 3, info.Labels)
	assert.Equal(t, 3, info.IndexedQuestions)
	assert.Positive(t, info.Vocabulary)

	require.NoError(t, svc.Close())
	assert.True(t, clf.closed)
}

func TestLoadServiceMissingCatalog(t *testing.T) {
	cfg := Config{Model: ModelConfig{Dir: t.TempDir()}}
	_, err := LoadService(cfg, nil)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestLoadServiceMissingModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LabelMappingFile, `[{"id": 0, "answer": "a"}]`)
	cfg := Config{Model: ModelConfig{Dir: dir}}
	_, err := LoadService(cfg, nil)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestLinkSetDeduplicates(t *testing.T) {
	ls := newLinkSet([]string{"a", "b", "a"})
	ls.add("c", "b", "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, ls.items)
}
