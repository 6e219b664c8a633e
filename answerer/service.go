package answerer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Service answers questions by combining the classifier with the similarity
// index. It is read-only after construction and safe for concurrent use.
type Service struct {
	classifier Classifier
	catalog    *LabelCatalog
	index      *VectorStore

	topK      int
	threshold float32
	workers   int

	logger *zap.Logger
}

// Info summarizes the loaded artifacts.
type Info struct {
	ModelID          string `json:"modelId"`
	Labels           int    `json:"labels"`
	IndexedQuestions int    `json:"indexedQuestions"`
	Vocabulary       int    `json:"vocabulary"`
}

// NewService constructs a service from loaded parts. index may be nil, in
// which case similarity search is disabled.
func NewService(classifier Classifier, catalog *LabelCatalog, index *VectorStore, cfg Config, logger *zap.Logger) (*Service, error) {
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if n := classifier.NumLabels(); n > 0 {
		if err := catalog.CheckCoverage(n); err != nil {
			return nil, err
		}
	}
	return &Service{
		classifier: classifier,
		catalog:    catalog,
		index:      index,
		topK:       cfg.Search.TopK,
		threshold:  cfg.Search.ScoreThreshold,
		workers:    cfg.Workers,
		logger:     logger,
	}, nil
}

// LoadService loads every artifact named by cfg. A missing vector store is
// logged and tolerated; any other load failure is returned.
func LoadService(cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	catalog, err := LoadLabelCatalog(filepath.Join(cfg.Model.Dir, LabelMappingFile))
	if err != nil {
		return nil, err
	}
	logger.Info("label catalog loaded", zap.Int("labels", catalog.Size()))

	index, err := LoadVectorStore(cfg.VectorStore.Path)
	switch {
	case errors.Is(err, ErrOptionalArtifactMissing):
		logger.Warn("similarity search disabled", zap.Error(err))
		index = nil
	case err != nil:
		return nil, err
	default:
		logger.Info("vector store loaded",
			zap.String("path", cfg.VectorStore.Path),
			zap.Int("rows", index.Size()),
			zap.Int("vocabulary", index.VocabularySize()))
	}

	ort, err := NewOrtClassifier(cfg.Model, logger)
	if err != nil {
		return nil, err
	}
	classifier, err := NewCachedClassifier(ort, cfg.Cache.Dir, logger)
	if err != nil {
		ort.Close()
		return nil, err
	}
	svc, err := NewService(classifier, catalog, index, cfg, logger)
	if err != nil {
		classifier.Close()
		return nil, err
	}
	return svc, nil
}

// Close releases classifier resources.
func (s *Service) Close() error {
	if s.classifier != nil {
		return s.classifier.Close()
	}
	return nil
}

// Info reports what the service has loaded.
func (s *Service) Info() Info {
	return Info{
		ModelID:          s.classifier.ModelID(),
		Labels:           s.catalog.Size(),
		IndexedQuestions: s.index.Size(),
		Vocabulary:       s.index.VocabularySize(),
	}
}

// Catalog returns the loaded label catalog.
func (s *Service) Catalog() *LabelCatalog {
	return s.catalog
}

// HasIndex reports whether similarity search is available.
func (s *Service) HasIndex() bool {
	return s.index != nil
}

// Predict answers a single question. topK <= 0 uses the configured default.
func (s *Service) Predict(ctx context.Context, text string, topK int) (GeneratedAnswer, error) {
	if topK <= 0 {
		topK = s.topK
	}
	probs, err := s.classifier.Classify(ctx, NormalizeText(text))
	if err != nil {
		return GeneratedAnswer{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(probs) == 0 {
		return GeneratedAnswer{}, fmt.Errorf("%w: empty distribution", ErrInference)
	}
	best, confidence := argmax(probs)
	entry, err := s.catalog.Resolve(best)
	if err != nil {
		return GeneratedAnswer{}, err
	}

	similar := make([]string, 0, min(topK, s.index.Size()))
	links := newLinkSet(entry.SuggestedLinks)
	if s.index != nil {
		for _, hit := range s.index.Search(text, topK, s.threshold) {
			if hit.Question != "" {
				similar = append(similar, hit.Question)
			}
			links.add(hit.SuggestedLinks...)
		}
	}
	s.logger.Debug("prediction",
		zap.Int("label", best),
		zap.Float32("confidence", confidence),
		zap.Int("similar", len(similar)))

	return GeneratedAnswer{
		Text:             entry.Answer,
		Category:         entry.Category,
		Subcategory:      entry.Subcategory,
		Confidence:       confidence,
		SimilarQuestions: similar,
		SuggestedLinks:   links.items,
	}, nil
}

// PredictAll answers texts on a bounded worker pool and returns results in
// input order. The first failure is returned.
func (s *Service) PredictAll(ctx context.Context, texts []string) ([]GeneratedAnswer, error) {
	out := make([]GeneratedAnswer, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			answer, err := s.Predict(ctx, text, s.topK)
			if err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("question %d: %w", i+1, err) })
				return
			}
			out[i] = answer
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() { firstErr = fmt.Errorf("submit question %d: %w", i+1, submitErr) })
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	s.logger.Info("batch answered", zap.Int("questions", len(texts)))
	return out, nil
}

// linkSet keeps links unique in first-seen order.
type linkSet struct {
	items []string
	seen  map[string]struct{}
}

func newLinkSet(seed []string) *linkSet {
	ls := &linkSet{items: make([]string, 0, len(seed)), seen: make(map[string]struct{}, len(seed))}
	ls.add(seed...)
	return ls
}

func (ls *linkSet) add(links ...string) {
	for _, l := range links {
		if _, ok := ls.seen[l]; ok {
			continue
		}
		ls.seen[l] = struct{}{}
		ls.items = append(ls.items, l)
	}
}
