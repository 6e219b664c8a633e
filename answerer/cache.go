package answerer

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// CachedClassifier memoizes distributions in memory and, when a directory is
// configured, in a Badger store keyed by model id and text.
type CachedClassifier struct {
	inner    Classifier
	db       *badger.DB
	mu       sync.RWMutex
	memCache map[string][]float32
	logger   *zap.Logger
}

type badgerLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.s.Errorf(msg, items...) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.s.Warnf(msg, items...) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.s.Debugf(msg, items...) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.s.Debugf(msg, items...) }

// NewCachedClassifier wraps inner. An empty dir keeps the cache in memory only.
func NewCachedClassifier(inner Classifier, dir string, logger *zap.Logger) (*CachedClassifier, error) {
	if inner == nil {
		return nil, ErrClassifierRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CachedClassifier{
		inner:    inner,
		memCache: make(map[string][]float32),
		logger:   logger,
	}
	if dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c.db = db
	return c, nil
}

// Classify returns a cached distribution or delegates to the wrapped classifier.
func (c *CachedClassifier) Classify(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec := c.getFromCache(key); vec != nil {
		return vec, nil
	}
	if vec, err := c.loadFromDisk(key); err == nil {
		c.storeInMemory(key, vec)
		return cloneVector(vec), nil
	}
	vec, err := c.inner.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	c.storeInMemory(key, vec)
	if err := c.saveToDisk(key, vec); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return cloneVector(vec), nil
}

// NumLabels returns the wrapped classifier's label count.
func (c *CachedClassifier) NumLabels() int { return c.inner.NumLabels() }

// ModelID returns the wrapped classifier's model id.
func (c *CachedClassifier) ModelID() string { return c.inner.ModelID() }

// Close closes the disk cache and the wrapped classifier.
func (c *CachedClassifier) Close() error {
	c.mu.Lock()
	c.memCache = nil
	c.mu.Unlock()
	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	errs = append(errs, c.inner.Close())
	return errors.Join(errs...)
}

func (c *CachedClassifier) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.inner.ModelID())
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedClassifier) getFromCache(key string) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if vec, ok := c.memCache[key]; ok {
		return cloneVector(vec)
	}
	return nil
}

func (c *CachedClassifier) storeInMemory(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memCache != nil {
		c.memCache[key] = cloneVector(vec)
	}
}

func (c *CachedClassifier) loadFromDisk(key string) ([]float32, error) {
	if c.db == nil {
		return nil, os.ErrNotExist
	}
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec, err = decodeVector(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, os.ErrNotExist
	}
	return vec, err
}

func (c *CachedClassifier) saveToDisk(key string, vec []float32) error {
	if c.db == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeVector(vec))
	})
}

// encodeVector writes a little-endian length prefix followed by float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, errors.New("cache entry too small")
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, errors.New("cache entry length mismatch")
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}
