package answerer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// LabelMappingFile is the label metadata file name inside the model directory.
const LabelMappingFile = "label_mapping.json"

// LabelCatalog maps classifier output indices to answers. It is read-only
// after load.
type LabelCatalog struct {
	entries map[int]LabelEntry
}

type rawLabel struct {
	ID               *int     `json:"id"`
	Label            string   `json:"label"`
	Answer           string   `json:"answer"`
	Category         *string  `json:"category"`
	Subcategory      *string  `json:"subcategory"`
	Tags             []string `json:"tags"`
	QuestionExamples []string `json:"question_examples"`
	SuggestedLinks   []string `json:"suggested_links"`
}

// LoadLabelCatalog reads a label mapping document. Both {"labels": [...]}
// and a top-level array are accepted.
func LoadLabelCatalog(path string) (*LabelCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: label mapping %s", ErrMissingArtifact, path)
		}
		return nil, fmt.Errorf("read label mapping: %w", err)
	}
	raw, err := decodeLabels(data)
	if err != nil {
		return nil, fmt.Errorf("decode label mapping %s: %w", path, err)
	}
	entries := make([]LabelEntry, 0, len(raw))
	for i, r := range raw {
		if r.ID == nil {
			return nil, fmt.Errorf("label mapping entry %d has no id", i)
		}
		label := r.Label
		if label == "" {
			label = fmt.Sprintf("LABEL_%d", *r.ID)
		}
		entries = append(entries, LabelEntry{
			ID:               *r.ID,
			Label:            label,
			Answer:           r.Answer,
			Category:         r.Category,
			Subcategory:      r.Subcategory,
			Tags:             nonNil(r.Tags),
			QuestionExamples: nonNil(r.QuestionExamples),
			SuggestedLinks:   nonNil(r.SuggestedLinks),
		})
	}
	return NewLabelCatalog(entries)
}

func decodeLabels(data []byte) ([]rawLabel, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []rawLabel
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc struct {
		Labels []rawLabel `json:"labels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Labels == nil {
		return nil, errors.New(`missing "labels" array`)
	}
	return doc.Labels, nil
}

// NewLabelCatalog builds a catalog, rejecting negative or duplicate ids.
func NewLabelCatalog(entries []LabelEntry) (*LabelCatalog, error) {
	c := &LabelCatalog{entries: make(map[int]LabelEntry, len(entries))}
	for _, e := range entries {
		if e.ID < 0 {
			return nil, fmt.Errorf("label id %d is negative", e.ID)
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate label id %d", e.ID)
		}
		c.entries[e.ID] = e
	}
	return c, nil
}

// Resolve returns the entry for a classifier output index.
func (c *LabelCatalog) Resolve(index int) (LabelEntry, error) {
	e, ok := c.entries[index]
	if !ok {
		return LabelEntry{}, fmt.Errorf("%w: no label for index %d", ErrInconsistentCatalog, index)
	}
	e.Tags = cloneStrings(e.Tags)
	e.QuestionExamples = cloneStrings(e.QuestionExamples)
	e.SuggestedLinks = cloneStrings(e.SuggestedLinks)
	return e, nil
}

// Size returns the number of labels.
func (c *LabelCatalog) Size() int {
	return len(c.entries)
}

// IDs returns the label ids in ascending order.
func (c *LabelCatalog) IDs() []int {
	ids := make([]int, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CheckCoverage verifies that every index in [0, numLabels) resolves.
func (c *LabelCatalog) CheckCoverage(numLabels int) error {
	var missing []int
	for i := 0; i < numLabels; i++ {
		if _, ok := c.entries[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d classifier outputs have no label (first: %d)",
			ErrInconsistentCatalog, len(missing), numLabels, missing[0])
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
