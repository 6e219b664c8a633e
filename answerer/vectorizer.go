package answerer

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// TermWeighting is a fitted TF-IDF model exported by the training job.
type TermWeighting struct {
	Vocabulary     map[string]int `json:"vocabulary"`
	IDF            []float64      `json:"idf"`
	NgramRange     [2]int         `json:"ngramRange"`
	SublinearTF    bool           `json:"sublinearTf"`
	Norm           string         `json:"norm"`
	MinTokenLength int            `json:"minTokenLength"`
}

// termWeight is one non-zero component of a sparse vector.
type termWeight struct {
	Col    int
	Weight float64
}

func (tw *TermWeighting) applyDefaults() {
	if tw.NgramRange == [2]int{} {
		tw.NgramRange = [2]int{1, 1}
	}
	if tw.MinTokenLength <= 0 {
		tw.MinTokenLength = 2
	}
}

func (tw *TermWeighting) validate() error {
	if len(tw.Vocabulary) == 0 {
		return errors.New("vectorizer vocabulary is empty")
	}
	if len(tw.IDF) != len(tw.Vocabulary) {
		return fmt.Errorf("vectorizer idf has %d entries for %d terms", len(tw.IDF), len(tw.Vocabulary))
	}
	if tw.NgramRange[0] < 1 || tw.NgramRange[1] < tw.NgramRange[0] {
		return fmt.Errorf("invalid ngram range %v", tw.NgramRange)
	}
	switch tw.Norm {
	case "", "l1", "l2":
	default:
		return fmt.Errorf("unsupported vector norm %q", tw.Norm)
	}
	for term, col := range tw.Vocabulary {
		if col < 0 || col >= len(tw.IDF) {
			return fmt.Errorf("term %q maps to column %d outside [0,%d)", term, col, len(tw.IDF))
		}
	}
	return nil
}

// Features returns the n-gram terms of a token sequence from Tokenize.
func (tw *TermWeighting) Features(words []string) []string {
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= tw.MinTokenLength {
			tokens = append(tokens, w)
		}
	}
	var out []string
	for n := tw.NgramRange[0]; n <= tw.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Transform maps tokens into the fitted vector space. Terms outside the
// vocabulary are ignored.
func (tw *TermWeighting) Transform(tokens []string) []termWeight {
	counts := make(map[int]float64)
	order := make([]int, 0)
	for _, term := range tw.Features(tokens) {
		col, ok := tw.Vocabulary[term]
		if !ok {
			continue
		}
		if _, seen := counts[col]; !seen {
			order = append(order, col)
		}
		counts[col]++
	}
	if len(order) == 0 {
		return nil
	}
	vec := make([]termWeight, len(order))
	for i, col := range order {
		tf := counts[col]
		if tw.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		vec[i] = termWeight{Col: col, Weight: tf * tw.IDF[col]}
	}
	normalizeWeights(vec, tw.Norm)
	return vec
}

func normalizeWeights(vec []termWeight, kind string) {
	var total float64
	switch kind {
	case "l2":
		for _, v := range vec {
			total += v.Weight * v.Weight
		}
		total = math.Sqrt(total)
	case "l1":
		for _, v := range vec {
			total += math.Abs(v.Weight)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range vec {
		vec[i].Weight /= total
	}
}
