// Package bm25 implements a code-aware tokenizer and an in-memory BM25
// inverted index, per spec §4.E.
package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/surgebase/porter2"
)

const (
	k1 = 1.5
	b  = 0.75
)

type document struct {
	id       string
	tokens   []string
	length   int
	freq     map[string]int
	stemFreq map[string]int
}

// Index is a BM25 inverted index over string document ids.
type Index struct {
	mu sync.RWMutex

	docs         map[string]*document
	invertedList map[string]map[string]bool // token -> set of doc ids
	docFrequency map[string]int
	totalLength  int

	// stemInvertedList/stemDocFrequency mirror invertedList/docFrequency
	// but are keyed by the Porter2 stem of each token, feeding a shadow
	// index the Search Coordinator consults only when the primary query
	// returns zero hits (see SPEC_FULL.md: stemmed alias search).
	stemInvertedList map[string]map[string]bool
	stemDocFrequency map[string]int
}

// NewIndex returns an empty BM25 index.
func NewIndex() *Index {
	return &Index{
		docs:             make(map[string]*document),
		invertedList:     make(map[string]map[string]bool),
		docFrequency:     make(map[string]int),
		stemInvertedList: make(map[string]map[string]bool),
		stemDocFrequency: make(map[string]int),
	}
}

// Add tokenizes text and indexes it under id, replacing any prior
// document at that id.
func (idx *Index) Add(id, text string) {
	idx.AddTokens(id, Tokenize(text))
}

// AddTokens indexes a pre-tokenized document under id.
func (idx *Index) AddTokens(id string, tokens []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[id]; exists {
		idx.removeLocked(id)
	}

	freq := make(map[string]int, len(tokens))
	stemFreq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
		stemFreq[porter2.Stem(t)]++
	}

	doc := &document{id: id, tokens: tokens, length: len(tokens), freq: freq, stemFreq: stemFreq}
	idx.docs[id] = doc
	idx.totalLength += doc.length

	for t := range freq {
		if idx.invertedList[t] == nil {
			idx.invertedList[t] = make(map[string]bool)
		}
		idx.invertedList[t][id] = true
		idx.docFrequency[t]++
	}
	for stem := range stemFreq {
		if idx.stemInvertedList[stem] == nil {
			idx.stemInvertedList[stem] = make(map[string]bool)
		}
		idx.stemInvertedList[stem][id] = true
		idx.stemDocFrequency[stem]++
	}
}

// Remove deletes the document at id, reporting whether one existed.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) bool {
	doc, ok := idx.docs[id]
	if !ok {
		return false
	}
	delete(idx.docs, id)
	idx.totalLength -= doc.length

	for t := range doc.freq {
		if set, ok := idx.invertedList[t]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.invertedList, t)
			}
		}
		idx.docFrequency[t]--
		if idx.docFrequency[t] <= 0 {
			delete(idx.docFrequency, t)
		}
	}
	for stem := range doc.stemFreq {
		if set, ok := idx.stemInvertedList[stem]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.stemInvertedList, stem)
			}
		}
		idx.stemDocFrequency[stem]--
		if idx.stemDocFrequency[stem] <= 0 {
			delete(idx.stemDocFrequency, stem)
		}
	}
	return true
}

// Size returns the number of indexed documents.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

func (idx *Index) avgDocLength() float64 {
	if len(idx.docs) == 0 {
		return 1
	}
	avg := float64(idx.totalLength) / float64(len(idx.docs))
	if avg < 1 {
		return 1
	}
	return avg
}

// Hit is a scored document returned by Query.
type Hit struct {
	ID    string
	Score float64
}

// Query tokenizes text and scores every matching document, returning the
// top limit hits sorted by score descending, document id ascending on
// ties, per spec §4.E.
func (idx *Index) Query(text string, limit int) []Hit {
	return idx.QueryTokens(Tokenize(text), limit)
}

// QueryTokens scores documents against a pre-tokenized query.
func (idx *Index) QueryTokens(queryTokens []string, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 || len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(idx.docs))
	avgLen := idx.avgDocLength()

	scores := make(map[string]float64)
	for _, t := range queryTokens {
		df := idx.docFrequency[t]
		if df == 0 {
			continue
		}
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for id := range idx.invertedList[t] {
			doc := idx.docs[id]
			tf := float64(doc.freq[t])
			if tf == 0 {
				continue
			}
			denom := tf + k1*(1-b+b*float64(doc.length)/avgLen)
			scores[id] += idf * (tf * (k1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// QueryStems scores documents by BM25 over Porter2 stems instead of raw
// tokens, for the fallback cascade the Search Coordinator uses when a
// primary QueryTokens call returns zero hits.
func (idx *Index) QueryStems(text string, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTokens := Tokenize(text)
	if len(idx.docs) == 0 || len(queryTokens) == 0 {
		return nil
	}

	queryStems := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		queryStems[porter2.Stem(t)] = true
	}

	n := float64(len(idx.docs))
	avgLen := idx.avgDocLength()

	scores := make(map[string]float64)
	for stem := range queryStems {
		df := idx.stemDocFrequency[stem]
		if df == 0 {
			continue
		}
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for id := range idx.stemInvertedList[stem] {
			doc := idx.docs[id]
			tf := float64(doc.stemFreq[stem])
			if tf == 0 {
				continue
			}
			denom := tf + k1*(1-b+b*float64(doc.length)/avgLen)
			scores[id] += idf * (tf * (k1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
