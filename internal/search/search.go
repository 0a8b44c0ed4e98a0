// Package search implements the Search Coordinator (§4.F): two BM25
// indices over file contents and symbols, graph-boosted code ranking,
// snippet extraction, and a Levenshtein fuzzy fallback for symbol
// lookups that otherwise return nothing.
package search

import (
	"bufio"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/repoindex/internal/bm25"
	"github.com/standardbeagle/repoindex/internal/debug"
	"github.com/standardbeagle/repoindex/internal/graph"
	"github.com/standardbeagle/repoindex/internal/types"
)

const snippetLines = 5

const maxFuzzySuggestions = 3

// Coordinator maintains codeIndex/symbolIndex BM25 indices and the
// dependentCounts table used for graph-boosted code ranking, per §4.F.
type Coordinator struct {
	mu sync.RWMutex

	codeIndex   *bm25.Index
	symbolIndex *bm25.Index

	// symbols maps symbol id -> Symbol, kept alongside symbolIndex so
	// results can be rehydrated with name/kind/path/line.
	symbols map[string]types.Symbol
	// fileContents holds each file's content for snippet extraction; it
	// is replaced by UpdateFile and dropped by RemoveFile.
	fileContents map[string]string

	dependentCounts map[string]int
}

// New returns an empty Search Coordinator.
func New() *Coordinator {
	return &Coordinator{
		codeIndex:       bm25.NewIndex(),
		symbolIndex:     bm25.NewIndex(),
		symbols:         make(map[string]types.Symbol),
		fileContents:    make(map[string]string),
		dependentCounts: make(map[string]int),
	}
}

// RefreshDependentCounts rebuilds the dependentCounts table from the
// dependency graph's in-degree, per §4.F ("rebuilt from the graph on
// demand").
func (c *Coordinator) RefreshDependentCounts(g *graph.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependentCounts = make(map[string]int)
	for _, path := range g.AllPaths() {
		c.dependentCounts[path] = g.InDegree(path)
	}
}

// UpdateFile incrementally re-indexes a file's contents and the symbols
// it produces, replacing any prior documents for that path.
func (c *Coordinator) UpdateFile(path, content string, symbols []types.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.codeIndex.Add(path, content)
	c.fileContents[path] = content

	for id, sym := range c.symbols {
		if sym.FilePath == path {
			c.symbolIndex.Remove(id)
			delete(c.symbols, id)
		}
	}
	for _, sym := range symbols {
		c.symbolIndex.Add(sym.ID, sym.Name+" "+sym.Kind+" "+sym.FilePath)
		c.symbols[sym.ID] = sym
	}
}

// RemoveFile drops a file's code document and every symbol document it
// produced.
func (c *Coordinator) RemoveFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.codeIndex.Remove(path)
	delete(c.fileContents, path)
	for id, sym := range c.symbols {
		if sym.FilePath == path {
			c.symbolIndex.Remove(id)
			delete(c.symbols, id)
		}
	}
}

// SearchCode retrieves the top 2*limit documents from codeIndex, rescales
// each score by the graph-boost factor 1 + 0.1*ln(1+dependentCount), and
// returns the top limit results with a snippet, per §4.F.
func (c *Coordinator) SearchCode(query string, limit int) []types.SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		return nil
	}

	hits := c.codeIndex.Query(query, 2*limit)
	boosted := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		boost := 1 + 0.1*math.Log(1+float64(c.dependentCounts[h.ID]))
		boosted = append(boosted, types.SearchResult{
			FilePath: h.ID,
			Score:    h.Score * boost,
			Snippet:  firstLines(c.fileContents[h.ID], snippetLines),
		})
	}

	sort.Slice(boosted, func(i, j int) bool {
		if boosted[i].Score != boosted[j].Score {
			return boosted[i].Score > boosted[j].Score
		}
		return boosted[i].FilePath < boosted[j].FilePath
	})

	if len(boosted) > limit {
		boosted = boosted[:limit]
	}
	return boosted
}

// SearchSymbols queries symbolIndex directly (graph-boost applies only
// to code search, per the Open Question decision). When the primary
// query returns no hits, it falls back to the BM25 stemmed-alias index,
// and if that also returns nothing, proposes up to 3 Levenshtein-nearest
// symbol names as suggestions via go-edlib.
func (c *Coordinator) SearchSymbols(query string, limit int) (results []types.SearchResult, suggestions []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	hits := c.symbolIndex.Query(query, limit)
	if len(hits) == 0 {
		hits = c.symbolIndex.QueryStems(query, limit)
	}
	if len(hits) == 0 {
		return nil, c.fuzzySuggestions(query)
	}

	for _, h := range hits {
		sym, ok := c.symbols[h.ID]
		if !ok {
			continue
		}
		results = append(results, types.SearchResult{
			FilePath:   sym.FilePath,
			SymbolName: sym.Name,
			SymbolKind: sym.Kind,
			Score:      h.Score,
			Line:       sym.StartLine,
		})
	}
	return results, nil
}

func (c *Coordinator) fuzzySuggestions(query string) []string {
	type scored struct {
		name     string
		distance int
	}
	seen := make(map[string]bool)
	var candidates []scored
	for _, sym := range c.symbols {
		if seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true
		candidates = append(candidates, scored{name: sym.Name, distance: edlib.LevenshteinDistance(query, sym.Name)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})

	limit := maxFuzzySuggestions
	if len(candidates) < limit {
		limit = len(candidates)
	}
	suggestions := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		suggestions = append(suggestions, candidates[i].name)
	}
	debug.LogSearch("symbol query %q returned no hits, proposing %d fuzzy suggestion(s)", query, len(suggestions))
	return suggestions
}

func firstLines(content string, n int) string {
	if content == "" {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(content))
	var lines []string
	for i := 0; i < n && scanner.Scan(); i++ {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "\n")
}
