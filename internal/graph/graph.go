// Package graph implements the dependency multigraph and its traversal
// queries, per spec §4.G. Nodes are addressed by an arena index
// (NodeID) rather than by pointer, per SPEC_FULL.md's REDESIGN FLAGS:
// callers never hold a pointer into the arena across a mutation.
package graph

import (
	"sort"
	"sync"

	repoerrors "github.com/standardbeagle/repoindex/internal/errors"
	"github.com/standardbeagle/repoindex/internal/types"
)

// NodeID is an arena index; it is stable for the lifetime of a node
// (nodes are never removed), so it is safe to cache.
type NodeID uint32

// Edge is one outgoing multigraph edge.
type Edge struct {
	To   NodeID
	Kind types.EdgeKind
}

// Graph is a directed multigraph over file paths. One writer (the
// indexer rebuilding edges from a scan), many readers (queries), under
// an RWMutex.
type Graph struct {
	mu sync.RWMutex

	pathToID map[string]NodeID
	idToPath []string // arena; index is the NodeID

	out [][]Edge // out[id] = outgoing edges from id
	in  [][]Edge // in[id] = incoming edges to id (Kind is the edge's kind, To points back at the source)
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{pathToID: make(map[string]NodeID)}
}

// NodeID returns the arena id for path, creating one if it does not yet
// exist.
func (g *Graph) NodeID(path string) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodeIDLocked(path)
}

func (g *Graph) nodeIDLocked(path string) NodeID {
	if id, ok := g.pathToID[path]; ok {
		return id
	}
	id := NodeID(len(g.idToPath))
	g.pathToID[path] = id
	g.idToPath = append(g.idToPath, path)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return id
}

// Path returns the path for id, or ("", false) if id is out of range.
func (g *Graph) Path(id NodeID) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(id) >= len(g.idToPath) {
		return "", false
	}
	return g.idToPath[id], true
}

// AddEdge records a from->to edge of the given kind, creating either
// endpoint's node if necessary.
func (g *Graph) AddEdge(from, to string, kind types.EdgeKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := g.nodeIDLocked(from)
	t := g.nodeIDLocked(to)
	g.out[f] = append(g.out[f], Edge{To: t, Kind: kind})
	g.in[t] = append(g.in[t], Edge{To: f, Kind: kind})
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idToPath)
}

// EdgeCount returns the number of directed edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// AllPaths returns every node's path, in arena insertion order. Used by
// the Search Coordinator to rebuild its dependentCounts table from the
// graph's in-degree.
func (g *Graph) AllPaths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	paths := make([]string, len(g.idToPath))
	copy(paths, g.idToPath)
	return paths
}

// InDegree returns the number of incoming edges at path, or 0 if path is
// not a node.
func (g *Graph) InDegree(path string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return 0
	}
	return len(g.in[id])
}

// OutDegree returns the number of outgoing edges at path, or 0 if path
// is not a node.
func (g *Graph) OutDegree(path string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return 0
	}
	return len(g.out[id])
}

// DependenciesOf returns the direct (depth-1) set of nodes f points to.
func (g *Graph) DependenciesOf(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return nil
	}
	seen := map[NodeID]bool{}
	var out []string
	for _, e := range g.out[id] {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, g.idToPath[e.To])
		}
	}
	sort.Strings(out)
	return out
}

// DependentsOf returns the direct (depth-1) set of nodes that point to f.
func (g *Graph) DependentsOf(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return nil
	}
	seen := map[NodeID]bool{}
	var out []string
	for _, e := range g.in[id] {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, g.idToPath[e.To])
		}
	}
	sort.Strings(out)
	return out
}

// DependenciesOfDepth returns the full BFS reachability set along
// outgoing edges up to maxDepth, excluding f itself.
func (g *Graph) DependenciesOfDepth(path string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return nil
	}
	visited := g.bfsLocked(id, maxDepth, true)
	return g.idsToSortedPaths(visited, id)
}

// DependentsOfDepth returns the full BFS reachability set along incoming
// edges up to maxDepth, excluding f itself.
func (g *Graph) DependentsOfDepth(path string, maxDepth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[path]
	if !ok {
		return nil
	}
	visited := g.bfsLocked(id, maxDepth, false)
	return g.idsToSortedPaths(visited, id)
}

// ImpactEntry is one node reached by ImpactOf, with its BFS distance
// from the origin.
type ImpactEntry struct {
	Path     string
	Distance int
}

// ImpactOf performs a bounded BFS on outgoing edges up to maxDepth
// (default 5) and returns every reachable node with its distance,
// excluding the origin. Used to estimate the blast radius of a change.
func (g *Graph) ImpactOf(path string, maxDepth int) []ImpactEntry {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.pathToID[path]
	if !ok {
		return nil
	}

	distances := map[NodeID]int{id: 0}
	queue := []NodeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := distances[cur]
		if d >= maxDepth {
			continue
		}
		for _, e := range g.out[cur] {
			if _, seen := distances[e.To]; !seen {
				distances[e.To] = d + 1
				queue = append(queue, e.To)
			}
		}
	}

	entries := make([]ImpactEntry, 0, len(distances)-1)
	for nid, d := range distances {
		if nid == id {
			continue
		}
		entries = append(entries, ImpactEntry{Path: g.idToPath[nid], Distance: d})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Distance != entries[j].Distance {
			return entries[i].Distance < entries[j].Distance
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}

func (g *Graph) bfsLocked(start NodeID, maxDepth int, outgoing bool) map[NodeID]int {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	distances := map[NodeID]int{start: 0}
	queue := []NodeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := distances[cur]
		if d >= maxDepth {
			continue
		}
		edges := g.out[cur]
		if !outgoing {
			edges = g.in[cur]
		}
		for _, e := range edges {
			if _, seen := distances[e.To]; !seen {
				distances[e.To] = d + 1
				queue = append(queue, e.To)
			}
		}
	}
	return distances
}

func (g *Graph) idsToSortedPaths(ids map[NodeID]int, exclude NodeID) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		if id == exclude {
			continue
		}
		out = append(out, g.idToPath[id])
	}
	sort.Strings(out)
	return out
}

// Cycle is one detected cycle, canonically rotated to start at its
// lexicographically smallest path.
type Cycle struct {
	Path []string
}

// FindCycles runs a three-color DFS over the whole graph and returns
// every distinct cycle, deduplicated by canonical rotation.
func (g *Graph) FindCycles() []Cycle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.idToPath))
	var stack []NodeID
	onStack := make([]bool, len(g.idToPath))
	seen := make(map[string]bool)
	var cycles []Cycle

	var dfs func(u NodeID)
	dfs = func(u NodeID) {
		color[u] = gray
		onStack[u] = true
		stack = append(stack, u)

		for _, e := range g.out[u] {
			v := e.To
			switch color[v] {
			case white:
				dfs(v)
			case gray:
				idx := -1
				for i, n := range stack {
					if n == v {
						idx = i
						break
					}
				}
				if idx >= 0 {
					raw := append([]NodeID(nil), stack[idx:]...)
					canon := canonicalRotation(raw, g.idToPath)
					key := cycleKey(canon, g.idToPath)
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, Cycle{Path: idsToPaths(canon, g.idToPath)})
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[u] = false
		color[u] = black
	}

	for id := range g.idToPath {
		if color[id] == white {
			dfs(NodeID(id))
		}
	}
	return cycles
}

func canonicalRotation(cycle []NodeID, paths []string) []NodeID {
	if len(cycle) == 0 {
		return cycle
	}
	minIdx := 0
	for i, n := range cycle {
		if paths[n] < paths[cycle[minIdx]] {
			minIdx = i
		}
	}
	rotated := make([]NodeID, len(cycle))
	for i := range cycle {
		rotated[i] = cycle[(minIdx+i)%len(cycle)]
	}
	return rotated
}

func cycleKey(cycle []NodeID, paths []string) string {
	s := ""
	for _, n := range cycle {
		s += paths[n] + ">"
	}
	return s
}

func idsToPaths(ids []NodeID, paths []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = paths[id]
	}
	return out
}

// HubFile ranks a node by combined degree.
type HubFile struct {
	Path   string
	Degree int
}

// HubFiles returns the top limit nodes ranked by inDegree+outDegree
// descending, path ascending on ties.
func (g *Graph) HubFiles(limit int) []HubFile {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hubs := make([]HubFile, 0, len(g.idToPath))
	for id, path := range g.idToPath {
		degree := len(g.in[id]) + len(g.out[id])
		hubs = append(hubs, HubFile{Path: path, Degree: degree})
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Degree != hubs[j].Degree {
			return hubs[i].Degree > hubs[j].Degree
		}
		return hubs[i].Path < hubs[j].Path
	})
	if limit > 0 && len(hubs) > limit {
		hubs = hubs[:limit]
	}
	return hubs
}

// OrphanFiles returns every node with inDegree == 0 and outDegree == 0.
func (g *Graph) OrphanFiles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for id, path := range g.idToPath {
		if len(g.in[id]) == 0 && len(g.out[id]) == 0 {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// Stats is the graph's summary statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	CycleCount int
	HubCount   int
	OrphanCount int
}

// Stats computes the graph's summary statistics. hubThreshold is the
// minimum combined degree counted toward HubCount.
func (g *Graph) Stats(hubThreshold int) Stats {
	nodeCount := g.NodeCount()
	edgeCount := g.EdgeCount()
	cycles := g.FindCycles()
	orphans := g.OrphanFiles()

	hubCount := 0
	g.mu.RLock()
	for id := range g.idToPath {
		if len(g.in[id])+len(g.out[id]) >= hubThreshold {
			hubCount++
		}
	}
	g.mu.RUnlock()

	return Stats{
		NodeCount:   nodeCount,
		EdgeCount:   edgeCount,
		CycleCount:  len(cycles),
		HubCount:    hubCount,
		OrphanCount: len(orphans),
	}
}

// CheckInvariants reports, but does not enforce, referential integrity
// violations: every edge endpoint must resolve to a valid node. Given
// this graph only ever mints nodes via nodeIDLocked, a violation here
// indicates a programmer error in a caller that constructed edges by
// hand, not untrusted input.
func (g *Graph) CheckInvariants() []error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	n := len(g.idToPath)
	for from, edges := range g.out {
		for _, e := range edges {
			if int(e.To) >= n {
				errs = append(errs, repoerrors.NewInvariantError(
					"graph-referential-integrity",
					"edge references node outside arena bounds"))
				continue
			}
			_ = from
		}
	}
	return errs
}
