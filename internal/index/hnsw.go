package index

import (
	"container/heap"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// HNSWConfig tunes the approximate graph backend. Zero values fall back to defaults.
type HNSWConfig struct {
	M              int   `yaml:"m"`
	EfConstruction int   `yaml:"ef_construction"`
	EfSearch       int   `yaml:"ef_search"`
	Seed           int64 `yaml:"seed"`
}

const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch       = 50
)

func (c HNSWConfig) withDefaults() HNSWConfig {
	if c.M < 2 {
		c.M = defaultM
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = defaultEfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = defaultEfSearch
	}
	return c
}

type hnswNode struct {
	mu    sync.Mutex
	links [][]int32
}

// HNSW is a hierarchical navigable small-world graph over the prepared rows.
// The graph is built once in NewHNSW and only read afterwards.
type HNSW struct {
	*space
	cfg     HNSWConfig
	workers int

	nodes  []hnswNode
	levels []int

	mu       sync.Mutex
	entry    int32
	maxLevel int
}

// NewHNSW validates embeddings and builds the graph using up to threads insertion workers.
// threads <= 0 uses every available CPU.
func NewHNSW(embeddings *mat.Dense, distance Distance, cfg HNSWConfig, threads int) (*HNSW, error) {
	sp, err := prepare(embeddings, distance)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	h := &HNSW{
		space:   sp,
		cfg:     cfg,
		workers: workerCount(threads),
	}
	h.build()
	return h, nil
}

func workerCount(threads int) int {
	if threads <= 0 {
		return runtime.NumCPU()
	}
	return threads
}

func (h *HNSW) build() {
	n := len(h.rows)
	rng := rand.New(rand.NewSource(h.cfg.Seed))
	levelMult := 1 / math.Log(float64(h.cfg.M))

	h.levels = make([]int, n)
	h.nodes = make([]hnswNode, n)
	for i := range h.levels {
		level := int(math.Floor(-math.Log(1-rng.Float64()) * levelMult))
		h.levels[i] = level
		h.nodes[i].links = make([][]int32, level+1)
	}
	h.entry = 0
	h.maxLevel = h.levels[0]

	g := new(errgroup.Group)
	g.SetLimit(h.workers)
	for i := 1; i < n; i++ {
		id := int32(i)
		g.Go(func() error {
			h.insert(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *HNSW) measure(a, b []float32) float64 {
	if h.distance == InnerProduct {
		return 1 - float64(vek32.Dot(a, b))
	}
	d := float64(vek32.Distance(a, b))
	return d * d
}

func (h *HNSW) maxConn(level int) int {
	if level == 0 {
		return h.cfg.M * 2
	}
	return h.cfg.M
}

// insert links id into every layer up to its drawn level. A node that raises the
// graph's top level keeps the graph lock for its whole insertion.
func (h *HNSW) insert(id int32) {
	level := h.levels[id]

	h.mu.Lock()
	ep, top := h.entry, h.maxLevel
	promote := level > top
	if !promote {
		h.mu.Unlock()
	}

	q := h.rows[id]
	cur := candidate{id: ep, distance: h.measure(q, h.rows[ep])}
	for lc := top; lc > level; lc-- {
		cur = h.greedy(q, cur, lc)
	}

	for lc := min(level, top); lc >= 0; lc-- {
		found := h.searchLayer(q, cur, h.cfg.EfConstruction, lc)
		neighbors := make([]int32, 0, h.cfg.M)
		for _, c := range found {
			if c.id == id {
				continue
			}
			neighbors = append(neighbors, c.id)
			if len(neighbors) == h.cfg.M {
				break
			}
		}
		h.setLinks(id, lc, neighbors)
		for _, nb := range neighbors {
			h.link(nb, id, lc)
		}
		if len(found) > 0 {
			cur = found[0]
		}
	}

	if promote {
		h.entry = id
		h.maxLevel = level
		h.mu.Unlock()
	}
}

func (h *HNSW) setLinks(id int32, level int, neighbors []int32) {
	node := &h.nodes[id]
	node.mu.Lock()
	node.links[level] = neighbors
	node.mu.Unlock()
}

// link adds to as a neighbor of from, pruning from's list to the closest maxConn entries.
func (h *HNSW) link(from, to int32, level int) {
	node := &h.nodes[from]
	node.mu.Lock()
	defer node.mu.Unlock()

	if level >= len(node.links) {
		return
	}
	links := append(node.links[level], to)
	limit := h.maxConn(level)
	if len(links) > limit {
		base := h.rows[from]
		ranked := make([]candidate, len(links))
		for i, nb := range links {
			ranked[i] = candidate{id: nb, distance: h.measure(base, h.rows[nb])}
		}
		sortCandidates(ranked)
		links = links[:0]
		for _, c := range ranked[:limit] {
			links = append(links, c.id)
		}
	}
	node.links[level] = links
}

func (h *HNSW) neighbors(id int32, level int) []int32 {
	node := &h.nodes[id]
	node.mu.Lock()
	defer node.mu.Unlock()
	if level >= len(node.links) {
		return nil
	}
	return append([]int32(nil), node.links[level]...)
}

func (h *HNSW) greedy(q []float32, cur candidate, level int) candidate {
	for changed := true; changed; {
		changed = false
		for _, nb := range h.neighbors(cur.id, level) {
			if d := h.measure(q, h.rows[nb]); d < cur.distance {
				cur = candidate{id: nb, distance: d}
				changed = true
			}
		}
	}
	return cur
}

type candidate struct {
	id       int32
	distance float64
}

// candidateMinHeap pops the closest candidate first.
type candidateMinHeap []candidate

func (h candidateMinHeap) Len() int           { return len(h) }
func (h candidateMinHeap) Less(i, j int) bool { return h[i].distance < h[j].distance }
func (h candidateMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateMinHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// candidateMaxHeap pops the furthest candidate first.
type candidateMaxHeap []candidate

func (h candidateMaxHeap) Len() int           { return len(h) }
func (h candidateMaxHeap) Less(i, j int) bool { return h[i].distance > h[j].distance }
func (h candidateMaxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateMaxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// searchLayer is a beam search of width ef on one layer. Results are sorted closest first.
func (h *HNSW) searchLayer(q []float32, ep candidate, ef, level int) []candidate {
	visited := map[int32]struct{}{ep.id: {}}
	candidates := &candidateMinHeap{ep}
	results := &candidateMaxHeap{ep}

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(candidate)
		if closest.distance > (*results)[0].distance && results.Len() >= ef {
			break
		}
		for _, nb := range h.neighbors(closest.id, level) {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			d := h.measure(q, h.rows[nb])
			if results.Len() < ef || d < (*results)[0].distance {
				heap.Push(candidates, candidate{id: nb, distance: d})
				heap.Push(results, candidate{id: nb, distance: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

func (h *HNSW) knn(q []float32, k int) []candidate {
	h.mu.Lock()
	ep, top := h.entry, h.maxLevel
	h.mu.Unlock()

	cur := candidate{id: ep, distance: h.measure(q, h.rows[ep])}
	for lc := top; lc > 0; lc-- {
		cur = h.greedy(q, cur, lc)
	}
	found := h.searchLayer(q, cur, max(h.cfg.EfSearch, k), 0)
	if len(found) < k {
		found = h.fill(q, found, k)
	}
	return found[:k]
}

// fill tops up a short beam result with the closest rows it did not reach.
func (h *HNSW) fill(q []float32, found []candidate, k int) []candidate {
	seen := make(map[int32]struct{}, len(found))
	for _, c := range found {
		seen[c.id] = struct{}{}
	}
	for i, row := range h.rows {
		if _, ok := seen[int32(i)]; ok {
			continue
		}
		found = append(found, candidate{id: int32(i), distance: h.measure(q, row)})
	}
	sortCandidates(found)
	return found[:k]
}

// Search returns the k approximate nearest rows for every query.
func (h *HNSW) Search(queries [][]float64, k int) (SearchResult, error) {
	if err := h.validateQuery(queries, k); err != nil {
		return SearchResult{}, err
	}
	return searchAll(queries, k, h.workers, h.knn), nil
}

func sortCandidates(c []candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].distance != c[j].distance {
			return c[i].distance < c[j].distance
		}
		return c[i].id < c[j].id
	})
}
