package store

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// denseIndex wraps a coder/hnsw graph (cosine distance) to give a candidate
// rank for dense search; the returned score is always recomputed from the
// stored vector with denseScore (see Collection.Search), so the graph's
// approximate distance never leaks into a returned score.
type denseIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func newDenseIndex() *denseIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	return &denseIndex{
		graph:  g,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func (d *denseIndex) add(id string, vec []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key, exists := d.idMap[id]; exists {
		// Lazy delete: orphan the old key rather than mutating the graph,
		// which coder/hnsw cannot always do safely for the last node.
		delete(d.keyMap, key)
		delete(d.idMap, id)
	}

	key := d.nextKey
	d.nextKey++
	d.graph.Add(hnsw.MakeNode(key, vec))
	d.idMap[id] = key
	d.keyMap[key] = id
}

func (d *denseIndex) delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if key, exists := d.idMap[id]; exists {
		delete(d.keyMap, key)
		delete(d.idMap, id)
	}
}

// candidates returns up to k candidate ids for query, ranked by the graph's
// approximate distance. Ids whose key has been lazily deleted are skipped.
func (d *denseIndex) candidates(query []float32, k int) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.graph.Len() == 0 {
		return nil
	}
	nodes := d.graph.Search(query, k)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if id, ok := d.keyMap[n.Key]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (d *denseIndex) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.idMap)
}

// l2Distance returns the Euclidean distance between a and b.
func l2Distance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// denseScore maps a dense/query vector pair to 1/(1+L2 distance), always in
// (0, 1]. For unit-length vectors it orders results the same way as cosine
// similarity; for vectors of differing length it need not.
func denseScore(query, doc []float32) float64 {
	return 1 / (1 + l2Distance(query, doc))
}
