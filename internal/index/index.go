// Package index implements a flat inner-product vector index with parallel
// per-chunk metadata and file persistence. Vectors are stored L2-normalized,
// so inner product against a normalized query equals cosine similarity.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/seanblong/videoseek/pkg/models"
)

var (
	// ErrCountMismatch is returned by Add when the vector and entry slices
	// have different lengths. The index is not mutated.
	ErrCountMismatch = errors.New("index: vector and entry counts differ")

	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

	// ErrInconsistentState is returned at load time when the persisted
	// artifacts cannot be reconciled (one artifact missing, or vector and
	// metadata counts differ). The index refuses to serve in that state.
	ErrInconsistentState = errors.New("index: inconsistent persisted state")
)

// Index is an in-process append-only vector index. Entry i of entries always
// describes vector i. A single logical writer is assumed; the lock makes
// concurrent readers safe alongside that writer.
type Index struct {
	mu       sync.RWMutex
	dim      int
	path     string // vector artifact; empty disables persistence
	metaPath string
	vectors  [][]float32
	entries  []models.IndexEntry
}

// New creates an index of the given dimension backed by indexFile. If both
// the vector artifact and its metadata sidecar exist, the persisted state is
// loaded; if exactly one exists, New fails with ErrInconsistentState. An
// empty indexFile yields a purely in-memory index.
func New(dim int, indexFile string) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: invalid dimension %d", dim)
	}
	ix := &Index{
		dim:  dim,
		path: indexFile,
	}
	if indexFile != "" {
		ix.metaPath = MetadataPath(indexFile)
		if err := ix.load(); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Dim returns the vector dimension the index was created with.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Add normalizes and appends vectors with their entries in lock-step,
// assigns each entry a globally increasing ChunkIndex, and persists the
// updated index. Arguments are validated before any mutation; if
// persistence fails the in-memory append is rolled back, so a failed Add
// leaves neither memory nor disk changed. The annotated entries are
// returned in input order.
func (ix *Index) Add(vectors [][]float32, entries []models.IndexEntry) ([]models.IndexEntry, error) {
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("%w: %d vectors, %d entries", ErrCountMismatch, len(vectors), len(entries))
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), ix.dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev := len(ix.entries)
	added := make([]models.IndexEntry, len(entries))
	for i, v := range vectors {
		ix.vectors = append(ix.vectors, normalized(v))
		e := entries[i]
		e.ChunkIndex = prev + i
		ix.entries = append(ix.entries, e)
		added[i] = e
	}

	if ix.path != "" {
		if err := ix.save(); err != nil {
			ix.vectors = ix.vectors[:prev]
			ix.entries = ix.entries[:prev]
			return nil, fmt.Errorf("index: persist: %w", err)
		}
	}
	return added, nil
}

// Search scores every stored vector against the normalized query and returns
// the k best entries in descending score order. Ties keep insertion order.
// k larger than the index returns everything; an empty index returns nil.
func (ix *Index) Search(query []float32, k int) ([]models.SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalized(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = dot(q, v)
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]models.SearchResult, 0, k)
	for _, i := range order[:k] {
		results = append(results, models.SearchResult{Entry: ix.entries[i], Score: scores[i]})
	}
	return results, nil
}

// Videos returns the distinct video paths in the index, in first-seen order.
func (ix *Index) Videos() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]bool, 8)
	var out []string
	for _, e := range ix.entries {
		if !seen[e.VideoPath] {
			seen[e.VideoPath] = true
			out = append(out, e.VideoPath)
		}
	}
	return out
}

// normalized returns a unit-norm copy of v. A zero vector has no direction
// and is returned as a zero copy.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / norm
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
