// Package store defines the persistence seam for indexed video chunks and
// provides two backends: the in-process flat index with file persistence
// (default) and Postgres with pgvector.
package store

import (
	"context"

	"github.com/seanblong/videoseek/pkg/models"
)

// QueryOpts carries optional search constraints.
type QueryOpts struct {
	// Video restricts results to entries whose video base filename equals
	// this value. Backends may apply it natively; the search service
	// re-applies it after the fact either way, so backends that cannot
	// filter may ignore it.
	Video string
}

// VideoStore is the contract shared by all chunk store backends.
type VideoStore interface {
	// AddChunks appends vectors and their entries in lock-step and returns
	// the entries annotated with their assigned chunk indices. Implementations
	// must reject a count mismatch before any mutation and must store
	// vectors L2-normalized.
	AddChunks(ctx context.Context, vectors [][]float32, entries []models.IndexEntry) ([]models.IndexEntry, error)

	// Search returns up to k entries ranked by descending similarity to
	// queryVec.
	Search(ctx context.Context, queryVec []float32, k int, opt QueryOpts) ([]models.SearchResult, error)

	// GetVideos lists the distinct video paths present in the store.
	GetVideos(ctx context.Context) ([]string, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close()
}
