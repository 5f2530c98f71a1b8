package store

import (
	"context"

	"github.com/seanblong/videoseek/internal/index"
	"github.com/seanblong/videoseek/pkg/models"
)

// FileStore backs the VideoStore contract with the in-process flat index,
// persisted to the configured index file on every add.
type FileStore struct {
	ix *index.Index
}

// NewFileStore opens (or creates) an index of the given dimension at
// indexFile. Inconsistent on-disk state fails here rather than at first
// search.
func NewFileStore(dim int, indexFile string) (*FileStore, error) {
	ix, err := index.New(dim, indexFile)
	if err != nil {
		return nil, err
	}
	return &FileStore{ix: ix}, nil
}

func (s *FileStore) AddChunks(_ context.Context, vectors [][]float32, entries []models.IndexEntry) ([]models.IndexEntry, error) {
	return s.ix.Add(vectors, entries)
}

// Search returns the raw top k by similarity. The video constraint in opt is
// left to the search service's post-filtering pass.
func (s *FileStore) Search(_ context.Context, queryVec []float32, k int, _ QueryOpts) ([]models.SearchResult, error) {
	return s.ix.Search(queryVec, k)
}

func (s *FileStore) GetVideos(_ context.Context) ([]string, error) {
	return s.ix.Videos(), nil
}

func (s *FileStore) Count(_ context.Context) (int, error) {
	return s.ix.Len(), nil
}

func (s *FileStore) Close() {}
