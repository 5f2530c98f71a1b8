// Package search orchestrates query embedding, index search, and
// video-scoped post-filtering.
package search

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/videoseek/internal/ai"
	"github.com/seanblong/videoseek/internal/store"
	"github.com/seanblong/videoseek/pkg/models"
)

// overfetchFactor multiplies topK before the video filter runs, compensating
// for candidates the filter discards. A fixed factor cannot guarantee topK
// survivors when the filtered video is a small minority of the index; that
// under-fill is accepted rather than papered over with unbounded fetches.
const overfetchFactor = 2

// MaxTopK caps the number of results a single query may request.
const MaxTopK = 20

type Service struct {
	Client ai.Client
	Store  store.VideoStore
}

// NewService creates a new search service with the provided embedding client
// and store.
func NewService(client ai.Client, st store.VideoStore) *Service {
	return &Service{
		Client: client,
		Store:  st,
	}
}

// Query returns the topK chunks most similar to text, optionally restricted
// to the video whose base filename equals videoFilter. Failures on the query
// path degrade to an empty result with the reason logged; interactive
// callers get "no results" rather than an error page.
func (s *Service) Query(ctx context.Context, text string, topK int, videoFilter string) ([]models.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryVec, err := s.Client.Embed(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("query", text).Msg("query embedding failed, returning empty result")
		return nil, nil
	}

	candidates, err := s.Store.Search(ctx, queryVec, overfetchFactor*topK, store.QueryOpts{Video: videoFilter})
	if err != nil {
		return nil, err
	}

	// The store's ordering is authoritative; filtering must only drop
	// entries, never reshuffle.
	results := candidates[:0:0]
	for _, r := range candidates {
		if videoFilter != "" && filepath.Base(r.Entry.VideoPath) != videoFilter {
			continue
		}
		results = append(results, r)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	if videoFilter != "" && len(results) < topK {
		log.Debug().Str("video", videoFilter).Int("returned", len(results)).Int("requested", topK).
			Msg("video filter starved the candidate set")
	}
	return results, nil
}
