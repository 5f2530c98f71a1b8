package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/seanblong/videoseek/pkg/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	indexFile := filepath.Join(t.TempDir(), "video_index.faiss")

	s, err := NewFileStore(3, indexFile)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer s.Close()

	added, err := s.AddChunks(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}, []models.IndexEntry{
		{VideoPath: "/media/a.mp4", Start: 0, End: 30, Text: "one"},
		{VideoPath: "/media/b.mp4", Start: 0, End: 30, Text: "two"},
	})
	if err != nil {
		t.Fatalf("AddChunks: %v", err)
	}
	if len(added) != 2 || added[0].ChunkIndex != 0 || added[1].ChunkIndex != 1 {
		t.Errorf("unexpected annotated entries: %+v", added)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}

	videos, err := s.GetVideos(ctx)
	if err != nil || len(videos) != 2 {
		t.Errorf("GetVideos = %v, %v", videos, err)
	}

	// A fresh store over the same file must answer identically.
	s2, err := NewFileStore(3, indexFile)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	res, err := s2.Search(ctx, []float32{1, 0, 0}, 1, QueryOpts{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Entry.Text != "one" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if math.Abs(res[0].Score-1) > 1e-5 {
		t.Errorf("score = %v, want 1.0", res[0].Score)
	}
}

func TestNormalize(t *testing.T) {
	v := normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalize(3,4) = %v", v)
	}

	z := normalize([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Errorf("zero vector changed: %v", z)
	}
}
