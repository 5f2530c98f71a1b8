package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/seanblong/videoseek/internal/store"
	"github.com/seanblong/videoseek/internal/transcripts"
	"github.com/seanblong/videoseek/pkg/models"
)

// fakeExtractor hands out empty temp WAV files without running ffmpeg.
type fakeExtractor struct {
	calls atomic.Int64
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	f.calls.Add(1)
	dir, err := os.MkdirTemp("", "fake-audio-*")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "audio.wav")
	return path, os.WriteFile(path, nil, 0o644)
}

func (f *fakeExtractor) CutSegment(ctx context.Context, videoPath string, start, duration float64, outputPath string) error {
	return nil
}

func (f *fakeExtractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	return 120, nil
}

// fakeTranscriber returns a fixed four-segment transcript.
type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language string) (models.Transcription, error) {
	if f.err != nil {
		return models.Transcription{}, f.err
	}
	segs := []models.TranscriptSegment{
		{Start: 0, End: 20, Text: "intro to gradient descent"},
		{Start: 20, End: 40, Text: "the loss surface"},
		{Start: 40, End: 60, Text: "learning rates"},
		{Start: 60, End: 80, Text: "momentum and adam"},
	}
	return models.Transcription{Text: "full text", Segments: segs, Language: "en"}, nil
}

// fakeEmbedder fails for texts containing failSubstring.
type fakeEmbedder struct {
	dim           int
	failSubstring string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failSubstring != "" && strings.Contains(text, f.failSubstring) {
		return nil, errors.New("embedding provider unavailable")
	}
	v := make([]float32, f.dim)
	v[int(text[0])%f.dim] = 1
	return v, nil
}

func (f *fakeEmbedder) Dim() int { return f.dim }

func newTestIndexer(t *testing.T) (*Indexer, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(8, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ts, err := transcripts.NewStorage(filepath.Join(t.TempDir(), "transcripts"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return New(st, &fakeEmbedder{dim: 8}, &fakeExtractor{}, &fakeTranscriber{}, ts, 30.0), st
}

func TestIndexVideo(t *testing.T) {
	ix, st := newTestIndexer(t)
	ctx := context.Background()

	report, err := ix.IndexVideo(ctx, "/media/lecture.mp4")
	if err != nil {
		t.Fatalf("IndexVideo: %v", err)
	}
	// 80s of segments at 30s target -> chunks of [0,40), [40,80).
	if report.Chunks != 2 || report.Indexed != 2 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.TranscriptFile == "" {
		t.Error("transcript was not saved")
	}

	n, _ := st.Count(ctx)
	if n != 2 {
		t.Errorf("store holds %d chunks, want 2", n)
	}
	videos, _ := st.GetVideos(ctx)
	if len(videos) != 1 || videos[0] != "/media/lecture.mp4" {
		t.Errorf("videos = %v", videos)
	}
}

func TestIndexVideoSkipsFailedEmbeddings(t *testing.T) {
	ix, st := newTestIndexer(t)
	ix.Client = &fakeEmbedder{dim: 8, failSubstring: "learning rates"}
	ctx := context.Background()

	report, err := ix.IndexVideo(ctx, "/media/lecture.mp4")
	if err != nil {
		t.Fatalf("IndexVideo: %v", err)
	}
	if report.Chunks != 2 || report.Indexed != 1 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
	// The failed chunk must be absent, not a zero vector.
	n, _ := st.Count(ctx)
	if n != 1 {
		t.Errorf("store holds %d chunks, want 1", n)
	}
}

func TestIndexVideoReusesSavedTranscript(t *testing.T) {
	ix, _ := newTestIndexer(t)
	extractor := &fakeExtractor{}
	ix.Extractor = extractor
	ctx := context.Background()

	if _, err := ix.IndexVideo(ctx, "/media/lecture.mp4"); err != nil {
		t.Fatalf("first IndexVideo: %v", err)
	}
	if _, err := ix.IndexVideo(ctx, "/media/lecture.mp4"); err != nil {
		t.Fatalf("second IndexVideo: %v", err)
	}
	if n := extractor.calls.Load(); n != 1 {
		t.Errorf("audio extracted %d times, want 1 (transcript reuse)", n)
	}
}

func TestIndexVideoTranscriptionFailure(t *testing.T) {
	ix, st := newTestIndexer(t)
	ix.Transcriber = &fakeTranscriber{err: errors.New("whisper down")}
	ctx := context.Background()

	if _, err := ix.IndexVideo(ctx, "/media/lecture.mp4"); err == nil {
		t.Fatal("expected transcription error to surface")
	}
	n, _ := st.Count(ctx)
	if n != 0 {
		t.Errorf("store mutated on failed run: %d chunks", n)
	}
}

func TestRunIndexesDirectory(t *testing.T) {
	ix, st := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mkv", "notes.txt", "c.mov"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	reports, err := ix.Run(ctx, root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3 (txt file skipped)", len(reports))
	}
	for _, r := range reports {
		if r.Indexed != 2 {
			t.Errorf("report %+v: want 2 indexed chunks", r)
		}
	}

	n, _ := st.Count(ctx)
	if n != 6 {
		t.Errorf("store holds %d chunks, want 6", n)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	ix, _ := newTestIndexer(t)
	reports, err := ix.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("got %d reports for empty dir", len(reports))
	}
}

// MockFileSystemWalker drives findVideos without touching the filesystem.
type MockFileSystemWalker struct {
	paths []string
}

func (m *MockFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	for _, p := range m.paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

func TestFindVideosFiltersExtensions(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ix.Walker = &MockFileSystemWalker{paths: []string{
		"/media/a.mp4", "/media/b.srt", "/media/c.WEBM", "/media/d.wav",
	}}
	paths, err := ix.findVideos("/media")
	if err != nil {
		t.Fatalf("findVideos: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/media/a.mp4" || paths[1] != "/media/c.WEBM" {
		t.Errorf("paths = %v", paths)
	}
}
