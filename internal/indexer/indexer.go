// Package indexer runs the indexing pipeline: extract audio, transcribe,
// chunk, embed, and append to the vector store.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/videoseek/internal/ai"
	"github.com/seanblong/videoseek/internal/chunker"
	"github.com/seanblong/videoseek/internal/media"
	"github.com/seanblong/videoseek/internal/store"
	"github.com/seanblong/videoseek/internal/transcripts"
	"github.com/seanblong/videoseek/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// IndexReport summarizes one video's indexing run. Skipped counts chunks
// whose embedding failed after the retry budget; they are absent from the
// index rather than stored as placeholder vectors.
type IndexReport struct {
	VideoPath      string `json:"video_path"`
	Chunks         int    `json:"chunks"`
	Indexed        int    `json:"indexed"`
	Skipped        int    `json:"skipped"`
	TranscriptFile string `json:"transcript_file,omitempty"`
}

// Indexer handles indexing of video files into the chunk store.
type Indexer struct {
	Store         store.VideoStore
	Client        ai.Client
	Extractor     media.Extractor
	Transcriber   media.Transcriber
	Transcripts   *transcripts.Storage
	ChunkDuration float64
	Language      string
	Walker        FileSystemWalker
}

// New creates an Indexer with the default directory walker.
func New(st store.VideoStore, client ai.Client, extractor media.Extractor, transcriber media.Transcriber, ts *transcripts.Storage, chunkDuration float64) *Indexer {
	return &Indexer{
		Store:         st,
		Client:        client,
		Extractor:     extractor,
		Transcriber:   transcriber,
		Transcripts:   ts,
		ChunkDuration: chunkDuration,
		Walker:        &DefaultFileSystemWalker{},
	}
}

// batch is one video's embeddings ready for a single store append.
type batch struct {
	vectors [][]float32
	entries []models.IndexEntry
	report  IndexReport
}

// IndexVideo runs the full pipeline for one video and appends the result to
// the store in a single AddChunks call.
func (ix *Indexer) IndexVideo(ctx context.Context, videoPath string) (IndexReport, error) {
	b, err := ix.prepare(ctx, videoPath)
	if err != nil {
		return IndexReport{VideoPath: videoPath}, err
	}
	if err := ix.add(ctx, &b); err != nil {
		return b.report, err
	}
	return b.report, nil
}

// prepare transcribes and embeds one video without touching the store, so
// concurrent preparations stay safe while adds are serialized elsewhere.
func (ix *Indexer) prepare(ctx context.Context, videoPath string) (batch, error) {
	b := batch{report: IndexReport{VideoPath: videoPath}}
	videoName := filepath.Base(videoPath)

	tr, transcriptFile, err := ix.transcription(ctx, videoPath)
	if err != nil {
		return b, err
	}
	b.report.TranscriptFile = transcriptFile

	chunks := chunker.Split(tr.Segments, ix.ChunkDuration)
	b.report.Chunks = len(chunks)
	log.Info().Str("video", videoName).Int("segments", len(tr.Segments)).Int("chunks", len(chunks)).
		Msg("transcript chunked")

	for _, ch := range chunks {
		vec, err := ix.Client.Embed(ctx, ch.Text)
		if err != nil {
			if ctx.Err() != nil {
				return b, ctx.Err()
			}
			// The chunk is excluded rather than indexed as a zero vector;
			// a zero vector would be a valid but misleading point.
			b.report.Skipped++
			log.Warn().Err(err).Str("video", videoName).Float64("start", ch.Start).Float64("end", ch.End).
				Msg("embedding failed, chunk excluded from index")
			continue
		}
		b.vectors = append(b.vectors, vec)
		b.entries = append(b.entries, models.IndexEntry{
			VideoPath: videoPath,
			Start:     ch.Start,
			End:       ch.End,
			Text:      ch.Text,
		})
	}
	return b, nil
}

func (ix *Indexer) add(ctx context.Context, b *batch) error {
	if len(b.vectors) == 0 {
		log.Warn().Str("video", b.report.VideoPath).Msg("no chunks to index")
		return nil
	}
	added, err := ix.Store.AddChunks(ctx, b.vectors, b.entries)
	if err != nil {
		return fmt.Errorf("add chunks for %s: %w", b.report.VideoPath, err)
	}
	b.report.Indexed = len(added)
	log.Info().Str("video", b.report.VideoPath).Int("indexed", len(added)).Int("skipped", b.report.Skipped).
		Msg("video indexed")
	return nil
}

// transcription returns the video's transcription, reusing a previously
// saved transcript when one exists.
func (ix *Indexer) transcription(ctx context.Context, videoPath string) (models.Transcription, string, error) {
	videoName := filepath.Base(videoPath)

	if ix.Transcripts != nil && ix.Transcripts.Exists(videoName) {
		tr, err := ix.Transcripts.Load(videoName)
		if err == nil {
			log.Info().Str("video", videoName).Msg("reusing saved transcript")
			return tr, ix.Transcripts.Path(videoName), nil
		}
		log.Warn().Err(err).Str("video", videoName).Msg("saved transcript unreadable, re-transcribing")
	}

	audioPath, err := ix.Extractor.ExtractAudio(ctx, videoPath)
	if err != nil {
		return models.Transcription{}, "", fmt.Errorf("extract audio: %w", err)
	}
	defer os.RemoveAll(filepath.Dir(audioPath))

	tr, err := ix.Transcriber.Transcribe(ctx, audioPath, ix.Language)
	if err != nil {
		return models.Transcription{}, "", fmt.Errorf("transcribe %s: %w", videoName, err)
	}

	transcriptFile := ""
	if ix.Transcripts != nil {
		transcriptFile, err = ix.Transcripts.Save(videoName, tr)
		if err != nil {
			log.Warn().Err(err).Str("video", videoName).Msg("failed to save transcript")
		}
	}
	return tr, transcriptFile, nil
}

// Run indexes every video file under root. Videos are prepared concurrently
// by a small worker pool; a single collector performs the store appends, so
// the store never sees overlapping mutations.
func (ix *Indexer) Run(ctx context.Context, root string) ([]IndexReport, error) {
	paths, err := ix.findVideos(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Warn().Str("root", root).Msg("no video files found")
		return nil, nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > 4 {
		numWorkers = 4 // transcription and embedding are the bottleneck, not CPU
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}
	log.Info().Int("videos", len(paths)).Int("workers", numWorkers).Msg("starting indexing run")

	workChan := make(chan string)
	batchChan := make(chan batch)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for path := range workChan {
				b, err := ix.prepare(ctx, path)
				if err != nil {
					log.Error().Err(err).Str("video", path).Int("worker", workerID).Msg("indexing failed")
					continue
				}
				select {
				case batchChan <- b:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	go func() {
		defer close(workChan)
		for _, p := range paths {
			select {
			case workChan <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(batchChan)
	}()

	var reports []IndexReport
	for b := range batchChan {
		if err := ix.add(ctx, &b); err != nil {
			log.Error().Err(err).Str("video", b.report.VideoPath).Msg("store append failed")
			continue
		}
		reports = append(reports, b.report)
	}
	if err := ctx.Err(); err != nil {
		return reports, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].VideoPath < reports[j].VideoPath })
	return reports, nil
}

// findVideos walks root and collects files with a known video extension.
func (ix *Indexer) findVideos(root string) ([]string, error) {
	var paths []string
	err := ix.Walker.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if isVideoFile(path) {
				paths = append(paths, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func isVideoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mkv", ".mov", ".webm", ".avi", ".m4v":
		return true
	}
	return false
}
