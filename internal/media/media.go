// Package media holds the boundary adapters around external media tooling:
// ffmpeg for audio extraction and segment cutting, and a speech-to-text
// service for transcription. Nothing here carries retrieval semantics; the
// indexing pipeline depends on the interfaces so tests can substitute fakes.
package media

import (
	"context"

	"github.com/seanblong/videoseek/pkg/models"
)

// Extractor turns a video file into inputs the transcription service can
// consume, and cuts time ranges back out of the video for playback.
type Extractor interface {
	// ExtractAudio writes a mono 16kHz WAV for the video and returns its
	// path. The caller owns cleanup of the returned file.
	ExtractAudio(ctx context.Context, videoPath string) (string, error)

	// CutSegment writes the [start, start+duration) range of the video to
	// outputPath.
	CutSegment(ctx context.Context, videoPath string, start, duration float64, outputPath string) error

	// Duration reports the video length in seconds.
	Duration(ctx context.Context, videoPath string) (float64, error)
}

// Transcriber converts an audio file into timestamped text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (models.Transcription, error)
}
