// Package transcripts persists full transcription results per video so a
// re-index or downstream consumer can read them without re-transcribing.
package transcripts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanblong/videoseek/pkg/models"
)

// Storage writes one JSON file per video under a fixed directory.
type Storage struct {
	dir string
}

// NewStorage creates the storage directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		dir = "transcripts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Path returns the transcript file path for a video filename, derived from
// the video's stem: lecture.mp4 -> <dir>/lecture_transcript.json.
func (s *Storage) Path(videoFilename string) string {
	base := filepath.Base(videoFilename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(s.dir, stem+"_transcript.json")
}

// Save writes the transcription and returns the file path.
func (s *Storage) Save(videoFilename string, tr models.Transcription) (string, error) {
	path := s.Path(videoFilename)
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript %s: %w", path, err)
	}
	return path, nil
}

// Load reads a previously saved transcription.
func (s *Storage) Load(videoFilename string) (models.Transcription, error) {
	var tr models.Transcription
	data, err := os.ReadFile(s.Path(videoFilename))
	if err != nil {
		return tr, err
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		return tr, fmt.Errorf("decode transcript for %s: %w", videoFilename, err)
	}
	return tr, nil
}

// Exists reports whether a transcript has been saved for the video.
func (s *Storage) Exists(videoFilename string) bool {
	_, err := os.Stat(s.Path(videoFilename))
	return err == nil
}

// FullText returns the transcript's complete text, trimmed.
func (s *Storage) FullText(videoFilename string) (string, error) {
	tr, err := s.Load(videoFilename)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}
