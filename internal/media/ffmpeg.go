package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FFmpeg shells out to the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	// Bin overrides the ffmpeg binary name, mainly for tests.
	Bin string
	// ProbeBin overrides the ffprobe binary name.
	ProbeBin string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Bin: "ffmpeg", ProbeBin: "ffprobe"}
}

// ExtractAudio writes a mono 16kHz PCM WAV to a temp directory.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file not found: %s", videoPath)
	}
	dir, err := os.MkdirTemp("", "videoseek-audio-*")
	if err != nil {
		return "", err
	}
	audioPath := filepath.Join(dir, "audio.wav")

	err = f.run(ctx, f.Bin,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		audioPath,
	)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("extract audio from %s: %w", videoPath, err)
	}
	return audioPath, nil
}

// CutSegment copies the requested time range into outputPath, re-encoding so
// cuts land on exact timestamps rather than keyframes.
func (f *FFmpeg) CutSegment(ctx context.Context, videoPath string, start, duration float64, outputPath string) error {
	err := f.run(ctx, f.Bin,
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", videoPath,
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("cut segment of %s: %w", videoPath, err)
	}
	return nil
}

// Duration reads the container duration via ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ProbeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", videoPath, err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output for %s: %w", videoPath, err)
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("no duration reported for %s", videoPath)
	}
	return d, nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", bin, err, lastLine(stderr.Bytes()))
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
