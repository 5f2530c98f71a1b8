package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/seanblong/videoseek/pkg/models"
)

// WhisperClient talks to an OpenAI-compatible /audio/transcriptions endpoint
// (openai.com itself, or a local whisper server exposing the same API). It
// requests verbose_json so segment timestamps come back with the text.
type WhisperClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// WhisperConfig configures the transcription client.
type WhisperConfig struct {
	BaseURL string
	APIKey  string
	Model   string // whisper model identifier, e.g. "base"
}

func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &WhisperClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		// Transcription of long audio is slow; this is not the embedding
		// path's 30s budget.
		http: &http.Client{Timeout: 15 * time.Minute},
	}
}

// Transcribe uploads the audio file and returns the timestamped result.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath, language string) (models.Transcription, error) {
	var tr models.Transcription

	f, err := os.Open(audioPath)
	if err != nil {
		return tr, fmt.Errorf("open audio %s: %w", audioPath, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeTranscriptionForm(mw, f, filepath.Base(audioPath), c.model, language)
		if closeErr := mw.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		return tr, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return tr, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return tr, fmt.Errorf("transcription endpoint returned %s: %s", resp.Status, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tr, fmt.Errorf("decode transcription response: %w", err)
	}
	if tr.Text == "" && len(tr.Segments) == 0 {
		return tr, errors.New("transcription response carried no text")
	}
	return tr, nil
}

func writeTranscriptionForm(mw *multipart.Writer, audio io.Reader, filename, model, language string) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	fields := map[string]string{
		"model":           model,
		"response_format": "verbose_json",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	return nil
}
