package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/videoseek/internal/ai"
	"github.com/seanblong/videoseek/internal/config"
	"github.com/seanblong/videoseek/internal/indexer"
	"github.com/seanblong/videoseek/internal/media"
	"github.com/seanblong/videoseek/internal/store"
	"github.com/seanblong/videoseek/internal/transcripts"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("videoseek-indexer", pflag.ExitOnError)
	videoFlag := fs.String("video", "", "Index a single video file instead of walking media-root")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	logger.Info().Str("provider", cfg.Provider).Str("store", cfg.Store).Str("media_root", cfg.MediaRoot).
		Msg("starting videoseek indexer")

	provider := strings.ToLower(cfg.Provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			MaxRetries: cfg.MaxRetries,
			Provider:   ai.ProviderOpenAI,
		}
	case "vertexai", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	if client.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	ctx := context.Background()

	var st store.VideoStore
	switch cfg.Store {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pg.Migrate(ctx, client.Dim()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = pg
	default:
		st, err = store.NewFileStore(client.Dim(), cfg.IndexFile)
		if err != nil {
			log.Fatalf("Failed to open index %s: %v", cfg.IndexFile, err)
		}
	}
	defer st.Close()

	ts, err := transcripts.NewStorage(cfg.TranscriptDir)
	if err != nil {
		log.Fatalf("Failed to create transcript directory: %v", err)
	}

	whisper := media.NewWhisperClient(media.WhisperConfig{
		BaseURL: cfg.WhisperURL,
		APIKey:  cfg.WhisperAPIKey,
		Model:   cfg.WhisperModel,
	})

	ix := indexer.New(st, client, media.NewFFmpeg(), whisper, ts, cfg.ChunkDuration)
	ix.Language = cfg.Language

	var reports []indexer.IndexReport
	if *videoFlag != "" {
		report, err := ix.IndexVideo(ctx, *videoFlag)
		if err != nil {
			log.Fatal(err)
		}
		reports = []indexer.IndexReport{report}
	} else {
		reports, err = ix.Run(ctx, cfg.MediaRoot)
		if err != nil {
			log.Fatal(err)
		}
	}

	total := 0
	for _, r := range reports {
		total += r.Indexed
		logger.Info().Str("video", r.VideoPath).Int("chunks", r.Chunks).Int("indexed", r.Indexed).
			Int("skipped", r.Skipped).Msg("indexed")
	}
	logger.Info().Int("videos", len(reports)).Int("chunks", total).Msg("indexing complete")
}
