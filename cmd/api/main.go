package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/videoseek/internal/ai"
	"github.com/seanblong/videoseek/internal/auth"
	"github.com/seanblong/videoseek/internal/config"
	"github.com/seanblong/videoseek/internal/search"
	"github.com/seanblong/videoseek/internal/store"
	"github.com/seanblong/videoseek/pkg/models"
	"github.com/spf13/pflag"
)

type Simple struct {
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	VideoFilename string  `json:"video_filename"`
	ChunkIndex    int     `json:"chunk_index"`
}

func output(res []models.SearchResult) (out []Simple) {
	out = make([]Simple, 0, len(res))
	for _, r := range res {
		score := r.Score
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		out = append(out, Simple{
			Score:         score,
			Text:          r.Entry.Text,
			StartTime:     r.Entry.Start,
			EndTime:       r.Entry.End,
			VideoFilename: filepath.Base(r.Entry.VideoPath),
			ChunkIndex:    r.Entry.ChunkIndex,
		})
	}
	return out
}

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("videoseek-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("store", cfg.Store).Str("log_level", cfg.LogLevel).
		Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting videoseek api")

	// Create embedding client configuration
	var clientConfig *ai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
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
		log.Fatalf("unsupported provider: %s", cfg.Provider)
	}

	// Initialize auth with configuration
	auth.InitializeAuth(cfg.Auth.JwtSecret, cfg.Auth.Enabled)
	if auth.IsAuthEnabled() {
		log.Println("Authentication is ENABLED")
	} else {
		log.Println("Authentication is DISABLED - running in open mode")
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	dim := c.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("embedding client initialized")

	ctx := context.Background()
	var st store.VideoStore
	switch cfg.Store {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pg.Migrate(ctx, dim); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = pg
	default:
		st, err = store.NewFileStore(dim, cfg.IndexFile)
		if err != nil {
			log.Fatalf("Failed to open index %s: %v", cfg.IndexFile, err)
		}
	}
	defer st.Close()

	svc := search.NewService(c, st)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Auth status endpoint (always available)
	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]bool{"enabled": auth.IsAuthEnabled()})
		if err != nil {
			http.Error(w, "Failed to encode response", 500)
		}
	})

	mux.HandleFunc("/videos", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		videos, err := st.GetVideos(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		names := make([]string, 0, len(videos))
		for _, v := range videos {
			names = append(names, filepath.Base(v))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(names); err != nil {
			http.Error(w, "Failed to encode videos", 500)
		}
	}))

	mux.HandleFunc("/index/info", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		count, err := st.Count(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		videos, err := st.GetVideos(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(map[string]any{
			"chunks":    count,
			"videos":    len(videos),
			"dimension": dim,
		})
		if err != nil {
			http.Error(w, "Failed to encode index info", 500)
		}
	}))

	mux.HandleFunc("/search", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		k := 5
		if v := r.URL.Query().Get("top_k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		video := r.URL.Query().Get("video")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		res, err := svc.Query(ctx, q, k, video)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		// never an empty body
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(output(res)); err != nil {
			log.Printf("failed to encode response: %v", err)
			// fallback to an empty JSON array if encoding or writing fails
			_, _ = w.Write([]byte("[]"))
		}

		hlog.FromRequest(r).Info().Str("path", "/search").Str("q", q).Int("k", k).Str("video", video).
			Dur("dur", time.Since(start)).Msg("served")
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
