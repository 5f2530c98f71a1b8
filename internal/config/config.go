package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	BaseURL    string `yaml:"providerBaseURL" envconfig:"PROVIDER_BASE_URL"`
	EmbedModel string `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ProjectID  string `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location   string `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim        int    `yaml:"providerDim" envconfig:"EMBED_DIM"`
	MaxRetries int    `yaml:"embedMaxRetries" envconfig:"EMBED_MAX_RETRIES"`

	WhisperURL    string `yaml:"whisperURL" envconfig:"WHISPER_URL"`
	WhisperModel  string `yaml:"whisperModel" envconfig:"WHISPER_MODEL"`
	WhisperAPIKey string `yaml:"whisperApiKey" envconfig:"WHISPER_API_KEY"`
	Language      string `yaml:"language"`

	Store         string  `yaml:"store"`
	Database      string  `yaml:"database" envconfig:"DB_URL"`
	IndexFile     string  `yaml:"indexFile" split_words:"true"`
	TranscriptDir string  `yaml:"transcriptDir" split_words:"true"`
	MediaRoot     string  `yaml:"mediaRoot" split_words:"true"`
	ChunkDuration float64 `yaml:"chunkDuration" split_words:"true"`

	LogLevel string            `yaml:"logLevel" split_words:"true"`
	Port     int               `yaml:"port" split_words:"true"`
	Auth     AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type AuthSpecification struct {
	Enabled   bool   `yaml:"enabled"`
	JwtSecret string `yaml:"jwtSecret" split_words:"true"`
}

const envPrefix = "VIDEOSEEK"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/videoseek.yaml",
				"config/config.yaml",
				"./videoseek.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}

	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	switch cfg.Store {
	case "file":
		if strings.TrimSpace(cfg.IndexFile) == "" {
			return Specification{}, fmt.Errorf("VIDEOSEEK_INDEX_FILE is required for the file store (env/file/flag)")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Database) == "" {
			return Specification{}, fmt.Errorf("VIDEOSEEK_DB_URL is required for the postgres store (env/file/flag)")
		}
	default:
		return Specification{}, fmt.Errorf("unknown store %q (want file or postgres)", cfg.Store)
	}
	if cfg.Dim <= 0 {
		return Specification{}, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dim)
	}
	if cfg.ChunkDuration <= 0 {
		return Specification{}, fmt.Errorf("chunk duration must be positive, got %v", cfg.ChunkDuration)
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (e.g., stub, openai, vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-base-url", c.BaseURL, "Provider base URL (OpenAI-compatible endpoint)")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")
	fs.Int("embed-max-retries", c.MaxRetries, "Max embedding attempts per chunk")

	fs.String("whisper-url", c.WhisperURL, "Transcription endpoint base URL")
	fs.String("whisper-model", c.WhisperModel, "Whisper model identifier")
	fs.String("whisper-api-key", c.WhisperAPIKey, "Transcription endpoint API key")
	fs.String("language", c.Language, "Spoken language hint for transcription")

	fs.String("store", c.Store, "Chunk store backend (file|postgres)")
	fs.String("db-url", c.Database, "Database URL (DSN)")
	fs.String("index-file", c.IndexFile, "Path to the on-disk vector index")
	fs.String("transcript-dir", c.TranscriptDir, "Directory for saved transcripts")
	fs.String("media-root", c.MediaRoot, "Directory of video files to index")
	fs.Float64("chunk-duration", c.ChunkDuration, "Target transcript chunk duration in seconds")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require bearer tokens on the API")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for validating tokens")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-base-url", &c.BaseURL)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setInt("embed-dim", &c.Dim)
	setInt("embed-max-retries", &c.MaxRetries)

	setStr("whisper-url", &c.WhisperURL)
	setStr("whisper-model", &c.WhisperModel)
	setStr("whisper-api-key", &c.WhisperAPIKey)
	setStr("language", &c.Language)

	setStr("store", &c.Store)
	setStr("db-url", &c.Database)
	setStr("index-file", &c.IndexFile)
	setStr("transcript-dir", &c.TranscriptDir)
	setStr("media-root", &c.MediaRoot)
	setFloat("chunk-duration", &c.ChunkDuration)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	// Auth flags
	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Provider = "stub"
	c.Dim = 1024
	c.MaxRetries = 3
	c.WhisperModel = "base"
	c.Language = ""
	c.Store = "file"
	c.IndexFile = "video_index.faiss"
	c.TranscriptDir = "transcripts"
	c.MediaRoot = "."
	c.ChunkDuration = 30.0
	c.Location = "us-central1"
	c.Port = 8080
	c.Auth.Enabled = false
}
