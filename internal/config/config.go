package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Document source. Required for ingest and sync, not for serving the
	// QA endpoint; validated via RequireSource.
	ConfluenceBase string `envconfig:"CONFLUENCE_BASE"`
	ConfluencePAT  string `envconfig:"CONFLUENCE_PAT"`

	// Inference collaborator. Embeddings need it, so every command checks
	// HasOpenAI before starting.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Search index.
	OpenSearchHost string `envconfig:"OPENSEARCH_HOST" default:"http://localhost:9200"`
	IndexName      string `envconfig:"INDEX_NAME" default:"confluence"`

	// Pipeline tuning.
	SyncFile      string        `envconfig:"SYNC_FILE" default:"last_sync.json"`
	ChunkSize     int           `envconfig:"CHUNK_SIZE" default:"1500"`
	DescribeDelay time.Duration `envconfig:"DESCRIBE_DELAY" default:"200ms"`
	MaxSpaces     int           `envconfig:"MAX_SPACES" default:"10"`
	MaxPages      int           `envconfig:"MAX_PAGES" default:"200"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("WIKIDEX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.ConfluenceBase = strings.TrimRight(strings.TrimSpace(cfg.ConfluenceBase), "/")

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// RequireSource validates the document-source connection parameters.
// Commands that talk to the source call this before any work begins.
func (c *Config) RequireSource() error {
	if c.ConfluenceBase == "" {
		return fmt.Errorf("CONFLUENCE_BASE env var required")
	}
	if c.ConfluencePAT == "" {
		return fmt.Errorf("CONFLUENCE_PAT env var required")
	}
	return nil
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
