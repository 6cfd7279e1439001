// Package config loads the pipeline's enumerated options from the
// environment, with a .env dotfile fallback.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/kittclouds/gomemory/internal/plan"
)

// Config is the pipeline's external configuration surface.
type Config struct {
	Layer1Model string
	Layer2Model string
	EmbeddingModel string
	EmbeddingDimension int
	MaxLayer2Turns int
	Layer2TimeoutMS int
	StorePath string
	DebugDir string
	ArchetypeFile string
	Archetypes []plan.Archetype

	ChatAPIKey string
	ChatBaseURL string
	FallbackAPIKey string
	FallbackModel string
	FallbackBaseURL string
	EmbedAPIKey string
	EmbedBaseURL string
}

// Load reads configuration from the environment, first attempting to load a
// .env file from the working directory (non-fatal if absent, since most
// deployments set real environment variables directly).
func Load() (Config, error) {
	// Absence of a .env file is expected in production.
	_ = godotenv.Load()

	cfg := Config{
		Layer1Model: getenv("GOMEMORY_LAYER1_MODEL", "gpt-4o-mini"),
		Layer2Model: getenv("GOMEMORY_LAYER2_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getenv("GOMEMORY_EMBEDDING_MODEL", "voyage-4"),
		EmbeddingDimension: getenvInt("GOMEMORY_EMBEDDING_DIMENSION", 1024),
		MaxLayer2Turns: getenvInt("GOMEMORY_MAX_LAYER2_TURNS", 8),
		Layer2TimeoutMS: getenvInt("GOMEMORY_LAYER2_TIMEOUT_MS", 30000),
		StorePath: getenv("GOMEMORY_STORE_PATH", "gomemory.db"),
		DebugDir: getenv("GOMEMORY_DEBUG_DIR", ""),
		ArchetypeFile: getenv("GOMEMORY_ARCHETYPE_FILE", ""),

		ChatAPIKey: os.Getenv("GOMEMORY_CHAT_API_KEY"),
		ChatBaseURL: os.Getenv("GOMEMORY_CHAT_BASE_URL"),
		FallbackAPIKey: os.Getenv("GOMEMORY_FALLBACK_API_KEY"),
		FallbackModel: getenv("GOMEMORY_FALLBACK_MODEL", "gpt-4o-mini"),
		FallbackBaseURL: os.Getenv("GOMEMORY_FALLBACK_BASE_URL"),
		EmbedAPIKey: os.Getenv("GOMEMORY_EMBED_API_KEY"),
		EmbedBaseURL: os.Getenv("GOMEMORY_EMBED_BASE_URL"),
	}

	if cfg.EmbeddingDimension != 1024 {
		return Config{}, fmt.Errorf("config: embedding_dimension must be 1024, got %d", cfg.EmbeddingDimension)
	}

	archetypes, err := plan.LoadArchetypeOverrides(cfg.ArchetypeFile)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Archetypes = archetypes

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
