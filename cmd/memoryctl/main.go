// Command memoryctl is a thin wrapper around the pipeline: it reads one
// prompt per line from standard input and writes the resulting context
// block (or a blank line, if nothing survived) to standard output.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/config"
	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/pipeline"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if os.Getenv("GOMEMORY_LOG_JSON") == "1" {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("memoryctl: failed to load config")
	}

	s, err := store.NewSQLiteStoreWithDSN(cfg.StorePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryctl: failed to open store")
	}
	defer s.DB().Close()

	idx := vectorindex.New(s.DB())

	usage := gateway.NewUsageAggregator()
	primary := gateway.NewOpenAIBackend("primary", cfg.ChatAPIKey, cfg.ChatBaseURL)

	var chat *gateway.Chat
	if cfg.FallbackAPIKey != "" {
		fb := gateway.NewOpenAIBackend("fallback", cfg.FallbackAPIKey, cfg.FallbackBaseURL)
		chat = gateway.NewChat(primary, fb, usage, log)
	} else {
		chat = gateway.NewChat(primary, nil, usage, log)
	}

	embed := gateway.NewEmbed(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, usage)

	pl := pipeline.New(s, idx, chat, embed, usage, cfg, log)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		prompt := scanner.Text()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		contextBlock, _ := pl.ProcessPrompt(ctx, prompt)
		cancel()
		fmt.Println(contextBlock)
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("memoryctl: stdin read failed")
	}
}
