package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"form-rag/internal/config"
	"form-rag/internal/embedding"
	"form-rag/internal/helper"
	"form-rag/internal/llmservice"
	"form-rag/internal/rag"
	"form-rag/internal/server"
	"form-rag/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Store.Backend == "chromem" {
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			log.Fatal().Err(err).Msg("Error creating store folder")
		}
	}

	store, err := vectorstore.New(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	generator, err := llmservice.New(&cfg.InferLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	engine, err := rag.NewEngine(ctx, store, embedder, generator, cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing engine")
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(engine).Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("store", cfg.Store.Backend).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	if err := store.Persist(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error persisting vector store")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing vector store")
	}
}
