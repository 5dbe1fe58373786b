package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"personaforge/adapters/embedding"
	"personaforge/adapters/llm"
	"personaforge/adapters/memindex"
	"personaforge/adapters/postgres"
	"personaforge/adapters/qdrant"
	"personaforge/app"
	"personaforge/internal"
	"personaforge/internal/api"
	"personaforge/internal/config"
	"personaforge/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := internal.NewDefaultLogger()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()

	embedder, err := embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:  cfg.AI.OpenAIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.EmbeddingModel,
	})
	if err != nil {
		log.Fatalf("embedder setup failed: %v", err)
	}

	chatClient, err := llm.NewChatClient(llm.Config{
		APIKey:      cfg.AI.OpenAIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.ChatModel,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})
	if err != nil {
		log.Fatalf("chat client setup failed: %v", err)
	}
	generator := llm.NewGenerator(chatClient, logger)

	retriever := buildRetriever(ctx, cfg, embedder, logger)

	var repo ports.PersonaRepositoryPort
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			log.Fatalf("database setup failed: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		repo = postgres.NewPersonaRepository(db)
		logger.Info("persona set persistence enabled")
	} else {
		logger.Warn("DATABASE_URL not set, persona sets will not be persisted")
	}

	server := api.NewServer(
		app.NewGenerationService(generator, embedder, logger),
		app.NewValidationService(retriever, logger),
		app.NewExpansionService(generator, retriever, logger),
		repo,
		logger,
	).WithDefaults(api.Defaults{
		NumPersonas:   cfg.Generation.NumPersonas,
		RQEThreshold:  cfg.Generation.RQEThreshold,
		MaxIterations: cfg.Generation.MaxIterations,
		CSThreshold:   cfg.Generation.CSThreshold,
	})
	if indexer, ok := retriever.(ports.ChunkIndexerPort); ok {
		server = server.WithIngestion(app.NewIngestionService(indexer, logger))
	}

	addr := ":" + cfg.Server.Port
	logger.Info("listening on %s", addr)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation runs are slow
	}
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// buildRetriever prefers Qdrant and falls back to the in-memory index when
// no vector store is reachable, so local development works without one.
func buildRetriever(ctx context.Context, cfg *config.Config, embedder ports.EmbeddingPort, logger *internal.Logger) ports.RetrievalPort {
	store, err := qdrant.NewStore(ctx, qdrant.Config{
		Host:       cfg.Vector.QdrantHost,
		Port:       cfg.Vector.QdrantPort,
		APIKey:     cfg.Vector.QdrantKey,
		UseTLS:     cfg.Vector.UseTLS,
		Collection: cfg.Vector.Collection,
	}, embedder, logger)
	if err != nil {
		logger.Warn("qdrant unavailable (%v), using in-memory index", err)
		return memindex.New(embedder)
	}
	logger.Info("connected to qdrant collection %s", cfg.Vector.Collection)
	return store
}
