package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragchat/internal/api"
	"ragchat/internal/config"
	"ragchat/internal/core"
	"ragchat/internal/push"
	"ragchat/internal/store"
	"ragchat/internal/vector"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flags for index ingestion
	ingestFile := flag.String("ingest", "", "Ingest the given file into a collection and exit")
	ingestCollection := flag.String("collection", "", "Collection name to ingest into (with -ingest)")
	ingestName := flag.String("context-name", "", "Display name for the vector context (with -ingest)")
	ingestDescription := flag.String("description", "", "Description for the vector context (with -ingest)")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Handle index ingestion if requested
	if *ingestFile != "" {
		if *ingestCollection == "" {
			log.Fatal("-collection is required with -ingest")
		}
		name := *ingestName
		if name == "" {
			name = *ingestCollection
		}
		log.Printf("Starting ingestion of %s into collection %s...", *ingestFile, *ingestCollection)
		numIngested, err := dbStore.IngestFile(*ingestFile, name, *ingestDescription, *ingestCollection, llmService.GetEmbedding)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Ingestion complete. Ingested %d chunks. Exiting.", numIngested)
		os.Exit(0)
	}

	// Initialize token counting
	counter, err := core.NewTiktokenCounter(config.AppConfig.TokenEncoding)
	if err != nil {
		log.Fatalf("Failed to initialize token counter: %v", err)
	}

	// Initialize retrieval, delivery and the generation pipeline
	retriever := vector.NewRetriever(dbStore, llmService.GetEmbedding, config.AppConfig.SimilarityThreshold)
	registry := push.NewRegistry()
	pipeline := core.NewPipeline(dbStore, retriever, llmService, counter, registry,
		config.AppConfig.RetrievalK, config.AppConfig.HistoryWindow)

	pool := core.NewPool(config.AppConfig.PipelineWorkers, config.AppConfig.PipelineQueueSize)

	// Initialize Chat service
	chatService := core.NewChatService(dbStore, pipeline, pool)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, registry)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Drain queued generation work so committed user turns get their
	// replies persisted before exit.
	pool.Close()

	log.Println("Server exiting gracefully")
}
