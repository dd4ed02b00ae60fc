package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/api/handlers"
	"github.com/dvloznov/ledger-assistant/internal/api/middleware"
	"github.com/dvloznov/ledger-assistant/internal/assistant"
	"github.com/dvloznov/ledger-assistant/internal/classify"
	"github.com/dvloznov/ledger-assistant/internal/config"
	"github.com/dvloznov/ledger-assistant/internal/dedup"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/ledger/memory"
	"github.com/dvloznov/ledger-assistant/internal/ledger/sqlitestore"
	"github.com/dvloznov/ledger-assistant/internal/logger"
	"github.com/dvloznov/ledger-assistant/internal/parse"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
	"github.com/dvloznov/ledger-assistant/internal/scheduler"
	"github.com/dvloznov/ledger-assistant/internal/tools"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml (or set CONFIG_PATH env)")
	)
	flag.Parse()

	// Load .env for local development; missing file is fine.
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Ledger store.
	var store ledger.Store
	switch cfg.Storage.Backend {
	case "sqlite":
		sqlStore, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open sqlite store")
		}
		defer sqlStore.Close()
		store = sqlStore
	default:
		store = memory.NewStore()
	}

	// Completion providers, in the configured fallback order.
	var providers []ai.Provider
	var embedder ai.Embedder
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create gemini provider")
		}
		providers = append(providers, gemini)
		embedder = gemini
	}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, ai.NewAnthropic(cfg.AnthropicAPIKey))
	}
	if len(providers) == 0 {
		log.Warn().Msg("No AI provider configured - deterministic parsing only")
	}

	var aiParser *ai.Parser
	if len(providers) > 0 {
		aiParser = ai.NewParser(providers, cfg.AI.ModelFallback, log)
	}

	// Retrieval with persistent vector cache.
	retrieverOpts := []retrieval.Option{
		retrieval.WithTopK(cfg.Retrieval.LexicalK, cfg.Retrieval.VectorK),
		retrieval.WithLogger(log),
	}
	if cache, err := retrieval.OpenVectorCache(cfg.Storage.VectorCachePath); err == nil {
		defer cache.Close()
		retrieverOpts = append(retrieverOpts, retrieval.WithCache(cache))
	} else {
		log.Warn().Err(err).Msg("Vector cache unavailable, embeddings will not persist")
	}
	if embedder != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithEmbedder(embedder, cfg.AI.EmbeddingModel))
	}
	retriever := retrieval.NewRetriever(retrieverOpts...)

	// Background jobs.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)

	suggester := classify.NewSuggester()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() {
		log.Info().Msg("Starting job worker")
		handler := assistant.NewJobHandler(store, retriever, suggester, log)
		if err := jobQueue.Start(workerCtx, handler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Conversational core. Dialog writes publish the same side work as
	// parsed writes, so the manager calls back into the assistant.
	var core *assistant.Assistant
	dialogs := dialog.NewManager(dialog.ManagerConfig{
		Store:    store,
		AdminIDs: cfg.AdminIDs,
		Suggest:  suggester.Suggest,
		AfterWrite: func(userID string, tx *ledger.Transaction) {
			core.AfterWrite(userID, tx)
		},
		Log: log,
	})
	registry := tools.NewRegistry(store, dialogs, tools.WithLogger(log))
	core = assistant.New(assistant.Config{
		Store:     store,
		Parser:    parse.NewParser(),
		AIParser:  aiParser,
		Dialogs:   dialogs,
		Tools:     registry,
		Retriever: retriever,
		Dedup:     dedup.NewGuard(dedup.WithTTL(cfg.DedupTTL())),
		Publisher: jobQueue,
		Suggest:   suggester.Suggest,
		Log:       log,
	})

	// Reminder scheduler; the API deployment logs deliveries, the bot
	// deployment pushes them to the chat channel.
	sched, err := scheduler.New(store, scheduler.LogNotifier(log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sched.Start()
	defer sched.Stop()

	// Handlers and routes.
	eventsHandler := handlers.NewEventsHandler(core, log)
	chatHandler := handlers.NewChatHandler(core, log)
	transactionsHandler := handlers.NewTransactionsHandler(store, log)
	categoriesHandler := handlers.NewCategoriesHandler(store, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	post := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h(w, r)
		}
	}
	get := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/api/events/message", post(eventsHandler.HandleMessage))
	mux.HandleFunc("/api/events/action", post(eventsHandler.HandleAction))
	mux.HandleFunc("/api/events/batch", post(eventsHandler.HandleBatch))
	mux.HandleFunc("/api/chat", post(chatHandler.HandleChat))
	mux.HandleFunc("/api/transactions", get(transactionsHandler.ListTransactions))
	mux.HandleFunc("/api/categories", get(categoriesHandler.ListCategories))
	mux.HandleFunc("/api/jobs", get(jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", get(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(os.Getenv("API_TOKEN"))(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // streaming chat responses
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
