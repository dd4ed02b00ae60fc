// Command cli is an interactive local console for the assistant. It runs
// the same conversational core as the bot and the API against a local
// store, which makes it the quickest way to exercise parsing, dialogs,
// and chat without any network surface.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ai"
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
	"github.com/dvloznov/ledger-assistant/internal/tools"
)

const cliUserID = "local"

func main() {
	_ = godotenv.Load()

	// Keep structured logs out of the interactive session unless asked.
	if os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", "error")
	}
	log := logger.New()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	core, store, cleanup := buildCore(cfg, log)
	defer cleanup()

	title := color.New(color.FgCyan, color.Bold)
	title.Println("ledger-assistant console")
	fmt.Println("輸入消費（例如「午餐 120」）或問題（例如「這個月花了多少？」）")
	fmt.Println("指令：/txs 列出本月紀錄，/quit 離開")
	fmt.Println()

	prompt := color.New(color.FgGreen, color.Bold)
	answer := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if line == "/txs" {
			printTransactions(ctx, store, dim)
			cancel()
			continue
		}

		reply, err := core.HandleMessage(ctx, cliUserID, line)
		cancel()
		if err != nil {
			color.Red("error: %v", err)
		}
		if reply == nil {
			continue
		}
		answer.Println(reply.Text)
		for i, btn := range reply.Buttons {
			dim.Printf("  [%d] %s\n", i+1, btn.Label)
		}
	}
}

func buildCore(cfg *config.Config, log zerolog.Logger) (*assistant.Assistant, ledger.Store, func()) {
	ctx := context.Background()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store ledger.Store
	switch cfg.Storage.Backend {
	case "sqlite":
		sqlStore, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open sqlite store")
		}
		closers = append(closers, func() { sqlStore.Close() })
		store = sqlStore
	default:
		store = memory.NewStore()
	}

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
	var aiParser *ai.Parser
	if len(providers) > 0 {
		aiParser = ai.NewParser(providers, cfg.AI.ModelFallback, log)
	}

	retrieverOpts := []retrieval.Option{
		retrieval.WithTopK(cfg.Retrieval.LexicalK, cfg.Retrieval.VectorK),
		retrieval.WithLogger(log),
	}
	if embedder != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithEmbedder(embedder, cfg.AI.EmbeddingModel))
	}
	retriever := retrieval.NewRetriever(retrieverOpts...)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)
	suggester := classify.NewSuggester()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	go func() {
		if err := jobQueue.Start(workerCtx, assistant.NewJobHandler(store, retriever, suggester, log)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()
	closers = append(closers, func() {
		cancelWorker()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		jobQueue.Stop(stopCtx)
	})

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
	return core, store, cleanup
}

func printTransactions(ctx context.Context, store ledger.Store, dim *color.Color) {
	txs, err := store.GetTransactions(ctx, cliUserID)
	if err != nil {
		color.Red("error: %v", err)
		return
	}
	if len(txs) == 0 {
		dim.Println("（還沒有任何紀錄）")
		return
	}
	for _, tx := range txs {
		sign := "-"
		if tx.Type == ledger.TypeIncome {
			sign = "+"
		}
		line := fmt.Sprintf("%s  %s%.0f %s  %s", tx.Date.Format("2006-01-02"), sign, tx.Amount, tx.Currency, tx.CategoryID)
		if tx.Note != "" {
			line += "  " + tx.Note
		}
		fmt.Println(line)
	}
}
