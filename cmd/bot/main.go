// Command bot runs the assistant as a Telegram bot. Text messages flow
// through the same conversational core as the HTTP API; inline keyboard
// buttons carry dialog actions in their callback data.
package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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
	"github.com/dvloznov/ledger-assistant/internal/notify"
	"github.com/dvloznov/ledger-assistant/internal/parse"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
	"github.com/dvloznov/ledger-assistant/internal/scheduler"
	"github.com/dvloznov/ledger-assistant/internal/tools"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	log.Info().Str("username", bot.Self.UserName).Msg("Bot authorized")

	ctx := context.Background()

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
	if cache, err := retrieval.OpenVectorCache(cfg.Storage.VectorCachePath); err == nil {
		defer cache.Close()
		retrieverOpts = append(retrieverOpts, retrieval.WithCache(cache))
	} else {
		log.Warn().Err(err).Msg("Vector cache unavailable")
	}
	if embedder != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithEmbedder(embedder, cfg.AI.EmbeddingModel))
	}
	retriever := retrieval.NewRetriever(retrieverOpts...)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, cfg.Jobs.Workers, jobStore)
	suggester := classify.NewSuggester()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() {
		if err := jobQueue.Start(workerCtx, assistant.NewJobHandler(store, retriever, suggester, log)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	notifier := telegramNotifier(bot, log)

	var core *assistant.Assistant
	dialogs := dialog.NewManager(dialog.ManagerConfig{
		Store:    store,
		Notifier: notifier,
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

	sched, err := scheduler.New(store, notifier, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sched.Start()
	defer sched.Stop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Listening for updates")
	for {
		select {
		case <-quit:
			log.Info().Msg("Shutting down bot")
			bot.StopReceivingUpdates()
			cancelWorker()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := jobQueue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping job queue")
			}
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			handleUpdate(ctx, bot, core, update, log)
		}
	}
}

func handleUpdate(ctx context.Context, bot *tgbotapi.BotAPI, core *assistant.Assistant, update tgbotapi.Update, log zerolog.Logger) {
	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		userID := strconv.FormatInt(cb.From.ID, 10)
		data, err := decodeCallback(cb.Data)
		if err != nil {
			log.Warn().Err(err).Str("data", cb.Data).Msg("Undecodable callback data")
			return
		}
		reply, err := core.HandleAction(reqCtx, userID, data)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Action handling failed")
		}
		// Stop the client's loading spinner regardless of outcome.
		if _, err := bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			log.Warn().Err(err).Msg("Callback ack failed")
		}
		if reply != nil && cb.Message != nil {
			sendReply(bot, cb.Message.Chat.ID, reply, log)
		}

	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		userID := strconv.FormatInt(msg.From.ID, 10)

		text := msg.Text
		if msg.IsCommand() {
			switch msg.Command() {
			case "start", "help":
				sendReply(bot, msg.Chat.ID, &dialog.Reply{
					Text: "直接輸入消費就能記帳，例如「午餐 120」。\n也可以問我問題，例如「這個月花了多少？」",
				}, log)
				return
			default:
				text = msg.CommandArguments()
				if text == "" {
					return
				}
			}
		}

		reply, err := core.HandleMessage(reqCtx, userID, text)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Message handling failed")
		}
		if reply != nil {
			sendReply(bot, msg.Chat.ID, reply, log)
		}
	}
}

func sendReply(bot *tgbotapi.BotAPI, chatID int64, reply *dialog.Reply, log zerolog.Logger) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Buttons) > 0 {
		var row []tgbotapi.InlineKeyboardButton
		for _, btn := range reply.Buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Label, encodeCallback(btn.Data)))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	if _, err := bot.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

// Callback data is a flat key/value map squeezed into Telegram's 64-byte
// callback payload as a query string.
func encodeCallback(data map[string]string) string {
	values := url.Values{}
	for k, v := range data {
		values.Set(k, v)
	}
	return values.Encode()
}

func decodeCallback(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out, nil
}

// telegramNotifier pushes scheduler and admin messages to the chat whose
// id matches the user id.
func telegramNotifier(bot *tgbotapi.BotAPI, log zerolog.Logger) notify.Notifier {
	return notify.Func(func(ctx context.Context, userID, text string) error {
		chatID, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			return err
		}
		if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Notify failed")
			return err
		}
		return nil
	})
}
