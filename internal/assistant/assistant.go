// Package assistant is the conversational core: it routes every incoming
// message or button press through active dialogs first, then through
// deterministic and model-based intent parsing, and answers remaining
// questions with a retrieval-augmented tool-calling chat loop.
package assistant

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dedup"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/jobs"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/parse"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
	"github.com/dvloznov/ledger-assistant/internal/tools"
)

// Config wires the assistant's collaborators. Store, Parser and Dialogs
// are required; the AI parser, retriever, tools and publisher degrade to
// local-only behavior when absent.
type Config struct {
	Store     ledger.Store
	Parser    *parse.Parser
	AIParser  *ai.Parser
	Dialogs   *dialog.Manager
	Tools     *tools.Registry
	Retriever *retrieval.Retriever
	Dedup     *dedup.Guard
	Publisher jobs.Publisher
	// Suggest proposes a category id from note text when parsing finds
	// none. Optional.
	Suggest dialog.SuggestFunc
	Log     zerolog.Logger
	Now     func() time.Time
}

// Assistant owns the message-handling policy for one deployment.
type Assistant struct {
	store     ledger.Store
	parser    *parse.Parser
	aiParser  *ai.Parser
	dialogs   *dialog.Manager
	tools     *tools.Registry
	retriever *retrieval.Retriever
	dedup     *dedup.Guard
	publisher jobs.Publisher
	suggest   dialog.SuggestFunc
	log       zerolog.Logger
	now       func() time.Time
}

// New builds an Assistant.
func New(cfg Config) *Assistant {
	a := &Assistant{
		store:     cfg.Store,
		parser:    cfg.Parser,
		aiParser:  cfg.AIParser,
		dialogs:   cfg.Dialogs,
		tools:     cfg.Tools,
		retriever: cfg.Retriever,
		dedup:     cfg.Dedup,
		publisher: cfg.Publisher,
		suggest:   cfg.Suggest,
		log:       cfg.Log,
		now:       cfg.Now,
	}
	if a.parser == nil {
		a.parser = parse.NewParser()
	}
	if a.dedup == nil {
		a.dedup = dedup.NewGuard()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// HandleAction decodes and dispatches a button press.
func (a *Assistant) HandleAction(ctx context.Context, userID string, data map[string]string) (*dialog.Reply, error) {
	act, err := dialog.DecodeAction(data)
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", userID).Msg("assistant: undecodable action")
		return &dialog.Reply{Text: "這個按鈕已經失效了。"}, nil
	}
	return a.dialogs.HandleAction(ctx, userID, act)
}

// AfterWrite publishes the side work that follows a persisted
// transaction. Publish failures are logged; the write itself already
// succeeded.
func (a *Assistant) AfterWrite(userID string, tx *ledger.Transaction) {
	if a.publisher == nil {
		return
	}
	ctx := context.Background()
	index := &jobs.Job{
		Type:   jobs.JobTypeIndexItem,
		UserID: userID,
		ItemID: tx.ID,
		Text:   renderTx(tx),
	}
	if err := a.publisher.Publish(ctx, index); err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("assistant: index job publish failed")
	}
	train := &jobs.Job{
		Type:   jobs.JobTypeTrainClassifier,
		UserID: userID,
	}
	if err := a.publisher.Publish(ctx, train); err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("assistant: train job publish failed")
	}
}
