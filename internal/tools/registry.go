// Package tools exposes ledger operations to the conversational model as
// a fixed registry of callable tools. The model only ever names a tool;
// arguments are validated here and destructive writes are converted into
// confirmation prompts instead of executing directly.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// Confirmer parks a proposed write behind a user confirmation.
type Confirmer interface {
	ProposeAddTx(userID string, tx *ledger.Transaction) *dialog.Reply
	ProposeDeleteTx(userID, txID, summary string) *dialog.Reply
}

// handler executes one tool. The optional reply is surfaced to the user
// alongside the model's answer (confirmation buttons).
type handler func(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error)

// Registry is the closed set of tools offered to the model.
type Registry struct {
	store     ledger.Store
	confirmer Confirmer
	now       func() time.Time
	log       zerolog.Logger
	tools     map[string]handler
	decls     []ai.ToolDecl
}

// Option configures a Registry.
type Option func(*Registry)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the dispatch logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry builds the registry over a store. The confirmer may be nil,
// in which case add/delete tools report that confirmation is unavailable.
func NewRegistry(store ledger.Store, confirmer Confirmer, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		confirmer: confirmer,
		now:       time.Now,
		tools:     make(map[string]handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.register()
	return r
}

// Decls returns the tool declarations to pass to the provider.
func (r *Registry) Decls() []ai.ToolDecl { return r.decls }

// Dispatch runs the named tool. An unknown name or a handler failure is
// reported back to the model as a structured error result, never as a
// silent drop.
func (r *Registry) Dispatch(ctx context.Context, userID string, call ai.ToolCall) (map[string]any, *dialog.Reply) {
	h, ok := r.tools[call.Name]
	if !ok {
		r.log.Warn().Str("tool", call.Name).Msg("tools: unknown tool requested")
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}, nil
	}
	result, reply, err := h(ctx, userID, call.Args)
	if err != nil {
		r.log.Error().Err(err).Str("tool", call.Name).Str("user_id", userID).Msg("tools: dispatch failed")
		return map[string]any{"error": err.Error()}, nil
	}
	return result, reply
}

func (r *Registry) add(decl ai.ToolDecl, h handler) {
	r.decls = append(r.decls, decl)
	r.tools[decl.Name] = h
}

func (r *Registry) register() {
	r.registerTransactionTools()
	r.registerStatsTools()
	r.registerNoteTools()
	r.registerReminderTools()
}

// argString reads an optional string argument.
func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// argNumber reads an optional numeric argument. JSON numbers decode as
// float64.
func argNumber(args map[string]any, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func argBool(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}

// parseDay parses a YYYY-MM-DD argument.
func parseDay(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
