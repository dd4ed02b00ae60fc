package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/notify"
	"github.com/dvloznov/ledger-assistant/internal/parse"
)

// SuggestFunc proposes a category id for free text, or "" when it has
// nothing useful to say. Used to pre-select a button in the add flow.
type SuggestFunc func(ctx context.Context, userID, text string) string

// AfterWriteFunc is invoked after a transaction reaches the store, for
// side work such as index refreshes. It must not block the dialog.
type AfterWriteFunc func(userID string, tx *ledger.Transaction)

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Sessions SessionStore
	Pending  *PendingActions
	Store    ledger.Store
	Notifier notify.Notifier
	Suggest  SuggestFunc
	// AfterWrite runs after each successful transaction persist.
	AfterWrite AfterWriteFunc
	AdminIDs   []string
	Log        zerolog.Logger
	Now        func() time.Time
}

// Manager advances dialog state machines. Each incoming message or button
// press maps to at most one step transition; invalid input re-prompts the
// same step, and cancellation at any step discards the dialog without
// touching the store.
type Manager struct {
	sessions   SessionStore
	pending    *PendingActions
	store      ledger.Store
	notifier   notify.Notifier
	suggest    SuggestFunc
	afterWrite AfterWriteFunc
	adminIDs   map[string]bool
	log        zerolog.Logger
	now        func() time.Time
}

// NewManager builds a Manager from its configuration. Sessions and Store
// are required; the rest degrade to no-ops.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		sessions:   cfg.Sessions,
		pending:    cfg.Pending,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		suggest:    cfg.Suggest,
		afterWrite: cfg.AfterWrite,
		adminIDs:   make(map[string]bool, len(cfg.AdminIDs)),
		log:        cfg.Log,
		now:        cfg.Now,
	}
	if m.sessions == nil {
		m.sessions = NewInMemorySessions()
	}
	if m.pending == nil {
		m.pending = NewPendingActions()
	}
	if m.now == nil {
		m.now = time.Now
	}
	for _, id := range cfg.AdminIDs {
		m.adminIDs[id] = true
	}
	return m
}

// Pending exposes the pending-action store so the orchestrator can park
// AI-proposed writes behind a confirmation.
func (m *Manager) Pending() *PendingActions { return m.pending }

// textPriority is the order in which active dialogs claim a free-text
// message when several are live at once.
var textPriority = []Kind{KindAdmin, KindEditTx, KindAddReminder, KindAddNote, KindAddTx}

// HandleText routes a free-text message to the active dialog expecting
// input. The second return is false when no dialog consumed the text and
// the caller should fall through to intent parsing.
func (m *Manager) HandleText(ctx context.Context, userID, text string) (*Reply, bool, error) {
	text = strings.TrimSpace(text)
	for _, kind := range textPriority {
		st, ok := m.sessions.Get(userID, kind)
		if !ok {
			continue
		}
		reply, err := m.advance(ctx, st, text)
		return reply, true, err
	}
	return nil, false, nil
}

func (m *Manager) advance(ctx context.Context, st *State, text string) (*Reply, error) {
	switch st.Kind {
	case KindAddTx:
		return m.addTxText(ctx, st, text)
	case KindAddNote:
		return m.addNoteText(ctx, st, text)
	case KindAddReminder:
		return m.addReminderText(ctx, st, text)
	case KindEditTx:
		return m.editTxText(ctx, st, text)
	case KindAdmin:
		return m.adminText(ctx, st, text)
	}
	m.sessions.Delete(st.UserID, st.Kind)
	return nil, fmt.Errorf("dialog.advance: no text handler for kind %q", st.Kind)
}

// HandleAction routes a typed button press.
func (m *Manager) HandleAction(ctx context.Context, userID string, act Action) (*Reply, error) {
	switch a := act.(type) {
	case StartAction:
		return m.start(ctx, userID, a.Kind)
	case CancelAction:
		m.sessions.Delete(userID, a.Kind)
		return &Reply{Text: "已取消。"}, nil
	case ChoiceAction:
		st, ok := m.sessions.Get(userID, a.Kind)
		if !ok {
			return &Reply{Text: "這個對話已經結束了。"}, nil
		}
		return m.addTxChoice(ctx, st, a)
	case ConfirmAction:
		return m.resolvePending(ctx, userID, a)
	case EditFieldAction:
		return m.startEdit(ctx, userID, a)
	}
	return nil, fmt.Errorf("dialog.HandleAction: unhandled action %T", act)
}

func (m *Manager) start(ctx context.Context, userID string, kind Kind) (*Reply, error) {
	switch kind {
	case KindAddTx:
		return m.startAddTx(userID), nil
	case KindAddNote:
		return m.startAddNote(userID), nil
	case KindAddReminder:
		return m.startAddReminder(userID), nil
	case KindAdmin:
		return m.startAdmin(userID)
	}
	return nil, fmt.Errorf("dialog.start: kind %q cannot be started directly", kind)
}

// parseAmountInput accepts plain or comma-grouped decimals and Chinese
// numeral words.
func parseAmountInput(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err == nil {
		return v, v > 0
	}
	if v, ok := parse.ParseNumeral(text); ok {
		return float64(v), v > 0
	}
	return 0, false
}
