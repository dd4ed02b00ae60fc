package dialog

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/ledger/memory"
)

func testManager(t *testing.T, store ledger.Store) *Manager {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	return NewManager(ManagerConfig{
		Store: store,
		Now:   func() time.Time { return time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC) },
	})
}

// failingStore wraps the memory store and fails transaction writes until
// allowed.
type failingStore struct {
	ledger.Store
	mu    sync.Mutex
	allow bool
}

func (f *failingStore) AddTransaction(ctx context.Context, userID string, tx *ledger.Transaction) error {
	f.mu.Lock()
	allow := f.allow
	f.mu.Unlock()
	if !allow {
		return ledger.ErrUnavailable
	}
	return f.Store.AddTransaction(ctx, userID, tx)
}

func sendText(t *testing.T, m *Manager, userID, text string) *Reply {
	t.Helper()
	reply, handled, err := m.HandleText(context.Background(), userID, text)
	if err != nil {
		t.Fatalf("HandleText(%q): %v", text, err)
	}
	if !handled {
		t.Fatalf("HandleText(%q): no active dialog consumed the message", text)
	}
	return reply
}

func TestAddTxFlow_GuidedSequence(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	if _, err := m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx}); err != nil {
		t.Fatalf("start: %v", err)
	}
	sendText(t, m, "user-1", "150")
	sendText(t, m, "user-1", "不用")
	sendText(t, m, "user-1", "餐飲")
	reply := sendText(t, m, "user-1", "略過")

	if !strings.Contains(reply.Text, "已記錄") {
		t.Errorf("final reply = %q, want confirmation", reply.Text)
	}

	txs, err := store.GetTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want exactly 1", len(txs))
	}
	tx := txs[0]
	if tx.Amount != 150 {
		t.Errorf("Amount = %v, want 150", tx.Amount)
	}
	if tx.ClaimAmount != 0 || tx.Claimed {
		t.Errorf("claim = (%v, %v), want (0, false)", tx.ClaimAmount, tx.Claimed)
	}
	if tx.CategoryID != "food" {
		t.Errorf("CategoryID = %q, want food", tx.CategoryID)
	}
	if tx.Note != "" {
		t.Errorf("Note = %q, want empty", tx.Note)
	}

	if _, ok := m.sessions.Get("user-1", KindAddTx); ok {
		t.Error("session survived completion")
	}
}

func TestAddTxFlow_InvalidDraftReturnsToAmountStep(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	// A draft that reached the final step without an amount. The flow's
	// per-step checks prevent this; the persistence point still has to
	// recover rather than abort.
	m.sessions.Set(&State{
		UserID:    "user-1",
		Kind:      KindAddTx,
		Step:      StepNote,
		Tx:        &TxDraft{Type: string(ledger.TypeExpense), CategoryID: "food"},
		CreatedAt: m.now(),
	})

	reply, handled, err := m.HandleText(ctx, "user-1", "略過")
	if !handled {
		t.Fatal("open dialog did not consume the message")
	}
	if err == nil {
		t.Error("expected validation error for the bad draft")
	}
	if !strings.Contains(reply.Text, "金額") {
		t.Errorf("reply = %q, want amount re-prompt", reply.Text)
	}

	st, ok := m.sessions.Get("user-1", KindAddTx)
	if !ok {
		t.Fatal("session was discarded instead of returning to the amount step")
	}
	if st.Step != StepAmount {
		t.Fatalf("Step = %q, want %q", st.Step, StepAmount)
	}

	// The dialog completes normally from there.
	sendText(t, m, "user-1", "200")
	sendText(t, m, "user-1", "不用")
	sendText(t, m, "user-1", "餐飲")
	final := sendText(t, m, "user-1", "略過")
	if !strings.Contains(final.Text, "已記錄") {
		t.Errorf("final reply = %q, want confirmation", final.Text)
	}

	txs, err := store.GetTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount != 200 {
		t.Fatalf("transactions = %+v, want one with amount 200", txs)
	}
}

func TestAddTxFlow_InvalidInputRepromptsSameStep(t *testing.T) {
	m := testManager(t, nil)
	ctx := context.Background()

	if _, err := m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx}); err != nil {
		t.Fatalf("start: %v", err)
	}
	reply := sendText(t, m, "user-1", "一百五十次方")
	if !strings.Contains(reply.Text, "金額") {
		t.Errorf("reply = %q, want amount re-prompt", reply.Text)
	}

	st, ok := m.sessions.Get("user-1", KindAddTx)
	if !ok || st.Step != StepAmount {
		t.Fatalf("step = %v, want still %v", st, StepAmount)
	}

	// Valid retry advances.
	sendText(t, m, "user-1", "三百")
	st, _ = m.sessions.Get("user-1", KindAddTx)
	if st.Step != StepClaimAsk {
		t.Errorf("step = %q, want %q", st.Step, StepClaimAsk)
	}
	if st.Tx.Amount != 300 {
		t.Errorf("Amount = %v, want 300", st.Tx.Amount)
	}
}

func TestAddTxFlow_CancelPersistsNothing(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx})
	sendText(t, m, "user-1", "150")
	sendText(t, m, "user-1", "要")
	sendText(t, m, "user-1", "150")

	reply, err := m.HandleAction(ctx, "user-1", CancelAction{Kind: KindAddTx})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(reply.Text, "取消") {
		t.Errorf("reply = %q, want cancellation notice", reply.Text)
	}

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 0 {
		t.Errorf("got %d transactions after cancel, want 0", len(txs))
	}
	if _, ok := m.sessions.Get("user-1", KindAddTx); ok {
		t.Error("session survived cancellation")
	}
}

func TestAddTxFlow_StoreFailureKeepsSession(t *testing.T) {
	fs := &failingStore{Store: memory.NewStore()}
	m := testManager(t, fs)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx})
	sendText(t, m, "user-1", "150")
	sendText(t, m, "user-1", "no")
	sendText(t, m, "user-1", "food")

	reply, handled, err := m.HandleText(ctx, "user-1", "skip")
	if !handled {
		t.Fatal("message not consumed by dialog")
	}
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if !strings.Contains(reply.Text, "失敗") {
		t.Errorf("reply = %q, want failure notice", reply.Text)
	}
	if _, ok := m.sessions.Get("user-1", KindAddTx); !ok {
		t.Fatal("session dropped on store failure, retry impossible")
	}

	// Retry after the store recovers.
	fs.mu.Lock()
	fs.allow = true
	fs.mu.Unlock()
	sendText(t, m, "user-1", "skip")

	txs, _ := fs.Store.GetTransactions(ctx, "user-1")
	if len(txs) != 1 {
		t.Errorf("got %d transactions after retry, want 1", len(txs))
	}
}

func TestAddTxFlow_ClaimAmountPath(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx})
	sendText(t, m, "user-1", "1200")
	sendText(t, m, "user-1", "要")
	sendText(t, m, "user-1", "1000")
	sendText(t, m, "user-1", "交通")
	sendText(t, m, "user-1", "高鐵來回")

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	tx := txs[0]
	if tx.ClaimAmount != 1000 || !tx.Claimed {
		t.Errorf("claim = (%v, %v), want (1000, true)", tx.ClaimAmount, tx.Claimed)
	}
	if tx.CategoryID != "transport" {
		t.Errorf("CategoryID = %q, want transport", tx.CategoryID)
	}
	if tx.Note != "高鐵來回" {
		t.Errorf("Note = %q", tx.Note)
	}
}

func TestAddTxFlow_ButtonChoices(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddTx})
	sendText(t, m, "user-1", "85")
	if _, err := m.HandleAction(ctx, "user-1", ChoiceAction{Kind: KindAddTx, Step: StepClaimAsk, Value: "no"}); err != nil {
		t.Fatalf("claim choice: %v", err)
	}
	if _, err := m.HandleAction(ctx, "user-1", ChoiceAction{Kind: KindAddTx, Step: StepCategory, Value: "drink"}); err != nil {
		t.Fatalf("category choice: %v", err)
	}
	if _, err := m.HandleAction(ctx, "user-1", ChoiceAction{Kind: KindAddTx, Step: StepNote, Value: "skip"}); err != nil {
		t.Fatalf("note skip: %v", err)
	}

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 1 || txs[0].CategoryID != "drink" {
		t.Fatalf("transactions = %+v, want one drink entry", txs)
	}
}

func TestNoteAndReminderFlows(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddNote})
	sendText(t, m, "user-1", "下次聚餐記得先訂位")

	notes, _ := store.GetNotes(ctx, "user-1")
	if len(notes) != 1 || notes[0].Text != "下次聚餐記得先訂位" {
		t.Fatalf("notes = %+v", notes)
	}

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddReminder})
	sendText(t, m, "user-1", "2025-10-20 09:00 繳房租")

	rems, _ := store.GetReminders(ctx, "user-1")
	if len(rems) != 1 {
		t.Fatalf("reminders = %+v", rems)
	}
	want := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	if !rems[0].DueAt.Equal(want) || rems[0].Text != "繳房租" {
		t.Errorf("reminder = %+v, want due %v text 繳房租", rems[0], want)
	}
}

func TestReminderFlow_RelativeDay(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", StartAction{Kind: KindAddReminder})
	sendText(t, m, "user-1", "明天 08:30 還書")

	rems, _ := store.GetReminders(ctx, "user-1")
	if len(rems) != 1 {
		t.Fatalf("reminders = %+v", rems)
	}
	want := time.Date(2025, 10, 16, 8, 30, 0, 0, time.UTC)
	if !rems[0].DueAt.Equal(want) {
		t.Errorf("DueAt = %v, want %v", rems[0].DueAt, want)
	}
}

func TestEditFlow_UpdatesSingleField(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	tx := &ledger.Transaction{ID: "tx-1", Date: time.Now(), Type: ledger.TypeExpense, CategoryID: "food", Currency: "TWD", Amount: 100}
	store.AddTransaction(ctx, "user-1", tx)

	if _, err := m.HandleAction(ctx, "user-1", EditFieldAction{TxID: "tx-1", Field: FieldAmount}); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	sendText(t, m, "user-1", "250")

	txs, _ := store.GetTransactions(ctx, "user-1")
	if txs[0].Amount != 250 {
		t.Errorf("Amount = %v, want 250", txs[0].Amount)
	}
	if txs[0].CategoryID != "food" {
		t.Errorf("CategoryID changed to %q", txs[0].CategoryID)
	}
}

func TestEditFlow_MissingRecordEndsDialog(t *testing.T) {
	m := testManager(t, nil)
	ctx := context.Background()

	m.HandleAction(ctx, "user-1", EditFieldAction{TxID: "no-such-tx", Field: FieldNote})
	reply := sendText(t, m, "user-1", "new note")

	if !strings.Contains(reply.Text, "找不到") {
		t.Errorf("reply = %q, want not-found notice", reply.Text)
	}
	if _, ok := m.sessions.Get("user-1", KindEditTx); ok {
		t.Error("session survived missing record")
	}
}

func TestPendingConfirm_ConsumedExactlyOnce(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	tx := &ledger.Transaction{ID: "tx-ai", Date: time.Now(), Type: ledger.TypeExpense, CategoryID: "food", Currency: "TWD", Amount: 120}
	reply := m.ProposeAddTx("user-1", tx)
	if len(reply.Buttons) != 2 {
		t.Fatalf("got %d buttons, want confirm and cancel", len(reply.Buttons))
	}

	act, err := DecodeAction(reply.Buttons[0].Data)
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}
	if _, err := m.HandleAction(ctx, "user-1", act); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}

	// Second press on the same button finds nothing.
	second, err := m.HandleAction(ctx, "user-1", act)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !strings.Contains(second.Text, "失效") {
		t.Errorf("reply = %q, want expired notice", second.Text)
	}
	txs, _ = store.GetTransactions(ctx, "user-1")
	if len(txs) != 1 {
		t.Errorf("got %d transactions after double press, want still 1", len(txs))
	}
}

func TestPendingConfirm_RejectPersistsNothing(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	tx := &ledger.Transaction{Date: time.Now(), Type: ledger.TypeExpense, CategoryID: "food", Currency: "TWD", Amount: 120}
	reply := m.ProposeAddTx("user-1", tx)

	act, err := DecodeAction(reply.Buttons[1].Data)
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}
	if _, err := m.HandleAction(ctx, "user-1", act); err != nil {
		t.Fatalf("reject: %v", err)
	}

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 0 {
		t.Errorf("got %d transactions after reject, want 0", len(txs))
	}
}

func TestPendingConfirm_WrongUserDenied(t *testing.T) {
	store := memory.NewStore()
	m := testManager(t, store)
	ctx := context.Background()

	tx := &ledger.Transaction{Date: time.Now(), Type: ledger.TypeExpense, CategoryID: "food", Currency: "TWD", Amount: 120}
	reply := m.ProposeAddTx("user-1", tx)

	act, _ := DecodeAction(reply.Buttons[0].Data)
	m.HandleAction(ctx, "user-2", act)

	txs, _ := store.GetTransactions(ctx, "user-1")
	if len(txs) != 0 {
		t.Errorf("got %d transactions from cross-user confirm, want 0", len(txs))
	}
}

func TestAdminFlow_RequiresAdminAndBroadcasts(t *testing.T) {
	store := memory.NewStore()
	// Seed two known users.
	store.GetSettings(context.Background(), "user-1")
	store.GetSettings(context.Background(), "user-2")

	var mu sync.Mutex
	delivered := map[string]string{}

	m := NewManager(ManagerConfig{
		Store:    store,
		AdminIDs: []string{"admin-1"},
		Notifier: notifyFunc(func(ctx context.Context, userID, text string) error {
			mu.Lock()
			defer mu.Unlock()
			delivered[userID] = text
			return nil
		}),
	})
	ctx := context.Background()

	reply, err := m.HandleAction(ctx, "user-1", StartAction{Kind: KindAdmin})
	if err != nil {
		t.Fatalf("non-admin start: %v", err)
	}
	if !strings.Contains(reply.Text, "權限") {
		t.Errorf("reply = %q, want permission denial", reply.Text)
	}

	if _, err := m.HandleAction(ctx, "admin-1", StartAction{Kind: KindAdmin}); err != nil {
		t.Fatalf("admin start: %v", err)
	}
	reply = sendText(t, m, "admin-1", "系統維護公告")
	if !strings.Contains(reply.Text, "2") {
		t.Errorf("reply = %q, want delivery count 2", reply.Text)
	}
	if delivered["user-1"] != "系統維護公告" || delivered["user-2"] != "系統維護公告" {
		t.Errorf("delivered = %v", delivered)
	}
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]string
		want    Action
		wantErr bool
	}{
		{
			name: "start add_tx",
			data: map[string]string{"flow": "add_tx", "step": "start"},
			want: StartAction{Kind: KindAddTx},
		},
		{
			name: "cancel add_note",
			data: map[string]string{"flow": "add_note", "step": "cancel"},
			want: CancelAction{Kind: KindAddNote},
		},
		{
			name: "claim choice",
			data: map[string]string{"flow": "add_tx", "step": "claim_ask", "value": "yes"},
			want: ChoiceAction{Kind: KindAddTx, Step: StepClaimAsk, Value: "yes"},
		},
		{
			name: "edit field",
			data: map[string]string{"flow": "edit_tx", "step": "start", "tx": "tx-1", "field": "amount"},
			want: EditFieldAction{TxID: "tx-1", Field: "amount"},
		},
		{
			name: "confirm",
			data: map[string]string{"flow": "ai_confirm", "step": "confirm", "id": "abc"},
			want: ConfirmAction{ActionID: "abc", Approve: true},
		},
		{
			name: "reject",
			data: map[string]string{"flow": "ai_confirm", "step": "reject", "id": "abc"},
			want: ConfirmAction{ActionID: "abc", Approve: false},
		},
		{
			name:    "unknown flow",
			data:    map[string]string{"flow": "mystery", "step": "start"},
			wantErr: true,
		},
		{
			name:    "edit without tx id",
			data:    map[string]string{"flow": "edit_tx", "step": "start", "field": "amount"},
			wantErr: true,
		},
		{
			name:    "confirm without id",
			data:    map[string]string{"flow": "ai_confirm", "step": "confirm"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeAction(%v) = %v, want error", tt.data, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeAction(%v): %v", tt.data, err)
			}
			if got != tt.want {
				t.Errorf("DecodeAction(%v) = %#v, want %#v", tt.data, got, tt.want)
			}
		})
	}
}

func TestDecodeAction_RoundTrip(t *testing.T) {
	actions := []Action{
		StartAction{Kind: KindAddReminder},
		CancelAction{Kind: KindAddTx},
		ChoiceAction{Kind: KindAddTx, Step: StepCategory, Value: "food"},
		ConfirmAction{ActionID: "id-1", Approve: true},
		EditFieldAction{TxID: "tx-1", Field: FieldNote},
	}
	for _, a := range actions {
		got, err := DecodeAction(a.Encode())
		if err != nil {
			t.Fatalf("DecodeAction(%#v): %v", a, err)
		}
		if got != a {
			t.Errorf("round trip %#v -> %#v", a, got)
		}
	}
}

// notifyFunc adapts a closure for tests without importing the notify
// package under a name clash.
type notifyFunc func(ctx context.Context, userID, text string) error

func (f notifyFunc) Notify(ctx context.Context, userID, text string) error {
	return f(ctx, userID, text)
}
