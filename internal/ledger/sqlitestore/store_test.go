package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tx := &ledger.Transaction{
		ID:         "tx-1",
		Date:       time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
		Type:       ledger.TypeExpense,
		CategoryID: "food",
		Currency:   "TWD",
		Rate:       1,
		Amount:     120,
		Note:       "午餐",
	}
	if err := store.AddTransaction(ctx, "u1", tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	txs, err := store.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	got := txs[0]
	if got.Amount != 120 || got.CategoryID != "food" || got.Note != "午餐" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(tx.Date) {
		t.Errorf("Date = %v, want %v", got.Date, tx.Date)
	}

	amount := 150.0
	note := "午餐加飲料"
	if err := store.UpdateTransaction(ctx, "u1", "tx-1", ledger.TxPatch{Amount: &amount, Note: &note}); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	txs, _ = store.GetTransactions(ctx, "u1")
	if txs[0].Amount != 150 || txs[0].Note != "午餐加飲料" {
		t.Errorf("patch not applied: %+v", txs[0])
	}
	if txs[0].CategoryID != "food" {
		t.Errorf("untouched field changed: %+v", txs[0])
	}

	if err := store.DeleteTransaction(ctx, "u1", "tx-1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	txs, _ = store.GetTransactions(ctx, "u1")
	if len(txs) != 0 {
		t.Errorf("got %d transactions after delete, want 0", len(txs))
	}
}

func TestUpdateMissingTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	amount := 10.0
	err := store.UpdateTransaction(ctx, "u1", "nope", ledger.TxPatch{Amount: &amount})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteTransaction(ctx, "u1", "nope"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
}

func TestTransactionsSortedByDate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	dates := []time.Time{
		time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		tx := &ledger.Transaction{
			ID: "tx-" + string(rune('a'+i)), Date: d,
			Type: ledger.TypeExpense, CategoryID: "other",
			Currency: "TWD", Rate: 1, Amount: float64(i + 1),
		}
		if err := store.AddTransaction(ctx, "u1", tx); err != nil {
			t.Fatal(err)
		}
	}

	txs, err := store.GetTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.Before(txs[i-1].Date) {
			t.Fatalf("transactions out of order: %v then %v", txs[i-1].Date, txs[i].Date)
		}
	}
}

func TestDefaultsSeededPerUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cats, err := store.GetCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("GetCategories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected seeded default categories")
	}
	hasOther := false
	for _, cat := range cats {
		if cat.ID == ledger.DefaultCategoryID {
			hasOther = true
		}
	}
	if !hasOther {
		t.Errorf("default category missing from %v", cats)
	}

	settings, err := store.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Currency != "TWD" {
		t.Errorf("Currency = %q, want TWD", settings.Currency)
	}
}

func TestNotesAndReminders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	note := &ledger.Note{ID: "n1", Text: "記得對帳", CreatedAt: time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)}
	if err := store.AddNote(ctx, "u1", note); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	notes, err := store.GetNotes(ctx, "u1")
	if err != nil || len(notes) != 1 || notes[0].Text != "記得對帳" {
		t.Fatalf("GetNotes = %v, %v", notes, err)
	}

	rem := &ledger.Reminder{ID: "r1", Text: "繳房租", DueAt: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)}
	if err := store.AddReminder(ctx, "u1", rem); err != nil {
		t.Fatalf("AddReminder: %v", err)
	}
	if err := store.UpdateReminder(ctx, "u1", "r1", "", true); err != nil {
		t.Fatalf("UpdateReminder: %v", err)
	}
	reminders, err := store.GetReminders(ctx, "u1")
	if err != nil || len(reminders) != 1 {
		t.Fatalf("GetReminders = %v, %v", reminders, err)
	}
	if !reminders[0].Done || reminders[0].Text != "繳房租" {
		t.Errorf("reminder after update = %+v", reminders[0])
	}
	if err := store.DeleteReminder(ctx, "u1", "r1"); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	if err := store.DeleteReminder(ctx, "u1", "r1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddTransaction(ctx, "u2", &ledger.Transaction{
		ID: "tx-1", Date: time.Now().UTC(), Type: ledger.TypeExpense,
		CategoryID: "other", Currency: "TWD", Rate: 1, Amount: 10,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSettings(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("users = %v, want [u1 u2]", users)
	}
}
