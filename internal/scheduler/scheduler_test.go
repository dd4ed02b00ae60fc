package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/ledger/memory"
	"github.com/dvloznov/ledger-assistant/internal/notify"
)

var testNow = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, userID+": "+text)
	return nil
}

func newTestScheduler(t *testing.T, notifier notify.Notifier) (*Scheduler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	s, err := New(store, notifier, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return testNow }
	return s, store
}

func TestTick_DeliversDueAndMarksDone(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	s, store := newTestScheduler(t, notifier)

	due := &ledger.Reminder{ID: "r1", Text: "繳房租", DueAt: testNow.Add(-time.Minute)}
	future := &ledger.Reminder{ID: "r2", Text: "繳電費", DueAt: testNow.Add(time.Hour)}
	if err := store.AddReminder(ctx, "u1", due); err != nil {
		t.Fatal(err)
	}
	if err := store.AddReminder(ctx, "u1", future); err != nil {
		t.Fatal(err)
	}

	s.Tick(ctx)

	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %v, want exactly the due reminder", notifier.sent)
	}
	if notifier.sent[0] != "u1: 提醒：繳房租" {
		t.Errorf("sent[0] = %q", notifier.sent[0])
	}

	reminders, err := store.GetReminders(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	for _, rem := range reminders {
		switch rem.ID {
		case "r1":
			if !rem.Done {
				t.Error("delivered reminder not marked done")
			}
		case "r2":
			if rem.Done {
				t.Error("future reminder marked done")
			}
		}
	}

	// A second tick must not re-deliver.
	s.Tick(ctx)
	if len(notifier.sent) != 1 {
		t.Errorf("second tick re-delivered: %v", notifier.sent)
	}
}

func TestTick_DeliveryFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{err: errors.New("network down")}
	s, store := newTestScheduler(t, notifier)

	rem := &ledger.Reminder{ID: "r1", Text: "繳房租", DueAt: testNow.Add(-time.Minute)}
	if err := store.AddReminder(ctx, "u1", rem); err != nil {
		t.Fatal(err)
	}

	s.Tick(ctx)

	reminders, err := store.GetReminders(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(reminders) != 1 || reminders[0].Done {
		t.Fatalf("reminder should stay pending for retry, got %+v", reminders[0])
	}

	// Once delivery works the next tick picks it up.
	notifier.err = nil
	s.Tick(ctx)
	if len(notifier.sent) != 1 {
		t.Errorf("sent = %v, want retry delivery", notifier.sent)
	}
}
