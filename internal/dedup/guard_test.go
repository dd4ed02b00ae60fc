package dedup

import (
	"testing"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func testTx(amount float64, note string) *ledger.Transaction {
	return &ledger.Transaction{
		Date:     time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
		Type:     ledger.TypeExpense,
		Currency: "TWD",
		Amount:   amount,
		Note:     note,
	}
}

func TestGuard_AtMostOncePerWindow(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	g := NewGuard(WithNow(func() time.Time { return now }))

	tx := testTx(120, "咖啡")
	if g.Seen("user-1", tx) {
		t.Fatal("first submission reported as seen")
	}
	if !g.Seen("user-1", tx) {
		t.Fatal("second submission within TTL not suppressed")
	}
}

func TestGuard_FingerprintExpiry(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	g := NewGuard(WithNow(func() time.Time { return now }))

	tx := testTx(120, "咖啡")
	if g.Seen("user-1", tx) {
		t.Fatal("first submission reported as seen")
	}

	now = now.Add(DefaultTTL + time.Second)
	if g.Seen("user-1", tx) {
		t.Fatal("submission after TTL expiry still suppressed")
	}
}

func TestGuard_UsersAreIndependent(t *testing.T) {
	g := NewGuard()

	tx := testTx(120, "咖啡")
	if g.Seen("user-1", tx) {
		t.Fatal("first submission reported as seen")
	}
	if g.Seen("user-2", tx) {
		t.Fatal("different user's identical record suppressed")
	}
}

func TestGuard_DistinctRecordsNotSuppressed(t *testing.T) {
	g := NewGuard()

	if g.Seen("user-1", testTx(120, "咖啡")) {
		t.Fatal("first record reported as seen")
	}
	if g.Seen("user-1", testTx(120, "紅茶")) {
		t.Fatal("record with different note suppressed")
	}
	if g.Seen("user-1", testTx(121, "咖啡")) {
		t.Fatal("record with different amount suppressed")
	}
}

func TestFingerprint_NormalizesNoteAndCurrency(t *testing.T) {
	a := testTx(120, "  Coffee  ")
	b := testTx(120, "coffee")
	b.Currency = "twd"

	if Fingerprint(a) != Fingerprint(b) {
		t.Errorf("fingerprints differ:\n%s\n%s", Fingerprint(a), Fingerprint(b))
	}
}
