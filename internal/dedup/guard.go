// Package dedup suppresses duplicate ledger writes. The same logical entry
// can be produced twice when a guided dialog and a batch parse race, or when
// two input channels deliver the same text; a short-lived content
// fingerprint catches the second write.
package dedup

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// DefaultTTL is the window within which a repeated fingerprint is rejected.
const DefaultTTL = 2 * time.Minute

// Guard keeps per-user buckets of recently seen fingerprints. Entries older
// than the TTL are pruned lazily on each access to bound memory.
type Guard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	buckets map[string]map[string]time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL overrides the suppression window.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) { g.ttl = ttl }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard with the default two-minute window.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		ttl:     DefaultTTL,
		now:     time.Now,
		buckets: make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fingerprint derives the duplicate-detection key for a transaction.
func Fingerprint(tx *ledger.Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		tx.Date.Format("2006-01-02"),
		tx.Type,
		strings.ToUpper(tx.Currency),
		strconv.FormatFloat(tx.Amount, 'f', -1, 64),
		strings.ToLower(strings.TrimSpace(tx.Note)),
	)
}

// Seen reports whether an equivalent transaction was recorded for this user
// within the TTL window, marking the fingerprint as seen when it was not.
func (g *Guard) Seen(userID string, tx *ledger.Transaction) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	bucket, ok := g.buckets[userID]
	if !ok {
		bucket = make(map[string]time.Time)
		g.buckets[userID] = bucket
	}

	for fp, seenAt := range bucket {
		if now.Sub(seenAt) > g.ttl {
			delete(bucket, fp)
		}
	}

	fp := Fingerprint(tx)
	if _, ok := bucket[fp]; ok {
		return true
	}
	bucket[fp] = now
	return false
}
