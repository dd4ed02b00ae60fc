package dialog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// Pending operation kinds.
const (
	PendingAddTx    = "add_tx"
	PendingDeleteTx = "delete_tx"
)

// PendingAction is an AI-proposed write held until the user confirms it.
type PendingAction struct {
	ID        string
	UserID    string
	Kind      string
	Tx        *ledger.Transaction
	TxID      string
	CreatedAt time.Time
}

// PendingActions stores proposed operations keyed by generated id. Take
// removes the entry, so each proposal can be resolved exactly once; a
// second press on the same button misses.
type PendingActions struct {
	mu      sync.Mutex
	actions map[string]*PendingAction
}

// NewPendingActions creates an empty pending-action store.
func NewPendingActions() *PendingActions {
	return &PendingActions{actions: make(map[string]*PendingAction)}
}

// Add stores the proposal and returns its generated id.
func (p *PendingActions) Add(pa *PendingAction) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	pa.ID = uuid.NewString()
	if pa.CreatedAt.IsZero() {
		pa.CreatedAt = time.Now()
	}
	p.actions[pa.ID] = pa
	return pa.ID
}

// Take removes and returns the proposal with the given id.
func (p *PendingActions) Take(id string) (*PendingAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pa, ok := p.actions[id]
	if ok {
		delete(p.actions, id)
	}
	return pa, ok
}
