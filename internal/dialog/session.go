// Package dialog tracks multi-step guided exchanges per user. Each dialog
// kind is an explicit state machine advanced by free-text messages or by
// typed button actions; at most one dialog of a given kind is active per
// user at a time.
package dialog

import (
	"sync"
	"time"
)

// Kind identifies a dialog type. A user may hold one active dialog per kind.
type Kind string

const (
	KindAddTx       Kind = "add_tx"
	KindAddNote     Kind = "add_note"
	KindAddReminder Kind = "add_reminder"
	KindEditTx      Kind = "edit_tx"
	KindAIConfirm   Kind = "ai_confirm"
	KindAdmin       Kind = "admin"
)

// Step names the current position inside a dialog.
type Step string

const (
	StepAmount      Step = "amount"
	StepClaimAsk    Step = "claim_ask"
	StepClaimAmount Step = "claim_amount"
	StepCategory    Step = "category"
	StepNote        Step = "note"

	StepAwaitText  Step = "await_text"
	StepAwaitValue Step = "await_value"
)

// TxDraft accumulates the fields of an add-transaction dialog. It is owned
// exclusively by one active dialog instance and discarded on completion or
// cancellation.
type TxDraft struct {
	Type        string
	Amount      float64
	Currency    string
	Date        string
	ClaimAmount float64
	Claimed     bool
	CategoryID  string
	Note        string
}

// State is one active dialog. Draft fields are populated per kind: Tx for
// add_tx, EditTxID/EditField for edit_tx.
type State struct {
	UserID    string
	Kind      Kind
	Step      Step
	Tx        *TxDraft
	EditTxID  string
	EditField string
	CreatedAt time.Time
}

// SessionStore holds active dialog states keyed by (userID, kind). A Set
// for an existing key replaces the previous dialog of that kind.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Get(userID string, kind Kind) (*State, bool)
	Set(state *State)
	Delete(userID string, kind Kind)
	// Active returns every live dialog for the user, most recent first.
	Active(userID string) []*State
}

// InMemorySessions is a mutex-guarded map store, suitable for a
// single-instance deployment. Multi-instance setups should back this
// interface with a shared cache.
type InMemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]map[Kind]*State
}

// NewInMemorySessions creates an empty session store.
func NewInMemorySessions() *InMemorySessions {
	return &InMemorySessions{sessions: make(map[string]map[Kind]*State)}
}

func (s *InMemorySessions) Get(userID string, kind Kind) (*State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[userID][kind]
	return st, ok
}

func (s *InMemorySessions) Set(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.sessions[state.UserID]
	if !ok {
		byKind = make(map[Kind]*State)
		s.sessions[state.UserID] = byKind
	}
	byKind[state.Kind] = state
}

func (s *InMemorySessions) Delete(userID string, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[userID], kind)
}

func (s *InMemorySessions) Active(userID string) []*State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*State, 0, len(s.sessions[userID]))
	for _, st := range s.sessions[userID] {
		out = append(out, st)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

var _ SessionStore = (*InMemorySessions)(nil)
