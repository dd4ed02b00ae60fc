// Package memory provides an in-memory ledger store. It is suitable for
// single-instance deployments and testing; production setups should use the
// sqlitestore package or an external backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// DefaultCategories seed every new user's taxonomy.
var DefaultCategories = []*ledger.Category{
	{ID: "food", Name: "餐飲"},
	{ID: "drink", Name: "飲料"},
	{ID: "transport", Name: "交通"},
	{ID: "housing", Name: "居住"},
	{ID: "entertainment", Name: "娛樂"},
	{ID: "shopping", Name: "購物"},
	{ID: "medical", Name: "醫療"},
	{ID: "salary", Name: "薪資"},
	{ID: ledger.DefaultCategoryID, Name: "其他"},
}

type userData struct {
	transactions []*ledger.Transaction
	notes        []*ledger.Note
	reminders    []*ledger.Reminder
	categories   []*ledger.Category
	settings     ledger.Settings
}

// Store keeps all records in process memory, guarded by a single mutex.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{users: make(map[string]*userData)}
}

func (s *Store) user(userID string) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = &userData{
			categories: append([]*ledger.Category(nil), DefaultCategories...),
			settings:   ledger.Settings{Currency: "TWD"},
		}
		s.users[userID] = u
	}
	return u
}

func (s *Store) AddTransaction(ctx context.Context, userID string, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.user(userID).transactions = append(s.user(userID).transactions, &cp)
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, patch ledger.TxPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.user(userID).transactions {
		if tx.ID != id {
			continue
		}
		applyPatch(tx, patch)
		return nil
	}
	return ledger.ErrNotFound
}

func applyPatch(tx *ledger.Transaction, patch ledger.TxPatch) {
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}
	if patch.Currency != nil {
		tx.Currency = *patch.Currency
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.ClaimAmount != nil {
		tx.ClaimAmount = *patch.ClaimAmount
	}
	if patch.Claimed != nil {
		tx.Claimed = *patch.Claimed
	}
	if patch.Note != nil {
		tx.Note = *patch.Note
	}
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for i, tx := range u.transactions {
		if tx.ID == id {
			u.transactions = append(u.transactions[:i], u.transactions[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) GetTransactions(ctx context.Context, userID string) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*ledger.Transaction, len(u.transactions))
	for i, tx := range u.transactions {
		cp := *tx
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetCategories(ctx context.Context, userID string) ([]*ledger.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	out := make([]*ledger.Category, len(u.categories))
	copy(out, u.categories)
	return out, nil
}

func (s *Store) AddNote(ctx context.Context, userID string, note *ledger.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *note
	s.user(userID).notes = append(s.user(userID).notes, &cp)
	return nil
}

func (s *Store) GetNotes(ctx context.Context, userID string) ([]*ledger.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*ledger.Note, len(u.notes))
	copy(out, u.notes)
	return out, nil
}

func (s *Store) AddReminder(ctx context.Context, userID string, rem *ledger.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rem
	s.user(userID).reminders = append(s.user(userID).reminders, &cp)
	return nil
}

func (s *Store) UpdateReminder(ctx context.Context, userID, id string, text string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rem := range s.user(userID).reminders {
		if rem.ID == id {
			if text != "" {
				rem.Text = text
			}
			rem.Done = done
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) DeleteReminder(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	for i, rem := range u.reminders {
		if rem.ID == id {
			u.reminders = append(u.reminders[:i], u.reminders[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) GetReminders(ctx context.Context, userID string) ([]*ledger.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*ledger.Reminder, len(u.reminders))
	copy(out, u.reminders)
	return out, nil
}

func (s *Store) GetSettings(ctx context.Context, userID string) (*ledger.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.user(userID).settings
	return &cp, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

var _ ledger.Store = (*Store)(nil)
