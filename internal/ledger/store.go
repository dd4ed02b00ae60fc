package ledger

import (
	"context"
	"errors"
)

// Store errors. ErrUnavailable is fatal for the current operation; callers
// report it to the user and never fall back silently.
var (
	ErrUnavailable   = errors.New("ledger: store unavailable")
	ErrNotFound      = errors.New("ledger: record not found")
	ErrInvalidAmount = errors.New("ledger: amount must be finite and positive")
	ErrInvalidType   = errors.New("ledger: type must be income or expense")
)

// Store is the contract of the persistent ledger collaborator. All records
// are scoped by user id; implementations must be safe for concurrent use.
type Store interface {
	AddTransaction(ctx context.Context, userID string, tx *Transaction) error
	UpdateTransaction(ctx context.Context, userID, id string, patch TxPatch) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	GetTransactions(ctx context.Context, userID string) ([]*Transaction, error)

	GetCategories(ctx context.Context, userID string) ([]*Category, error)

	AddNote(ctx context.Context, userID string, note *Note) error
	GetNotes(ctx context.Context, userID string) ([]*Note, error)

	AddReminder(ctx context.Context, userID string, rem *Reminder) error
	UpdateReminder(ctx context.Context, userID, id string, text string, done bool) error
	DeleteReminder(ctx context.Context, userID, id string) error
	GetReminders(ctx context.Context, userID string) ([]*Reminder, error)

	GetSettings(ctx context.Context, userID string) (*Settings, error)

	// ListUsers returns every user id the store has seen. Used by the admin
	// broadcast dialog and the reminder scheduler.
	ListUsers(ctx context.Context) ([]string, error)
}
