// Package sqlitestore persists the ledger in a local SQLite database. It
// is the production backend for single-node deployments; the memory
// package covers tests and throwaway runs.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/ledger/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	currency TEXT NOT NULL DEFAULT 'TWD',
	monthly_budget REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transactions (
	user_id TEXT NOT NULL,
	id TEXT NOT NULL,
	date TIMESTAMP NOT NULL,
	type TEXT NOT NULL,
	category_id TEXT NOT NULL,
	currency TEXT NOT NULL,
	rate REAL NOT NULL,
	amount REAL NOT NULL,
	claim_amount REAL NOT NULL,
	claimed INTEGER NOT NULL,
	note TEXT NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, date);

CREATE TABLE IF NOT EXISTS categories (
	user_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS notes (
	user_id TEXT NOT NULL,
	id TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS reminders (
	user_id TEXT NOT NULL,
	id TEXT NOT NULL,
	text TEXT NOT NULL,
	due_at TIMESTAMP NOT NULL,
	done INTEGER NOT NULL,
	PRIMARY KEY (user_id, id)
);
`

// Store implements ledger.Store on top of a SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.Open: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore.Open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureUser seeds the default taxonomy and settings the first time a
// user id shows up.
func (s *Store) ensureUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("sqlitestore.ensureUser: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for i, cat := range memory.DefaultCategories {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (user_id, id, name, position) VALUES (?, ?, ?, ?)`,
			userID, cat.ID, cat.Name, i)
		if err != nil {
			return fmt.Errorf("sqlitestore.ensureUser: %w", err)
		}
	}
	return nil
}

func (s *Store) AddTransaction(ctx context.Context, userID string, tx *ledger.Transaction) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, id, date, type, category_id, currency, rate, amount, claim_amount, claimed, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, tx.ID, tx.Date.UTC(), string(tx.Type), tx.CategoryID, tx.Currency,
		tx.Rate, tx.Amount, tx.ClaimAmount, boolToInt(tx.Claimed), tx.Note)
	if err != nil {
		return fmt.Errorf("sqlitestore.AddTransaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, patch ledger.TxPatch) error {
	query := `UPDATE transactions SET `
	args := []any{}
	sep := ""
	add := func(col string, v any) {
		query += sep + col + " = ?"
		args = append(args, v)
		sep = ", "
	}
	if patch.Date != nil {
		add("date", patch.Date.UTC())
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.CategoryID != nil {
		add("category_id", *patch.CategoryID)
	}
	if patch.Currency != nil {
		add("currency", *patch.Currency)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.ClaimAmount != nil {
		add("claim_amount", *patch.ClaimAmount)
	}
	if patch.Claimed != nil {
		add("claimed", boolToInt(*patch.Claimed))
	}
	if patch.Note != nil {
		add("note", *patch.Note)
	}
	if len(args) == 0 {
		return nil
	}
	query += ` WHERE user_id = ? AND id = ?`
	args = append(args, userID, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlitestore.UpdateTransaction: %w", err)
	}
	return requireRow(res, "sqlitestore.UpdateTransaction")
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlitestore.DeleteTransaction: %w", err)
	}
	return requireRow(res, "sqlitestore.DeleteTransaction")
}

func (s *Store) GetTransactions(ctx context.Context, userID string) ([]*ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, type, category_id, currency, rate, amount, claim_amount, claimed, note
		 FROM transactions WHERE user_id = ? ORDER BY date ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetTransactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var txType string
		var claimed int
		if err := rows.Scan(&tx.ID, &tx.Date, &txType, &tx.CategoryID, &tx.Currency,
			&tx.Rate, &tx.Amount, &tx.ClaimAmount, &claimed, &tx.Note); err != nil {
			return nil, fmt.Errorf("sqlitestore.GetTransactions: %w", err)
		}
		tx.Type = ledger.TxType(txType)
		tx.Claimed = claimed != 0
		out = append(out, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore.GetTransactions: %w", err)
	}
	return out, nil
}

func (s *Store) GetCategories(ctx context.Context, userID string) ([]*ledger.Category, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM categories WHERE user_id = ? ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetCategories: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Category
	for rows.Next() {
		var cat ledger.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, fmt.Errorf("sqlitestore.GetCategories: %w", err)
		}
		out = append(out, &cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore.GetCategories: %w", err)
	}
	return out, nil
}

func (s *Store) AddNote(ctx context.Context, userID string, note *ledger.Note) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, id, text, created_at) VALUES (?, ?, ?, ?)`,
		userID, note.ID, note.Text, note.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlitestore.AddNote: %w", err)
	}
	return nil
}

func (s *Store) GetNotes(ctx context.Context, userID string) ([]*ledger.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM notes WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetNotes: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Note
	for rows.Next() {
		var note ledger.Note
		if err := rows.Scan(&note.ID, &note.Text, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlitestore.GetNotes: %w", err)
		}
		out = append(out, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore.GetNotes: %w", err)
	}
	return out, nil
}

func (s *Store) AddReminder(ctx context.Context, userID string, rem *ledger.Reminder) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, id, text, due_at, done) VALUES (?, ?, ?, ?, ?)`,
		userID, rem.ID, rem.Text, rem.DueAt.UTC(), boolToInt(rem.Done))
	if err != nil {
		return fmt.Errorf("sqlitestore.AddReminder: %w", err)
	}
	return nil
}

func (s *Store) UpdateReminder(ctx context.Context, userID, id string, text string, done bool) error {
	var res sql.Result
	var err error
	if text != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE reminders SET text = ?, done = ? WHERE user_id = ? AND id = ?`,
			text, boolToInt(done), userID, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE reminders SET done = ? WHERE user_id = ? AND id = ?`,
			boolToInt(done), userID, id)
	}
	if err != nil {
		return fmt.Errorf("sqlitestore.UpdateReminder: %w", err)
	}
	return requireRow(res, "sqlitestore.UpdateReminder")
}

func (s *Store) DeleteReminder(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlitestore.DeleteReminder: %w", err)
	}
	return requireRow(res, "sqlitestore.DeleteReminder")
}

func (s *Store) GetReminders(ctx context.Context, userID string) ([]*ledger.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, due_at, done FROM reminders WHERE user_id = ? ORDER BY due_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetReminders: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Reminder
	for rows.Next() {
		var rem ledger.Reminder
		var done int
		if err := rows.Scan(&rem.ID, &rem.Text, &rem.DueAt, &done); err != nil {
			return nil, fmt.Errorf("sqlitestore.GetReminders: %w", err)
		}
		rem.Done = done != 0
		out = append(out, &rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore.GetReminders: %w", err)
	}
	return out, nil
}

func (s *Store) GetSettings(ctx context.Context, userID string) (*ledger.Settings, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	var settings ledger.Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT currency, monthly_budget FROM users WHERE id = ?`, userID).
		Scan(&settings.Currency, &settings.MonthlyBudget)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.GetSettings: %w", err)
	}
	return &settings, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore.ListUsers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitestore.ListUsers: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore.ListUsers: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ledger.Store = (*Store)(nil)
