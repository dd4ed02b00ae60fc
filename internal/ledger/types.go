package ledger

import (
	"math"
	"time"
)

// TxType distinguishes money coming in from money going out.
type TxType string

const (
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// DefaultCategoryID is used when a category cannot be resolved.
const DefaultCategoryID = "other"

// Transaction represents one normalized ledger entry. The persistent store
// owns the canonical copy; this core only validates and dispatches it.
type Transaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Type        TxType    `json:"type"`
	CategoryID  string    `json:"category_id"`
	Currency    string    `json:"currency"`
	Rate        float64   `json:"rate"`
	Amount      float64   `json:"amount"`
	ClaimAmount float64   `json:"claim_amount"`
	Claimed     bool      `json:"claimed"`
	Note        string    `json:"note"`
}

// Validate enforces the invariants required before any store dispatch:
// a finite positive amount, a two-value type, and a non-empty category.
func (t *Transaction) Validate() error {
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) || t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if t.Type != TypeIncome && t.Type != TypeExpense {
		return ErrInvalidType
	}
	if t.CategoryID == "" {
		t.CategoryID = DefaultCategoryID
	}
	return nil
}

// TxPatch carries the fields of a partial transaction update.
// Nil fields are left untouched by the store.
type TxPatch struct {
	Date        *time.Time `json:"date,omitempty"`
	Type        *TxType    `json:"type,omitempty"`
	CategoryID  *string    `json:"category_id,omitempty"`
	Currency    *string    `json:"currency,omitempty"`
	Amount      *float64   `json:"amount,omitempty"`
	ClaimAmount *float64   `json:"claim_amount,omitempty"`
	Claimed     *bool      `json:"claimed,omitempty"`
	Note        *string    `json:"note,omitempty"`
}

// Category is one entry of a user's category taxonomy.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Note is a free-text record kept alongside transactions.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Reminder fires a message to its owner at DueAt.
type Reminder struct {
	ID    string    `json:"id"`
	Text  string    `json:"text"`
	DueAt time.Time `json:"due_at"`
	Done  bool      `json:"done"`
}

// Settings holds per-user preferences consumed by stats and budget tools.
type Settings struct {
	Currency      string  `json:"currency"`
	MonthlyBudget float64 `json:"monthly_budget"`
}
