// Package parse extracts structured ledger intents from free-form text
// using layered pattern rules. It never calls out to the network; a missing
// field means "unknown", never a guess.
package parse

// Transaction direction values carried by an Intent.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Intent is the structured interpretation of one line of text as a candidate
// ledger operation. Pointer fields are nil when the text gave no signal.
type Intent struct {
	Type         string   `json:"type,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Date         string   `json:"date,omitempty"` // YYYY-MM-DD
	CategoryName string   `json:"categoryName,omitempty"`
	ClaimAmount  *float64 `json:"claimAmount,omitempty"`
	Claimed      *bool    `json:"claimed,omitempty"`
	Motivation   string   `json:"motivation,omitempty"`
	Emotion      string   `json:"emotion,omitempty"`
	Note         string   `json:"note"`
}

// Actionable reports whether the intent carries enough signal to become a
// ledger write on its own: a present, positive amount.
func (in *Intent) Actionable() bool {
	return in.Amount != nil && *in.Amount > 0
}
