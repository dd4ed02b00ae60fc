package ai

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/parse"
)

// Bounds on free-text fields coming back from a model.
const (
	maxCategoryLen = 64
	maxNoteLen     = 500
)

var strictDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// normalizeIntent clamps a raw model object to the intent shape: the type
// enum defaults to expense, amounts must be finite and positive, dates must
// be strict calendar dates, currency is upper-cased, and free text is
// truncated to bounded lengths.
func normalizeIntent(raw map[string]interface{}) *parse.Intent {
	in := &parse.Intent{}

	if getString(raw, "type") == parse.TypeIncome {
		in.Type = parse.TypeIncome
	} else {
		in.Type = parse.TypeExpense
	}

	if v, ok := getNumber(raw, "amount"); ok && isUsableAmount(v) {
		in.Amount = &v
	}
	if v, ok := getNumber(raw, "claimAmount"); ok && isUsableAmount(v) {
		in.ClaimAmount = &v
	}
	if v, ok := raw["claimed"].(bool); ok {
		in.Claimed = &v
	}

	if d := getString(raw, "date"); strictDateRe.MatchString(d) {
		if _, err := time.Parse("2006-01-02", d); err == nil {
			in.Date = d
		}
	}

	if c := getString(raw, "currency"); c != "" {
		c = strings.ToUpper(c)
		if len(c) <= 8 {
			in.Currency = c
		}
	}

	in.CategoryName = truncate(getString(raw, "categoryName"), maxCategoryLen)
	in.Note = truncate(getString(raw, "note"), maxNoteLen)

	return in
}

func isUsableAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func getNumber(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int: // unlikely from encoding/json, but harmless to support
		return float64(v), true
	}
	return 0, false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
