package ai

import (
	"math"
	"strings"
	"testing"

	"github.com/dvloznov/ledger-assistant/internal/parse"
)

func TestNormalizeIntent(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]interface{}
		check func(t *testing.T, in *parse.Intent)
	}{
		{
			name: "type clamps to expense by default",
			raw:  map[string]interface{}{"type": "transfer"},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Type != parse.TypeExpense {
					t.Errorf("Type = %q, want expense", in.Type)
				}
			},
		},
		{
			name: "income preserved",
			raw:  map[string]interface{}{"type": "income"},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Type != parse.TypeIncome {
					t.Errorf("Type = %q, want income", in.Type)
				}
			},
		},
		{
			name: "negative amount rejected",
			raw:  map[string]interface{}{"amount": -5.0},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Amount != nil {
					t.Errorf("Amount = %v, want nil", *in.Amount)
				}
			},
		},
		{
			name: "infinite amount rejected",
			raw:  map[string]interface{}{"amount": math.Inf(1)},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Amount != nil {
					t.Errorf("Amount = %v, want nil", *in.Amount)
				}
			},
		},
		{
			name: "loose date rejected",
			raw:  map[string]interface{}{"date": "yesterday"},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Date != "" {
					t.Errorf("Date = %q, want empty", in.Date)
				}
			},
		},
		{
			name: "impossible calendar date rejected",
			raw:  map[string]interface{}{"date": "2025-02-30"},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Date != "" {
					t.Errorf("Date = %q, want empty", in.Date)
				}
			},
		},
		{
			name: "currency upper-cased",
			raw:  map[string]interface{}{"currency": "twd"},
			check: func(t *testing.T, in *parse.Intent) {
				if in.Currency != "TWD" {
					t.Errorf("Currency = %q, want TWD", in.Currency)
				}
			},
		},
		{
			name: "note truncated",
			raw:  map[string]interface{}{"note": strings.Repeat("a", 600)},
			check: func(t *testing.T, in *parse.Intent) {
				if len(in.Note) != maxNoteLen {
					t.Errorf("len(Note) = %d, want %d", len(in.Note), maxNoteLen)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, normalizeIntent(tt.raw))
		})
	}
}
