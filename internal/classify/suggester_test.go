package classify

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func labeled(category, note string) *ledger.Transaction {
	return &ledger.Transaction{
		Date:       time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		Type:       ledger.TypeExpense,
		CategoryID: category,
		Currency:   "TWD",
		Amount:     100,
		Note:       note,
	}
}

func TestSuggester_LearnsFromNotes(t *testing.T) {
	s := NewSuggester()
	err := s.Train("user-1", []*ledger.Transaction{
		labeled("food", "午餐 便當"),
		labeled("food", "晚餐 拉麵"),
		labeled("drink", "咖啡 拿鐵"),
		labeled("drink", "手搖 紅茶"),
		labeled("transport", "捷運 車票"),
		labeled("transport", "高鐵 台北"),
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	ctx := context.Background()
	if got := s.Suggest(ctx, "user-1", "買咖啡"); got != "drink" {
		t.Errorf("Suggest(買咖啡) = %q, want drink", got)
	}
	if got := s.Suggest(ctx, "user-1", "高鐵 票"); got != "transport" {
		t.Errorf("Suggest(高鐵 票) = %q, want transport", got)
	}
}

func TestSuggester_SilentWithoutModel(t *testing.T) {
	s := NewSuggester()
	if got := s.Suggest(context.Background(), "user-1", "咖啡"); got != "" {
		t.Errorf("Suggest without training = %q, want empty", got)
	}
}

func TestSuggester_TooFewExamplesDropsModel(t *testing.T) {
	s := NewSuggester()

	// Enough data first.
	err := s.Train("user-1", []*ledger.Transaction{
		labeled("food", "午餐 便當"),
		labeled("food", "晚餐 拉麵"),
		labeled("drink", "咖啡 拿鐵"),
		labeled("drink", "手搖 紅茶"),
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := s.Suggest(context.Background(), "user-1", "拿鐵"); got == "" {
		t.Fatal("expected a suggestion after training")
	}

	// Retraining on a nearly empty ledger removes the stale model.
	if err := s.Train("user-1", []*ledger.Transaction{labeled("food", "便當")}); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if got := s.Suggest(context.Background(), "user-1", "拿鐵"); got != "" {
		t.Errorf("Suggest after model drop = %q, want empty", got)
	}
}

func TestSuggester_SingleCategoryIsNotAModel(t *testing.T) {
	s := NewSuggester()
	err := s.Train("user-1", []*ledger.Transaction{
		labeled("food", "午餐"),
		labeled("food", "晚餐"),
		labeled("food", "宵夜"),
		labeled("food", "早餐"),
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if got := s.Suggest(context.Background(), "user-1", "午餐"); got != "" {
		t.Errorf("Suggest with one class = %q, want empty", got)
	}
}
