package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/parse"
)

// HandleMessage processes one incoming text message. Active dialogs take
// the message first; otherwise it is split into record segments, and
// whatever is not an actionable record falls through to the chat answer.
func (a *Assistant) HandleMessage(ctx context.Context, userID, text string) (*dialog.Reply, error) {
	if reply, handled, err := a.dialogs.HandleText(ctx, userID, text); handled {
		return reply, err
	}

	segments := splitSegments(text)
	if len(segments) > 1 {
		return a.handleBatch(ctx, userID, segments)
	}

	intent := a.parseIntent(ctx, userID, text)
	if intent.Actionable() {
		reply, _, err := a.recordIntent(ctx, userID, &intent)
		return reply, err
	}
	return a.Chat(ctx, userID, text)
}

// splitSegments breaks batch input on newlines and both semicolon forms.
func splitSegments(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';' || r == '；'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIntent merges the deterministic parse with the model parse when a
// model chain is configured.
func (a *Assistant) parseIntent(ctx context.Context, userID, text string) parse.Intent {
	var aiIntent *parse.Intent
	if a.aiParser != nil {
		aiIntent = a.aiParser.Parse(ctx, text, a.categoryNames(ctx, userID))
	}
	return ai.Merge(a.parser, text, aiIntent)
}

func (a *Assistant) categoryNames(ctx context.Context, userID string) []string {
	cats, err := a.store.GetCategories(ctx, userID)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return names
}

// recordIntent turns an actionable intent into a stored transaction. The
// bool result reports whether a row was written (false for duplicates).
func (a *Assistant) recordIntent(ctx context.Context, userID string, intent *parse.Intent) (*dialog.Reply, bool, error) {
	tx, err := a.buildTx(ctx, userID, intent)
	if err != nil {
		return &dialog.Reply{Text: "這筆資料不完整，沒有記錄。"}, false, err
	}

	if a.dedup.Seen(userID, tx) {
		return &dialog.Reply{Text: "這筆剛剛已經記過了，略過。"}, false, nil
	}
	if err := a.store.AddTransaction(ctx, userID, tx); err != nil {
		return &dialog.Reply{Text: "儲存失敗，請再試一次。"}, false, fmt.Errorf("assistant.recordIntent: %w", err)
	}
	a.AfterWrite(userID, tx)

	text := fmt.Sprintf("已記錄：%s %.0f %s（%s）", txTypeLabel(tx.Type), tx.Amount, tx.Currency, tx.CategoryID)
	if tx.Claimed {
		text += fmt.Sprintf("，請款 %.0f", tx.ClaimAmount)
	}
	return &dialog.Reply{Text: text}, true, nil
}

// buildTx resolves the intent's loose fields against the user's settings
// and categories.
func (a *Assistant) buildTx(ctx context.Context, userID string, intent *parse.Intent) (*ledger.Transaction, error) {
	if intent.Amount == nil {
		return nil, ledger.ErrInvalidAmount
	}

	date := a.now()
	if intent.Date != "" {
		if d, err := time.Parse("2006-01-02", intent.Date); err == nil {
			date = d
		}
	}

	currency := strings.ToUpper(intent.Currency)
	if currency == "" {
		if settings, err := a.store.GetSettings(ctx, userID); err == nil && settings.Currency != "" {
			currency = settings.Currency
		} else {
			currency = "TWD"
		}
	}

	var claimAmount float64
	claimed := false
	if intent.ClaimAmount != nil {
		claimAmount = *intent.ClaimAmount
		claimed = true
	}
	if intent.Claimed != nil {
		claimed = *intent.Claimed
	}

	// The deterministic parser leaves the type empty unless the text
	// carries an explicit income keyword; a bare record is a spend.
	txType := ledger.TxType(intent.Type)
	if txType == "" {
		txType = ledger.TypeExpense
	}

	tx := &ledger.Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        txType,
		CategoryID:  a.resolveCategory(ctx, userID, intent.CategoryName, intent.Note),
		Currency:    currency,
		Rate:        1,
		Amount:      *intent.Amount,
		ClaimAmount: claimAmount,
		Claimed:     claimed,
		Note:        intent.Note,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// resolveCategory maps a free-form category name onto the user's
// taxonomy, falling back to the default bucket.
func (a *Assistant) resolveCategory(ctx context.Context, userID, name, note string) string {
	if name == "" {
		if a.suggest != nil && note != "" {
			if id := a.suggest(ctx, userID, note); id != "" {
				return id
			}
		}
		return ledger.DefaultCategoryID
	}
	cats, err := a.store.GetCategories(ctx, userID)
	if err != nil {
		return ledger.DefaultCategoryID
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, c := range cats {
		if strings.ToLower(c.ID) == needle || strings.ToLower(c.Name) == needle {
			return c.ID
		}
	}
	return ledger.DefaultCategoryID
}

// handleBatch records each segment independently and reports counts. A
// failing segment never aborts the rest.
func (a *Assistant) handleBatch(ctx context.Context, userID string, segments []string) (*dialog.Reply, error) {
	added, skipped := 0, 0
	for _, seg := range segments {
		intent := a.parseIntent(ctx, userID, seg)
		if !intent.Actionable() {
			skipped++
			continue
		}
		_, wrote, err := a.recordIntent(ctx, userID, &intent)
		if err != nil {
			a.log.Warn().Err(err).Str("user_id", userID).Str("segment", seg).Msg("assistant: batch segment failed")
		}
		if wrote {
			added++
		} else {
			skipped++
		}
	}
	return &dialog.Reply{Text: fmt.Sprintf("批次完成：新增 %d 筆，略過 %d 筆。", added, skipped)}, nil
}

func txTypeLabel(t ledger.TxType) string {
	if t == ledger.TypeIncome {
		return "收入"
	}
	return "支出"
}
