package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// Add-transaction flow: amount -> claim_ask -> [claim_amount] -> category
// -> note -> persist. Every prompt carries a cancel button; the store is
// touched exactly once, at the end.

func (m *Manager) startAddTx(userID string) *Reply {
	m.sessions.Set(&State{
		UserID:    userID,
		Kind:      KindAddTx,
		Step:      StepAmount,
		Tx:        &TxDraft{Type: string(ledger.TypeExpense)},
		CreatedAt: m.now(),
	})
	return &Reply{
		Text:    "請輸入金額：",
		Buttons: []Button{cancelButton(KindAddTx)},
	}
}

func (m *Manager) addTxText(ctx context.Context, st *State, text string) (*Reply, error) {
	switch st.Step {
	case StepAmount:
		v, ok := parseAmountInput(text)
		if !ok {
			return &Reply{
				Text:    "金額格式不對，請輸入正數（例如 150）：",
				Buttons: []Button{cancelButton(KindAddTx)},
			}, nil
		}
		st.Tx.Amount = v
		st.Step = StepClaimAsk
		m.sessions.Set(st)
		return claimAskReply(), nil

	case StepClaimAsk:
		switch normalizeYesNo(text) {
		case "yes":
			st.Step = StepClaimAmount
			m.sessions.Set(st)
			return &Reply{
				Text:    "請輸入請款金額：",
				Buttons: []Button{cancelButton(KindAddTx)},
			}, nil
		case "no":
			st.Tx.Claimed = false
			st.Tx.ClaimAmount = 0
			return m.toCategoryStep(ctx, st)
		}
		return claimAskReply(), nil

	case StepClaimAmount:
		v, ok := parseAmountInput(text)
		if !ok {
			return &Reply{
				Text:    "請款金額格式不對，請輸入正數：",
				Buttons: []Button{cancelButton(KindAddTx)},
			}, nil
		}
		st.Tx.ClaimAmount = v
		st.Tx.Claimed = true
		return m.toCategoryStep(ctx, st)

	case StepCategory:
		id, ok := m.matchCategory(ctx, st.UserID, text)
		if !ok {
			reply := m.categoryReply(ctx, st.UserID, "")
			reply.Text = "找不到這個分類，請從清單選擇："
			return reply, nil
		}
		st.Tx.CategoryID = id
		st.Step = StepNote
		m.sessions.Set(st)
		return noteReply(), nil

	case StepNote:
		if !isSkipWord(text) {
			st.Tx.Note = text
		}
		return m.finishAddTx(ctx, st)
	}
	return nil, fmt.Errorf("dialog.addTxText: unexpected step %q", st.Step)
}

func (m *Manager) addTxChoice(ctx context.Context, st *State, a ChoiceAction) (*Reply, error) {
	switch a.Step {
	case StepClaimAsk:
		if st.Step != StepClaimAsk {
			return claimAskReply(), nil
		}
		if a.Value == "yes" {
			st.Step = StepClaimAmount
			m.sessions.Set(st)
			return &Reply{
				Text:    "請輸入請款金額：",
				Buttons: []Button{cancelButton(KindAddTx)},
			}, nil
		}
		st.Tx.Claimed = false
		st.Tx.ClaimAmount = 0
		return m.toCategoryStep(ctx, st)

	case StepCategory:
		if st.Step != StepCategory {
			return &Reply{Text: "這個按鈕已經失效了。"}, nil
		}
		st.Tx.CategoryID = a.Value
		if st.Tx.CategoryID == "" {
			st.Tx.CategoryID = ledger.DefaultCategoryID
		}
		st.Step = StepNote
		m.sessions.Set(st)
		return noteReply(), nil

	case StepNote:
		if st.Step != StepNote {
			return &Reply{Text: "這個按鈕已經失效了。"}, nil
		}
		// The only note button is "skip".
		return m.finishAddTx(ctx, st)
	}
	return nil, fmt.Errorf("dialog.addTxChoice: unexpected step %q", a.Step)
}

func (m *Manager) toCategoryStep(ctx context.Context, st *State) (*Reply, error) {
	st.Step = StepCategory
	m.sessions.Set(st)
	suggested := ""
	if m.suggest != nil {
		suggested = m.suggest(ctx, st.UserID, st.Tx.Note)
	}
	return m.categoryReply(ctx, st.UserID, suggested), nil
}

// categoryReply builds the category picker. A suggested id is promoted to
// the front of the button list.
func (m *Manager) categoryReply(ctx context.Context, userID, suggested string) *Reply {
	cats, err := m.store.GetCategories(ctx, userID)
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("dialog: category list unavailable")
		return &Reply{
			Text:    "請輸入分類名稱：",
			Buttons: []Button{cancelButton(KindAddTx)},
		}
	}
	buttons := make([]Button, 0, len(cats)+1)
	for _, c := range cats {
		b := button(c.Name, ChoiceAction{Kind: KindAddTx, Step: StepCategory, Value: c.ID})
		if c.ID == suggested {
			buttons = append([]Button{b}, buttons...)
			continue
		}
		buttons = append(buttons, b)
	}
	buttons = append(buttons, cancelButton(KindAddTx))
	return &Reply{Text: "請選擇分類：", Buttons: buttons}
}

func (m *Manager) matchCategory(ctx context.Context, userID, text string) (string, bool) {
	cats, err := m.store.GetCategories(ctx, userID)
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("dialog: category lookup unavailable")
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	for _, c := range cats {
		if strings.ToLower(c.ID) == needle || strings.ToLower(c.Name) == needle {
			return c.ID, true
		}
	}
	return "", false
}

// finishAddTx is the single persistence point of the flow. On store
// failure the session survives so the user can retry the last step.
func (m *Manager) finishAddTx(ctx context.Context, st *State) (*Reply, error) {
	currency := st.Tx.Currency
	if currency == "" {
		if settings, err := m.store.GetSettings(ctx, st.UserID); err == nil && settings.Currency != "" {
			currency = settings.Currency
		} else {
			currency = "TWD"
		}
	}

	date := m.now()
	if st.Tx.Date != "" {
		if d, err := time.Parse("2006-01-02", st.Tx.Date); err == nil {
			date = d
		}
	}

	tx := &ledger.Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        ledger.TxType(st.Tx.Type),
		CategoryID:  st.Tx.CategoryID,
		Currency:    currency,
		Rate:        1,
		Amount:      st.Tx.Amount,
		ClaimAmount: st.Tx.ClaimAmount,
		Claimed:     st.Tx.Claimed,
		Note:        st.Tx.Note,
	}
	if err := tx.Validate(); err != nil {
		// Per-step validation should make this unreachable; if a bad
		// draft slips through anyway, send the user back to the amount
		// step instead of throwing the dialog away.
		st.Step = StepAmount
		m.sessions.Set(st)
		return &Reply{
			Text:    "金額不對，請重新輸入金額：",
			Buttons: []Button{cancelButton(KindAddTx)},
		}, err
	}
	if err := m.store.AddTransaction(ctx, st.UserID, tx); err != nil {
		return &Reply{Text: "儲存失敗，請再試一次。"}, fmt.Errorf("dialog.finishAddTx: %w", err)
	}
	m.sessions.Delete(st.UserID, KindAddTx)
	if m.afterWrite != nil {
		m.afterWrite(st.UserID, tx)
	}
	return &Reply{Text: fmt.Sprintf("已記錄：%s %.0f %s（%s）", typeLabel(tx.Type), tx.Amount, tx.Currency, tx.CategoryID)}, nil
}

func claimAskReply() *Reply {
	return &Reply{
		Text: "這筆需要請款嗎？",
		Buttons: []Button{
			button("要", ChoiceAction{Kind: KindAddTx, Step: StepClaimAsk, Value: "yes"}),
			button("不用", ChoiceAction{Kind: KindAddTx, Step: StepClaimAsk, Value: "no"}),
			cancelButton(KindAddTx),
		},
	}
}

func noteReply() *Reply {
	return &Reply{
		Text: "請輸入備註（或按略過）：",
		Buttons: []Button{
			button("略過", ChoiceAction{Kind: KindAddTx, Step: StepNote, Value: "skip"}),
			cancelButton(KindAddTx),
		},
	}
}

func normalizeYesNo(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "是", "要", "有", "好":
		return "yes"
	case "no", "n", "否", "不", "不用", "不要", "沒有":
		return "no"
	}
	return ""
}

func isSkipWord(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "skip", "略過", "跳過", "-", "無":
		return true
	}
	return false
}

func typeLabel(t ledger.TxType) string {
	if t == ledger.TypeIncome {
		return "收入"
	}
	return "支出"
}
