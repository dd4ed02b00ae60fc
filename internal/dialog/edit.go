package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// Editable transaction fields.
const (
	FieldAmount      = "amount"
	FieldClaimAmount = "claim_amount"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldNote        = "note"
)

var editPrompts = map[string]string{
	FieldAmount:      "請輸入新的金額：",
	FieldClaimAmount: "請輸入新的請款金額：",
	FieldCategory:    "請輸入新的分類：",
	FieldDate:        "請輸入新的日期（YYYY-MM-DD）：",
	FieldNote:        "請輸入新的備註：",
}

func (m *Manager) startEdit(ctx context.Context, userID string, a EditFieldAction) (*Reply, error) {
	prompt, ok := editPrompts[a.Field]
	if !ok {
		return nil, fmt.Errorf("dialog.startEdit: unknown field %q", a.Field)
	}
	m.sessions.Set(&State{
		UserID:    userID,
		Kind:      KindEditTx,
		Step:      StepAwaitValue,
		EditTxID:  a.TxID,
		EditField: a.Field,
		CreatedAt: m.now(),
	})
	return &Reply{Text: prompt, Buttons: []Button{cancelButton(KindEditTx)}}, nil
}

func (m *Manager) editTxText(ctx context.Context, st *State, text string) (*Reply, error) {
	patch, ok := m.buildPatch(ctx, st, text)
	if !ok {
		return &Reply{
			Text:    "格式不對。" + editPrompts[st.EditField],
			Buttons: []Button{cancelButton(KindEditTx)},
		}, nil
	}

	err := m.store.UpdateTransaction(ctx, st.UserID, st.EditTxID, patch)
	if errors.Is(err, ledger.ErrNotFound) {
		m.sessions.Delete(st.UserID, KindEditTx)
		return &Reply{Text: "找不到這筆記錄，可能已被刪除。"}, nil
	}
	if err != nil {
		return &Reply{Text: "更新失敗，請再試一次。"}, fmt.Errorf("dialog.editTxText: %w", err)
	}
	m.sessions.Delete(st.UserID, KindEditTx)
	return &Reply{Text: "已更新。"}, nil
}

func (m *Manager) buildPatch(ctx context.Context, st *State, text string) (ledger.TxPatch, bool) {
	var patch ledger.TxPatch
	switch st.EditField {
	case FieldAmount:
		v, ok := parseAmountInput(text)
		if !ok {
			return patch, false
		}
		patch.Amount = &v
	case FieldClaimAmount:
		v, ok := parseAmountInput(text)
		if !ok {
			return patch, false
		}
		claimed := v > 0
		patch.ClaimAmount = &v
		patch.Claimed = &claimed
	case FieldCategory:
		id, ok := m.matchCategory(ctx, st.UserID, text)
		if !ok {
			return patch, false
		}
		patch.CategoryID = &id
	case FieldDate:
		d, err := time.Parse("2006-01-02", text)
		if err != nil {
			return patch, false
		}
		patch.Date = &d
	case FieldNote:
		note := text
		patch.Note = &note
	default:
		return patch, false
	}
	return patch, true
}
