package dialog

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// ProposeAddTx parks an AI-suggested transaction behind a confirmation
// prompt. Nothing reaches the store until the user approves.
func (m *Manager) ProposeAddTx(userID string, tx *ledger.Transaction) *Reply {
	id := m.pending.Add(&PendingAction{
		UserID:    userID,
		Kind:      PendingAddTx,
		Tx:        tx,
		CreatedAt: m.now(),
	})
	return &Reply{
		Text: fmt.Sprintf("要記這筆嗎？%s %.0f %s（%s）%s",
			typeLabel(tx.Type), tx.Amount, tx.Currency, tx.CategoryID, tx.Note),
		Buttons: []Button{
			button("確認", ConfirmAction{ActionID: id, Approve: true}),
			button("取消", ConfirmAction{ActionID: id, Approve: false}),
		},
	}
}

// ProposeDeleteTx parks a delete behind a confirmation prompt.
func (m *Manager) ProposeDeleteTx(userID, txID, summary string) *Reply {
	id := m.pending.Add(&PendingAction{
		UserID:    userID,
		Kind:      PendingDeleteTx,
		TxID:      txID,
		CreatedAt: m.now(),
	})
	return &Reply{
		Text: "確定要刪除這筆記錄嗎？" + summary,
		Buttons: []Button{
			button("刪除", ConfirmAction{ActionID: id, Approve: true}),
			button("取消", ConfirmAction{ActionID: id, Approve: false}),
		},
	}
}

// resolvePending consumes a pending action exactly once. A repeated press
// on the same button finds nothing and reports the prompt as expired.
func (m *Manager) resolvePending(ctx context.Context, userID string, a ConfirmAction) (*Reply, error) {
	pa, ok := m.pending.Take(a.ActionID)
	if !ok {
		return &Reply{Text: "這個確認已經失效了。"}, nil
	}
	if pa.UserID != userID {
		m.log.Warn().Str("user_id", userID).Str("owner", pa.UserID).Msg("dialog: confirm from wrong user")
		return &Reply{Text: "這個確認已經失效了。"}, nil
	}
	if !a.Approve {
		return &Reply{Text: "已取消，沒有任何變更。"}, nil
	}

	switch pa.Kind {
	case PendingAddTx:
		if err := pa.Tx.Validate(); err != nil {
			return &Reply{Text: "這筆資料不完整，無法記錄。"}, err
		}
		if err := m.store.AddTransaction(ctx, userID, pa.Tx); err != nil {
			return &Reply{Text: "儲存失敗，請再試一次。"}, fmt.Errorf("dialog.resolvePending: %w", err)
		}
		if m.afterWrite != nil {
			m.afterWrite(userID, pa.Tx)
		}
		return &Reply{Text: fmt.Sprintf("已記錄：%s %.0f %s", typeLabel(pa.Tx.Type), pa.Tx.Amount, pa.Tx.Currency)}, nil
	case PendingDeleteTx:
		if err := m.store.DeleteTransaction(ctx, userID, pa.TxID); err != nil {
			return &Reply{Text: "刪除失敗，請再試一次。"}, fmt.Errorf("dialog.resolvePending: %w", err)
		}
		return &Reply{Text: "已刪除。"}, nil
	}
	return nil, fmt.Errorf("dialog.resolvePending: unknown pending kind %q", pa.Kind)
}
