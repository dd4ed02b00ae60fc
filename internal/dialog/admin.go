package dialog

import (
	"context"
	"fmt"
)

// Admin broadcast flow: idle -> awaiting message -> fan out -> idle. Only
// configured admin ids may start it.

func (m *Manager) startAdmin(userID string) (*Reply, error) {
	if !m.adminIDs[userID] {
		return &Reply{Text: "沒有權限。"}, nil
	}
	m.sessions.Set(&State{
		UserID:    userID,
		Kind:      KindAdmin,
		Step:      StepAwaitText,
		CreatedAt: m.now(),
	})
	return &Reply{
		Text:    "請輸入要廣播的訊息：",
		Buttons: []Button{cancelButton(KindAdmin)},
	}, nil
}

func (m *Manager) adminText(ctx context.Context, st *State, text string) (*Reply, error) {
	if text == "" {
		return &Reply{
			Text:    "訊息不能是空的，請再輸入一次：",
			Buttons: []Button{cancelButton(KindAdmin)},
		}, nil
	}
	if m.notifier == nil {
		m.sessions.Delete(st.UserID, KindAdmin)
		return &Reply{Text: "這個環境沒有設定推播通道。"}, nil
	}

	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return &Reply{Text: "讀取使用者清單失敗，請再試一次。"}, fmt.Errorf("dialog.adminText: %w", err)
	}

	sent := 0
	for _, uid := range users {
		if err := m.notifier.Notify(ctx, uid, text); err != nil {
			m.log.Warn().Err(err).Str("user_id", uid).Msg("dialog: broadcast delivery failed")
			continue
		}
		sent++
	}
	m.sessions.Delete(st.UserID, KindAdmin)
	return &Reply{Text: fmt.Sprintf("已發送給 %d 位使用者。", sent)}, nil
}
