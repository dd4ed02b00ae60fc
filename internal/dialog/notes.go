package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// Single-step flows: add_note stores the next message verbatim, and
// add_reminder parses a due time off the front of it.

func (m *Manager) startAddNote(userID string) *Reply {
	m.sessions.Set(&State{
		UserID:    userID,
		Kind:      KindAddNote,
		Step:      StepAwaitText,
		CreatedAt: m.now(),
	})
	return &Reply{
		Text:    "請輸入備忘內容：",
		Buttons: []Button{cancelButton(KindAddNote)},
	}
}

func (m *Manager) addNoteText(ctx context.Context, st *State, text string) (*Reply, error) {
	if text == "" {
		return &Reply{
			Text:    "備忘不能是空的，請再輸入一次：",
			Buttons: []Button{cancelButton(KindAddNote)},
		}, nil
	}
	note := &ledger.Note{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: m.now(),
	}
	if err := m.store.AddNote(ctx, st.UserID, note); err != nil {
		return &Reply{Text: "儲存失敗，請再試一次。"}, fmt.Errorf("dialog.addNoteText: %w", err)
	}
	m.sessions.Delete(st.UserID, KindAddNote)
	return &Reply{Text: "備忘已儲存。"}, nil
}

func (m *Manager) startAddReminder(userID string) *Reply {
	m.sessions.Set(&State{
		UserID:    userID,
		Kind:      KindAddReminder,
		Step:      StepAwaitText,
		CreatedAt: m.now(),
	})
	return &Reply{
		Text:    "請輸入提醒，格式：日期 時間 內容（例如 2025-10-20 09:00 繳房租，也可以用 明天 09:00 繳房租）：",
		Buttons: []Button{cancelButton(KindAddReminder)},
	}
}

func (m *Manager) addReminderText(ctx context.Context, st *State, text string) (*Reply, error) {
	dueAt, body, ok := parseReminderInput(text, m.now())
	if !ok {
		return &Reply{
			Text:    "看不懂這個時間，請用「2025-10-20 09:00 內容」或「明天 09:00 內容」的格式：",
			Buttons: []Button{cancelButton(KindAddReminder)},
		}, nil
	}
	rem := &ledger.Reminder{
		ID:    uuid.NewString(),
		Text:  body,
		DueAt: dueAt,
	}
	if err := m.store.AddReminder(ctx, st.UserID, rem); err != nil {
		return &Reply{Text: "儲存失敗，請再試一次。"}, fmt.Errorf("dialog.addReminderText: %w", err)
	}
	m.sessions.Delete(st.UserID, KindAddReminder)
	return &Reply{Text: fmt.Sprintf("好，%s 提醒你：%s", dueAt.Format("2006-01-02 15:04"), body)}, nil
}

// parseReminderInput reads a leading date (absolute or 今天/明天/後天) and
// optional HH:MM; the remainder is the reminder body. Missing time
// defaults to 09:00.
func parseReminderInput(text string, now time.Time) (time.Time, string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return time.Time{}, "", false
	}

	var day time.Time
	switch fields[0] {
	case "今天", "today":
		day = now
	case "明天", "tomorrow":
		day = now.AddDate(0, 0, 1)
	case "後天":
		day = now.AddDate(0, 0, 2)
	default:
		d, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			return time.Time{}, "", false
		}
		day = d
	}
	fields = fields[1:]

	hour, minute := 9, 0
	if t, err := time.Parse("15:04", fields[0]); err == nil {
		hour, minute = t.Hour(), t.Minute()
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return time.Time{}, "", false
	}

	due := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	return due, strings.Join(fields, " "), true
}
