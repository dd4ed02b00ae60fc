package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func (r *Registry) registerReminderTools() {
	r.add(ai.ToolDecl{
		Name:        "list_reminders",
		Description: "List the user's reminders with their due times.",
		Params: map[string]ai.ParamDecl{
			"include_done": {Type: "boolean", Description: "also list completed reminders"},
		},
	}, r.listReminders)

	r.add(ai.ToolDecl{
		Name:        "add_reminder",
		Description: "Schedule a reminder message.",
		Params: map[string]ai.ParamDecl{
			"text": {Type: "string", Description: "reminder content"},
			"due":  {Type: "string", Description: "due time, YYYY-MM-DD HH:MM"},
		},
		Required: []string{"text", "due"},
	}, r.addReminder)

	r.add(ai.ToolDecl{
		Name:        "update_reminder",
		Description: "Change a reminder's text or mark it done.",
		Params: map[string]ai.ParamDecl{
			"id":   {Type: "string", Description: "reminder id"},
			"text": {Type: "string", Description: "new content, empty keeps the current one"},
			"done": {Type: "boolean", Description: "completion flag"},
		},
		Required: []string{"id"},
	}, r.updateReminder)

	r.add(ai.ToolDecl{
		Name:        "delete_reminder",
		Description: "Delete a reminder.",
		Params: map[string]ai.ParamDecl{
			"id": {Type: "string", Description: "reminder id"},
		},
		Required: []string{"id"},
	}, r.deleteReminder)
}

func (r *Registry) listReminders(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	rems, err := r.store.GetReminders(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list_reminders: %w", err)
	}
	includeDone, _ := argBool(args, "include_done")

	rows := make([]map[string]any, 0, len(rems))
	for _, rem := range rems {
		if rem.Done && !includeDone {
			continue
		}
		rows = append(rows, map[string]any{
			"id":   rem.ID,
			"text": rem.Text,
			"due":  rem.DueAt.Format("2006-01-02 15:04"),
			"done": rem.Done,
		})
	}
	return map[string]any{"reminders": rows, "count": len(rows)}, nil, nil
}

func (r *Registry) addReminder(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	text := argString(args, "text")
	if text == "" {
		return nil, nil, fmt.Errorf("add_reminder: text is required")
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", argString(args, "due"), r.now().Location())
	if err != nil {
		return nil, nil, fmt.Errorf("add_reminder: invalid due time %q, want YYYY-MM-DD HH:MM", argString(args, "due"))
	}

	rem := &ledger.Reminder{
		ID:    uuid.NewString(),
		Text:  text,
		DueAt: due,
	}
	if err := r.store.AddReminder(ctx, userID, rem); err != nil {
		return nil, nil, fmt.Errorf("add_reminder: %w", err)
	}
	return map[string]any{"status": "scheduled", "id": rem.ID, "due": due.Format("2006-01-02 15:04")}, nil, nil
}

func (r *Registry) updateReminder(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, nil, fmt.Errorf("update_reminder: id is required")
	}
	done, _ := argBool(args, "done")
	if err := r.store.UpdateReminder(ctx, userID, id, argString(args, "text"), done); err != nil {
		return nil, nil, fmt.Errorf("update_reminder: %w", err)
	}
	return map[string]any{"status": "updated", "id": id}, nil, nil
}

func (r *Registry) deleteReminder(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, nil, fmt.Errorf("delete_reminder: id is required")
	}
	if err := r.store.DeleteReminder(ctx, userID, id); err != nil {
		return nil, nil, fmt.Errorf("delete_reminder: %w", err)
	}
	return map[string]any{"status": "deleted", "id": id}, nil, nil
}
