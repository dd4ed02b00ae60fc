package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func (r *Registry) registerNoteTools() {
	r.add(ai.ToolDecl{
		Name:        "query_notes",
		Description: "List the user's memos, optionally filtered by a keyword.",
		Params: map[string]ai.ParamDecl{
			"keyword": {Type: "string", Description: "substring to match"},
		},
	}, r.queryNotes)

	r.add(ai.ToolDecl{
		Name:        "add_note",
		Description: "Save a free-text memo for the user.",
		Params: map[string]ai.ParamDecl{
			"text": {Type: "string", Description: "memo content"},
		},
		Required: []string{"text"},
	}, r.addNote)
}

func (r *Registry) queryNotes(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	notes, err := r.store.GetNotes(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("query_notes: %w", err)
	}
	keyword := strings.ToLower(argString(args, "keyword"))

	rows := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		if keyword != "" && !strings.Contains(strings.ToLower(n.Text), keyword) {
			continue
		}
		rows = append(rows, map[string]any{
			"id":         n.ID,
			"text":       n.Text,
			"created_at": n.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return map[string]any{"notes": rows, "count": len(rows)}, nil, nil
}

func (r *Registry) addNote(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	text := strings.TrimSpace(argString(args, "text"))
	if text == "" {
		return nil, nil, fmt.Errorf("add_note: text is required")
	}
	note := &ledger.Note{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: r.now(),
	}
	if err := r.store.AddNote(ctx, userID, note); err != nil {
		return nil, nil, fmt.Errorf("add_note: %w", err)
	}
	return map[string]any{"status": "saved", "id": note.ID}, nil, nil
}
