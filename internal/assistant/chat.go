package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
)

// maxToolRounds bounds the tool round-trip loop per chat turn.
const maxToolRounds = 4

// maxContextItems caps how many ledger snippets are offered to retrieval.
const maxContextItems = 200

// Chat answers a free-form question with retrieval context and the tool
// registry. Candidates are tried in the configured order; if every model
// fails the heuristic summary answers instead, so the user always gets a
// reply.
func (a *Assistant) Chat(ctx context.Context, userID, question string) (*dialog.Reply, error) {
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Text: a.chatPrompt(ctx, userID, question)},
		{Role: ai.RoleUser, Text: question},
	}

	var decls []ai.ToolDecl
	if a.tools != nil {
		decls = a.tools.Decls()
	}

	if a.aiParser != nil {
		for _, ref := range a.aiParser.Chain() {
			prov := a.aiParser.Provider(ref.Provider)
			if prov == nil {
				continue
			}
			reply, err := a.chatWith(ctx, prov, ref.Model, userID, msgs, decls)
			if err == nil {
				return reply, nil
			}
			a.log.Warn().Err(err).Str("provider", ref.Provider).Str("model", ref.Model).
				Msg("Chat candidate failed")
		}
	}
	return &dialog.Reply{Text: a.heuristicAnswer(ctx, userID, question)}, nil
}

// chatWith runs one candidate through the tool round-trip loop.
func (a *Assistant) chatWith(ctx context.Context, prov ai.Provider, model, userID string, msgs []ai.Message, decls []ai.ToolDecl) (*dialog.Reply, error) {
	comp, err := prov.Complete(ctx, model, msgs, decls)
	if errors.Is(err, ai.ErrToolsUnsupported) {
		// The candidate can still answer without tools.
		comp, err = prov.Complete(ctx, model, msgs, nil)
	}
	if err != nil {
		return nil, err
	}

	var sideReplies []*dialog.Reply
	for round := 0; len(comp.ToolCalls) > 0 && round < maxToolRounds; round++ {
		for _, call := range comp.ToolCalls {
			result, side := a.tools.Dispatch(ctx, userID, call)
			if side != nil {
				sideReplies = append(sideReplies, side)
			}
			msgs = append(msgs,
				ai.Message{Role: ai.RoleAssistant, ToolName: call.Name, ToolArgs: call.Args},
				ai.Message{Role: ai.RoleTool, ToolName: call.Name, ToolResult: result},
			)
		}
		comp, err = prov.Complete(ctx, model, msgs, decls)
		if err != nil {
			return nil, err
		}
	}

	reply := &dialog.Reply{Text: strings.TrimSpace(comp.Text)}
	for _, side := range sideReplies {
		if reply.Text != "" && side.Text != "" {
			reply.Text += "\n"
		}
		reply.Text += side.Text
		reply.Buttons = append(reply.Buttons, side.Buttons...)
	}
	if reply.Text == "" && len(reply.Buttons) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return reply, nil
}

// ChatStream streams a plain-text answer chunk by chunk. Tools are not
// offered on the streaming path; a canceled context stops the upstream
// request.
func (a *Assistant) ChatStream(ctx context.Context, userID, question string, fn ai.StreamFunc) error {
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Text: a.chatPrompt(ctx, userID, question)},
		{Role: ai.RoleUser, Text: question},
	}

	if a.aiParser != nil {
		for _, ref := range a.aiParser.Chain() {
			prov := a.aiParser.Provider(ref.Provider)
			if prov == nil {
				continue
			}
			err := prov.Stream(ctx, ref.Model, msgs, fn)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn().Err(err).Str("provider", ref.Provider).Str("model", ref.Model).
				Msg("Stream candidate failed")
		}
	}
	return fn(a.heuristicAnswer(ctx, userID, question))
}

// chatPrompt assembles the system instruction with retrieved ledger
// context.
func (a *Assistant) chatPrompt(ctx context.Context, userID, question string) string {
	var b strings.Builder
	b.WriteString("You are a personal ledger assistant. Answer in the user's language, ")
	b.WriteString("briefly and concretely. Use the provided tools for any lookup or change; ")
	b.WriteString("never invent amounts or records.\n")
	b.WriteString("Today is ")
	b.WriteString(a.now().Format("2006-01-02"))
	b.WriteString(".\n")

	results := a.contextFor(ctx, userID, question)
	if len(results) > 0 {
		b.WriteString("\nPossibly relevant ledger entries:\n")
		for _, res := range results {
			b.WriteString("- ")
			b.WriteString(res.Item.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// contextFor renders the user's records and retrieves the best matches.
func (a *Assistant) contextFor(ctx context.Context, userID, question string) []retrieval.Result {
	if a.retriever == nil {
		return nil
	}

	var items []retrieval.Item
	txs, err := a.store.GetTransactions(ctx, userID)
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", userID).Msg("assistant: context load failed")
		return nil
	}
	start := 0
	if len(txs) > maxContextItems {
		start = len(txs) - maxContextItems
	}
	for _, tx := range txs[start:] {
		items = append(items, retrieval.Item{ID: tx.ID, Text: renderTx(tx)})
	}
	if notes, err := a.store.GetNotes(ctx, userID); err == nil {
		for _, n := range notes {
			items = append(items, retrieval.Item{ID: n.ID, Text: renderNote(n)})
		}
	}
	return a.retriever.Retrieve(ctx, question, items)
}

// renderTx produces the one-line retrieval form of a transaction.
func renderTx(tx *ledger.Transaction) string {
	line := fmt.Sprintf("%s %s %s %.0f %s", tx.Date.Format("2006-01-02"), txTypeLabel(tx.Type), tx.CategoryID, tx.Amount, tx.Currency)
	if tx.Note != "" {
		line += " " + tx.Note
	}
	return line + " (id: " + tx.ID + ")"
}

func renderNote(n *ledger.Note) string {
	return fmt.Sprintf("%s 備忘 %s (id: %s)", n.CreatedAt.Format("2006-01-02"), n.Text, n.ID)
}

// heuristicAnswer is the no-model fallback: a concrete summary computed
// straight from the store.
func (a *Assistant) heuristicAnswer(ctx context.Context, userID, question string) string {
	now := a.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	txs, err := a.store.GetTransactions(ctx, userID)
	if err != nil {
		return "目前無法連線到 AI 模型，請稍後再試。"
	}

	var income, expense float64
	byCategory := make(map[string]float64)
	for _, tx := range txs {
		if tx.Date.Before(from) {
			continue
		}
		switch tx.Type {
		case ledger.TypeIncome:
			income += tx.Amount
		case ledger.TypeExpense:
			expense += tx.Amount
			byCategory[tx.CategoryID] += tx.Amount
		}
	}

	top, topAmount := "", 0.0
	for id, total := range byCategory {
		if total > topAmount || (total == topAmount && id < top) {
			top, topAmount = id, total
		}
	}

	answer := fmt.Sprintf("目前無法連線到 AI 模型，先給你本月摘要：收入 %.0f，支出 %.0f，結餘 %.0f。", income, expense, income-expense)
	if top != "" {
		answer += fmt.Sprintf("支出最多的分類是 %s（%.0f）。", top, topAmount)
	}
	return answer
}
