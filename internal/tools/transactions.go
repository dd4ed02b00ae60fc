package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

const defaultQueryLimit = 20

func (r *Registry) registerTransactionTools() {
	r.add(ai.ToolDecl{
		Name:        "query_transactions",
		Description: "List the user's transactions, optionally filtered by date range, category or type.",
		Params: map[string]ai.ParamDecl{
			"from":     {Type: "string", Description: "start date YYYY-MM-DD, inclusive"},
			"to":       {Type: "string", Description: "end date YYYY-MM-DD, inclusive"},
			"category": {Type: "string", Description: "category id"},
			"type":     {Type: "string", Description: "income or expense", Enum: []string{"income", "expense"}},
			"limit":    {Type: "integer", Description: "maximum rows, default 20"},
		},
	}, r.queryTransactions)

	r.add(ai.ToolDecl{
		Name:        "add_transaction",
		Description: "Propose recording a new transaction. The user must confirm before it is saved.",
		Params: map[string]ai.ParamDecl{
			"type":     {Type: "string", Description: "income or expense", Enum: []string{"income", "expense"}},
			"amount":   {Type: "number", Description: "positive amount"},
			"currency": {Type: "string", Description: "ISO currency code, default TWD"},
			"date":     {Type: "string", Description: "date YYYY-MM-DD, default today"},
			"category": {Type: "string", Description: "category id"},
			"note":     {Type: "string", Description: "free-text note"},
		},
		Required: []string{"type", "amount"},
	}, r.addTransaction)

	r.add(ai.ToolDecl{
		Name:        "update_transaction",
		Description: "Update one field of an existing transaction.",
		Params: map[string]ai.ParamDecl{
			"id":       {Type: "string", Description: "transaction id"},
			"amount":   {Type: "number", Description: "new amount"},
			"category": {Type: "string", Description: "new category id"},
			"note":     {Type: "string", Description: "new note"},
			"date":     {Type: "string", Description: "new date YYYY-MM-DD"},
		},
		Required: []string{"id"},
	}, r.updateTransaction)

	r.add(ai.ToolDecl{
		Name:        "delete_transaction",
		Description: "Propose deleting a transaction. The user must confirm before it is removed.",
		Params: map[string]ai.ParamDecl{
			"id": {Type: "string", Description: "transaction id"},
		},
		Required: []string{"id"},
	}, r.deleteTransaction)

	r.add(ai.ToolDecl{
		Name:        "mark_claimed",
		Description: "Mark a transaction's expense claim as settled.",
		Params: map[string]ai.ParamDecl{
			"id": {Type: "string", Description: "transaction id"},
		},
		Required: []string{"id"},
	}, r.markClaimed)
}

func (r *Registry) queryTransactions(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	txs, err := r.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("query_transactions: %w", err)
	}

	var from, to time.Time
	if s := argString(args, "from"); s != "" {
		if from, err = parseDay(s); err != nil {
			return nil, nil, err
		}
	}
	if s := argString(args, "to"); s != "" {
		if to, err = parseDay(s); err != nil {
			return nil, nil, err
		}
	}
	category := argString(args, "category")
	txType := argString(args, "type")

	limit := defaultQueryLimit
	if v, ok := argNumber(args, "limit"); ok && v > 0 {
		limit = int(v)
	}

	rows := make([]map[string]any, 0, limit)
	for i := len(txs) - 1; i >= 0 && len(rows) < limit; i-- {
		tx := txs[i]
		if !from.IsZero() && tx.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !tx.Date.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		if category != "" && tx.CategoryID != category {
			continue
		}
		if txType != "" && string(tx.Type) != txType {
			continue
		}
		rows = append(rows, txRow(tx))
	}
	return map[string]any{"transactions": rows, "count": len(rows)}, nil, nil
}

func txRow(tx *ledger.Transaction) map[string]any {
	return map[string]any{
		"id":           tx.ID,
		"date":         tx.Date.Format("2006-01-02"),
		"type":         string(tx.Type),
		"category":     tx.CategoryID,
		"currency":     tx.Currency,
		"amount":       tx.Amount,
		"claim_amount": tx.ClaimAmount,
		"claimed":      tx.Claimed,
		"note":         tx.Note,
	}
}

func (r *Registry) addTransaction(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	if r.confirmer == nil {
		return nil, nil, fmt.Errorf("add_transaction: confirmations are not available in this channel")
	}

	amount, ok := argNumber(args, "amount")
	if !ok || amount <= 0 {
		return nil, nil, fmt.Errorf("add_transaction: amount must be a positive number")
	}
	date := r.now()
	if s := argString(args, "date"); s != "" {
		d, err := parseDay(s)
		if err != nil {
			return nil, nil, err
		}
		date = d
	}
	currency := strings.ToUpper(argString(args, "currency"))
	if currency == "" {
		currency = "TWD"
	}

	tx := &ledger.Transaction{
		ID:         uuid.NewString(),
		Date:       date,
		Type:       ledger.TxType(argString(args, "type")),
		CategoryID: argString(args, "category"),
		Currency:   currency,
		Rate:       1,
		Amount:     amount,
		Note:       argString(args, "note"),
	}
	if err := tx.Validate(); err != nil {
		return nil, nil, fmt.Errorf("add_transaction: %w", err)
	}

	reply := r.confirmer.ProposeAddTx(userID, tx)
	return map[string]any{"status": "confirmation_required"}, reply, nil
}

func (r *Registry) updateTransaction(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, nil, fmt.Errorf("update_transaction: id is required")
	}

	var patch ledger.TxPatch
	changed := false
	if v, ok := argNumber(args, "amount"); ok {
		if v <= 0 {
			return nil, nil, fmt.Errorf("update_transaction: amount must be positive")
		}
		patch.Amount = &v
		changed = true
	}
	if s := argString(args, "category"); s != "" {
		patch.CategoryID = &s
		changed = true
	}
	if s, ok := args["note"].(string); ok {
		patch.Note = &s
		changed = true
	}
	if s := argString(args, "date"); s != "" {
		d, err := parseDay(s)
		if err != nil {
			return nil, nil, err
		}
		patch.Date = &d
		changed = true
	}
	if !changed {
		return nil, nil, fmt.Errorf("update_transaction: no fields to update")
	}

	if err := r.store.UpdateTransaction(ctx, userID, id, patch); err != nil {
		return nil, nil, fmt.Errorf("update_transaction: %w", err)
	}
	return map[string]any{"status": "updated", "id": id}, nil, nil
}

func (r *Registry) deleteTransaction(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	if r.confirmer == nil {
		return nil, nil, fmt.Errorf("delete_transaction: confirmations are not available in this channel")
	}
	id := argString(args, "id")
	if id == "" {
		return nil, nil, fmt.Errorf("delete_transaction: id is required")
	}

	txs, err := r.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("delete_transaction: %w", err)
	}
	summary := ""
	for _, tx := range txs {
		if tx.ID == id {
			summary = fmt.Sprintf("%s %.0f %s %s", tx.Date.Format("2006-01-02"), tx.Amount, tx.Currency, tx.Note)
			break
		}
	}
	if summary == "" {
		return nil, nil, fmt.Errorf("delete_transaction: %w", ledger.ErrNotFound)
	}

	reply := r.confirmer.ProposeDeleteTx(userID, id, summary)
	return map[string]any{"status": "confirmation_required"}, reply, nil
}

func (r *Registry) markClaimed(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, nil, fmt.Errorf("mark_claimed: id is required")
	}
	claimed := true
	patch := ledger.TxPatch{Claimed: &claimed}
	if err := r.store.UpdateTransaction(ctx, userID, id, patch); err != nil {
		return nil, nil, fmt.Errorf("mark_claimed: %w", err)
	}
	return map[string]any{"status": "claimed", "id": id}, nil, nil
}
