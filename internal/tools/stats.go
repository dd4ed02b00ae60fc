package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/ai"
	"github.com/dvloznov/ledger-assistant/internal/dialog"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

func (r *Registry) registerStatsTools() {
	periodParams := map[string]ai.ParamDecl{
		"from": {Type: "string", Description: "start date YYYY-MM-DD, default first day of the current month"},
		"to":   {Type: "string", Description: "end date YYYY-MM-DD, default today"},
	}

	r.add(ai.ToolDecl{
		Name:        "stats",
		Description: "Total income, total expenses and net balance over a period.",
		Params:      periodParams,
	}, r.stats)

	r.add(ai.ToolDecl{
		Name:        "budget_delta",
		Description: "Remaining monthly budget: configured budget minus this month's expenses.",
		Params:      map[string]ai.ParamDecl{},
	}, r.budgetDelta)

	r.add(ai.ToolDecl{
		Name:        "category_ranking",
		Description: "Expense totals per category over a period, highest first.",
		Params:      periodParams,
	}, r.categoryRanking)

	r.add(ai.ToolDecl{
		Name:        "quick_report",
		Description: "Compact textual summary of the period: totals, net, top categories.",
		Params:      periodParams,
	}, r.quickReport)
}

// period resolves the from/to arguments with current-month defaults.
func (r *Registry) period(args map[string]any) (time.Time, time.Time, error) {
	now := r.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	if s := argString(args, "from"); s != "" {
		d, err := parseDay(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}
	if s := argString(args, "to"); s != "" {
		d, err := parseDay(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d
	}
	return from, to, nil
}

// inPeriod treats the period as whole days, end inclusive.
func inPeriod(tx *ledger.Transaction, from, to time.Time) bool {
	if tx.Date.Before(from) {
		return false
	}
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)
	return tx.Date.Before(end)
}

// totals sums income and expenses in the period.
func (r *Registry) totals(ctx context.Context, userID string, from, to time.Time) (income, expense float64, byCategory map[string]float64, err error) {
	txs, err := r.store.GetTransactions(ctx, userID)
	if err != nil {
		return 0, 0, nil, err
	}
	byCategory = make(map[string]float64)
	for _, tx := range txs {
		if !inPeriod(tx, from, to) {
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
	return income, expense, byCategory, nil
}

func (r *Registry) stats(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	from, to, err := r.period(args)
	if err != nil {
		return nil, nil, err
	}
	income, expense, _, err := r.totals(ctx, userID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("stats: %w", err)
	}
	return map[string]any{
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"income":  income,
		"expense": expense,
		"net":     income - expense,
	}, nil, nil
}

func (r *Registry) budgetDelta(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("budget_delta: %w", err)
	}
	now := r.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	_, expense, _, err := r.totals(ctx, userID, from, now)
	if err != nil {
		return nil, nil, fmt.Errorf("budget_delta: %w", err)
	}
	return map[string]any{
		"budget":    settings.MonthlyBudget,
		"spent":     expense,
		"remaining": settings.MonthlyBudget - expense,
		"month":     from.Format("2006-01"),
	}, nil, nil
}

type categoryTotal struct {
	ID    string
	Total float64
}

func rankCategories(byCategory map[string]float64) []categoryTotal {
	ranked := make([]categoryTotal, 0, len(byCategory))
	for id, total := range byCategory {
		ranked = append(ranked, categoryTotal{ID: id, Total: total})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

func (r *Registry) categoryRanking(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	from, to, err := r.period(args)
	if err != nil {
		return nil, nil, err
	}
	_, _, byCategory, err := r.totals(ctx, userID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("category_ranking: %w", err)
	}
	rows := make([]map[string]any, 0, len(byCategory))
	for _, ct := range rankCategories(byCategory) {
		rows = append(rows, map[string]any{"category": ct.ID, "total": ct.Total})
	}
	return map[string]any{"ranking": rows}, nil, nil
}

func (r *Registry) quickReport(ctx context.Context, userID string, args map[string]any) (map[string]any, *dialog.Reply, error) {
	from, to, err := r.period(args)
	if err != nil {
		return nil, nil, err
	}
	income, expense, byCategory, err := r.totals(ctx, userID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("quick_report: %w", err)
	}

	report := fmt.Sprintf("%s ~ %s 收入 %.0f，支出 %.0f，結餘 %.0f。",
		from.Format("2006-01-02"), to.Format("2006-01-02"), income, expense, income-expense)
	ranked := rankCategories(byCategory)
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	for i, ct := range ranked {
		if i == 0 {
			report += "支出前幾名："
		} else {
			report += "、"
		}
		report += fmt.Sprintf("%s %.0f", ct.ID, ct.Total)
	}
	return map[string]any{"report": report}, nil, nil
}
