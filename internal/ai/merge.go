package ai

import (
	"github.com/dvloznov/ledger-assistant/internal/parse"
)

// Merge reconciles the deterministic parser's reading of text with an AI
// intent. Models infer category, date and direction well but misread exact
// quantities in mixed numeral systems, so the local amount wins whenever one
// was found. An AI-only amount is kept only when that exact number sits next
// to a currency unit or code in the original text; otherwise it is discarded
// rather than trusted blindly.
func Merge(p *parse.Parser, text string, aiIntent *parse.Intent) parse.Intent {
	local := p.Parse(text)
	if aiIntent == nil {
		return local
	}

	merged := *aiIntent
	merged.Note = text

	if local.Amount != nil {
		merged.Amount = local.Amount
	} else if merged.Amount != nil && !parse.AmountAdjacent(text, *merged.Amount) {
		merged.Amount = nil
	}

	if merged.Currency == "" {
		merged.Currency = local.Currency
	}
	if merged.Date == "" {
		merged.Date = local.Date
	}
	if merged.CategoryName == "" {
		merged.CategoryName = local.CategoryName
	}
	if local.ClaimAmount != nil {
		merged.ClaimAmount = local.ClaimAmount
	}
	if local.Claimed != nil {
		merged.Claimed = local.Claimed
	}
	if merged.Motivation == "" {
		merged.Motivation = local.Motivation
	}
	if merged.Emotion == "" {
		merged.Emotion = local.Emotion
	}

	return merged
}
