package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dvloznov/ledger-assistant/internal/parse"
	"github.com/rs/zerolog"
)

// Parser extracts a structured intent from free text via the completion
// provider chain. It never returns an error: callers receive either a
// normalized intent or nil.
type Parser struct {
	providers map[string]Provider
	chain     []ModelRef
	log       zerolog.Logger
}

// NewParser builds the adapter over the given providers and the ordered
// candidate list.
func NewParser(providers []Provider, chain []ModelRef, log zerolog.Logger) *Parser {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Parser{providers: byName, chain: chain, log: log}
}

// Chain exposes the configured candidate list for reuse by the chat loop.
func (p *Parser) Chain() []ModelRef { return p.chain }

// Provider returns a configured provider by name, or nil.
func (p *Parser) Provider(name string) Provider { return p.providers[name] }

// Parse asks each candidate model in order for a strict JSON intent and
// returns the first parseable, normalized result. nil means every candidate
// failed or returned non-JSON.
func (p *Parser) Parse(ctx context.Context, text string, categories []string) *parse.Intent {
	msgs := []Message{
		{Role: RoleSystem, Text: buildIntentPrompt(categories)},
		{Role: RoleUser, Text: text},
	}

	for _, ref := range p.chain {
		prov, ok := p.providers[ref.Provider]
		if !ok {
			continue
		}
		resp, err := prov.Complete(ctx, ref.Model, msgs, nil)
		if err != nil {
			p.log.Warn().Err(err).Str("provider", ref.Provider).Str("model", ref.Model).
				Msg("Intent parse candidate failed")
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(cleanModelJSON(resp.Text)), &raw); err != nil {
			p.log.Warn().Err(err).Str("provider", ref.Provider).Str("model", ref.Model).
				Msg("Intent parse candidate returned non-JSON")
			continue
		}
		return normalizeIntent(raw)
	}
	return nil
}

// buildIntentPrompt constructs the strict-JSON system instruction, including
// the user's known categories so the model prefers an existing name.
func buildIntentPrompt(categories []string) string {
	var b strings.Builder
	b.WriteString("You are a ledger intent parser for informal Chinese or English messages about money.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Interpret the user message as a single candidate ledger entry.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output ONE JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"type\": \"income\" or \"expense\"\n")
	b.WriteString("- \"amount\": number or null\n")
	b.WriteString("- \"currency\": string, ISO code like \"TWD\", or null\n")
	b.WriteString("- \"date\": string \"YYYY-MM-DD\" or null\n")
	b.WriteString("- \"categoryName\": string or null\n")
	b.WriteString("- \"claimAmount\": number or null\n")
	b.WriteString("- \"claimed\": boolean or null\n")
	b.WriteString("- \"note\": string\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- NEVER read dates, times, months, or ordinals (like 十月, 10:30, 第三次, 3rd) as amounts.\n")
	b.WriteString("- If no monetary amount is clearly present, set \"amount\" to null. NEVER guess.\n")

	if len(categories) > 0 {
		b.WriteString("- Prefer one of these existing category names for \"categoryName\": ")
		b.WriteString(strings.Join(categories, ", "))
		b.WriteString(".\n")
	}

	b.WriteString("\nReturn ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignored the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if junk remains.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
