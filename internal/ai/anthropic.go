package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic is a secondary completion provider used further down the
// fallback chain. It serves plain conversations only; tool-enabled calls
// stay on the Gemini leg.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates the Claude-backed provider.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *Anthropic) Name() string { return "anthropic" }

// Complete sends one message exchange and returns the concatenated text
// blocks of the answer.
func (a *Anthropic) Complete(ctx context.Context, model string, msgs []Message, tools []ToolDecl) (*Completion, error) {
	if len(tools) > 0 {
		return nil, ErrToolsUnsupported
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Text})
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic complete: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return &Completion{Text: sb.String()}, nil
}

// Stream delivers the whole answer as a single chunk. Incremental streaming
// stays on the Gemini leg; this keeps the fallback chain functional when
// Gemini is down.
func (a *Anthropic) Stream(ctx context.Context, model string, msgs []Message, fn StreamFunc) error {
	resp, err := a.Complete(ctx, model, msgs, nil)
	if err != nil {
		return err
	}
	return fn(resp.Text)
}

var _ Provider = (*Anthropic)(nil)
