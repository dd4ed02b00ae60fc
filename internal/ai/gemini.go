package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultEmbeddingModel is used for retrieval vectors.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Gemini is the primary completion and embedding provider.
type Gemini struct {
	client     *genai.Client
	embedModel string
}

// NewGemini creates a Gemini provider against the public Gemini API.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return &Gemini{client: client, embedModel: DefaultEmbeddingModel}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Complete sends one request and returns text and/or tool calls.
func (g *Gemini) Complete(ctx context.Context, model string, msgs []Message, tools []ToolDecl) (*Completion, error) {
	contents, config := g.buildRequest(msgs, tools)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini complete: %w", err)
	}

	out := &Completion{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: fc.Name, Args: fc.Args})
	}
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// Stream relays incremental text chunks. The iteration stops as soon as fn
// returns an error or the context is cancelled.
func (g *Gemini) Stream(ctx context.Context, model string, msgs []Message, fn StreamFunc) error {
	contents, config := g.buildRequest(msgs, nil)

	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if chunk := resp.Text(); chunk != "" {
			if err := fn(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// Embed implements Embedder using the Gemini embedding model.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	res, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return res.Embeddings[0].Values, nil
}

func (g *Gemini) buildRequest(msgs []Message, tools []ToolDecl) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}

	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Text)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
		case RoleAssistant:
			if m.ToolName != "" {
				contents = append(contents, &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: m.ToolName, Args: m.ToolArgs}}},
				})
				continue
			}
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleModel))
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{Name: m.ToolName, Response: m.ToolResult}}},
			})
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolSchema(t),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return contents, config
}

func toolSchema(t ToolDecl) *genai.Schema {
	props := make(map[string]*genai.Schema, len(t.Params))
	for name, p := range t.Params {
		props[name] = &genai.Schema{
			Type:        schemaType(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   t.Required,
	}
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

var (
	_ Provider = (*Gemini)(nil)
	_ Embedder = (*Gemini)(nil)
)
