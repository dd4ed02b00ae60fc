package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// fakeProvider returns a scripted sequence of completions, one per call.
type fakeProvider struct {
	name    string
	replies []string
	errs    []error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, model string, msgs []Message, tools []ToolDecl) (*Completion, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.replies) {
		return &Completion{Text: f.replies[i]}, nil
	}
	return nil, ErrEmptyResponse
}

func (f *fakeProvider) Stream(ctx context.Context, model string, msgs []Message, fn StreamFunc) error {
	resp, err := f.Complete(ctx, model, msgs, nil)
	if err != nil {
		return err
	}
	return fn(resp.Text)
}

func testChain() []ModelRef {
	return []ModelRef{
		{Provider: "fake", Model: "primary"},
		{Provider: "fake", Model: "fallback"},
	}
}

func TestParser_FirstCandidateWins(t *testing.T) {
	prov := &fakeProvider{name: "fake", replies: []string{
		`{"type":"expense","amount":120,"currency":"TWD","note":"咖啡"}`,
	}}
	p := NewParser([]Provider{prov}, testChain(), zerolog.Nop())

	in := p.Parse(context.Background(), "咖啡 120 元", nil)
	if in == nil {
		t.Fatal("Parse returned nil, want intent")
	}
	if in.Amount == nil || *in.Amount != 120 {
		t.Errorf("Amount = %v, want 120", in.Amount)
	}
	if prov.calls != 1 {
		t.Errorf("calls = %d, want 1", prov.calls)
	}
}

func TestParser_FallsBackToNextModel(t *testing.T) {
	prov := &fakeProvider{
		name:    "fake",
		errs:    []error{errors.New("quota exceeded"), nil},
		replies: []string{"", `{"type":"expense","amount":85,"currency":"TWD","note":"lunch"}`},
	}
	p := NewParser([]Provider{prov}, testChain(), zerolog.Nop())

	in := p.Parse(context.Background(), "午餐 85 元", nil)
	if in == nil {
		t.Fatal("Parse returned nil, want fallback intent")
	}
	if in.Amount == nil || *in.Amount != 85 {
		t.Errorf("Amount = %v, want 85", in.Amount)
	}
	if prov.calls != 2 {
		t.Errorf("calls = %d, want 2", prov.calls)
	}
}

func TestParser_AllCandidatesFailReturnsNil(t *testing.T) {
	prov := &fakeProvider{
		name:    "fake",
		replies: []string{"sorry, I can't help with that", "also not JSON"},
	}
	p := NewParser([]Provider{prov}, testChain(), zerolog.Nop())

	if in := p.Parse(context.Background(), "whatever", nil); in != nil {
		t.Errorf("Parse = %+v, want nil", in)
	}
	if prov.calls != 2 {
		t.Errorf("calls = %d, want 2", prov.calls)
	}
}

func TestParser_UnwrapsMarkdownFences(t *testing.T) {
	prov := &fakeProvider{name: "fake", replies: []string{
		"```json\n{\"type\":\"expense\",\"amount\":300,\"note\":\"movie\"}\n```",
	}}
	p := NewParser([]Provider{prov}, testChain(), zerolog.Nop())

	in := p.Parse(context.Background(), "電影 300 元", nil)
	if in == nil || in.Amount == nil || *in.Amount != 300 {
		t.Fatalf("Parse = %+v, want amount 300", in)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", "Here you go: {\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
