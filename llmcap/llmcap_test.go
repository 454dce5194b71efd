package llmcap

import (
	"context"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sqlnexus/config"
	"sqlnexus/core/model"
)

// mockChatModel records the prompts it was sent and returns a scripted
// response, letting tests exercise the extraction ladder without a
// network call.
type mockChatModel struct {
	lastInput []*schema.Message
	response  string
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.lastInput = input
	return &schema.Message{Role: schema.Assistant, Content: m.response}, nil
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func TestGenerateSQL_FencedBlock(t *testing.T) {
	mock := &mockChatModel{response: "Here you go:\n```sql\nSELECT * FROM orders\n```"}
	c := &Capability{chat: mock, logger: func(string) {}}

	got, err := c.GenerateSQL(context.Background(), "sys", "question", model.Postgres)
	if err != nil {
		t.Fatalf("GenerateSQL() error = %v", err)
	}
	if got != "SELECT * FROM orders" {
		t.Errorf("GenerateSQL() = %q, want SELECT * FROM orders", got)
	}
	if len(mock.lastInput) != 2 || mock.lastInput[0].Role != schema.System || mock.lastInput[1].Role != schema.User {
		t.Errorf("unexpected message sequence: %+v", mock.lastInput)
	}
}

func TestGenerateSQL_RawContentNoFence(t *testing.T) {
	mock := &mockChatModel{response: "SELECT 1"}
	c := &Capability{chat: mock, logger: func(string) {}}

	got, err := c.GenerateSQL(context.Background(), "sys", "question", model.SQLite)
	if err != nil {
		t.Fatalf("GenerateSQL() error = %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("GenerateSQL() = %q, want SELECT 1", got)
	}
}

func TestGenerateSQL_JSONWrapped(t *testing.T) {
	mock := &mockChatModel{response: "```json\n{\"sql\": \"SELECT 2\"}\n```"}
	c := &Capability{chat: mock, logger: func(string) {}}

	got, err := c.GenerateSQL(context.Background(), "sys", "question", model.MySQL)
	if err != nil {
		t.Fatalf("GenerateSQL() error = %v", err)
	}
	if got != "SELECT 2" {
		t.Errorf("GenerateSQL() = %q, want SELECT 2", got)
	}
}

func TestGenerateStructured_DirectJSON(t *testing.T) {
	mock := &mockChatModel{response: `{"kind": "missing_column", "count": 2}`}
	c := &Capability{chat: mock, logger: func(string) {}}

	var out struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}
	if err := c.GenerateStructured(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}
	if out.Kind != "missing_column" || out.Count != 2 {
		t.Errorf("GenerateStructured() = %+v, want kind=missing_column count=2", out)
	}
}

func TestGenerateStructured_ProseWithEmbeddedJSON(t *testing.T) {
	mock := &mockChatModel{response: `Sure, here's the analysis: {"kind": "syntax"} -- let me know if you need more.`}
	c := &Capability{chat: mock, logger: func(string) {}}

	var out struct {
		Kind string `json:"kind"`
	}
	if err := c.GenerateStructured(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}
	if out.Kind != "syntax" {
		t.Errorf("GenerateStructured() = %+v, want kind=syntax", out)
	}
}

func TestGenerateStructured_InvalidJSON(t *testing.T) {
	mock := &mockChatModel{response: "not json at all, no braces either"}
	c := &Capability{chat: mock, logger: func(string) {}}

	var out struct{}
	if err := c.GenerateStructured(context.Background(), "sys", "user", &out); err == nil {
		t.Error("GenerateStructured() error = nil, want error for non-JSON response")
	}
}

func TestExtractFenced_SQLFence(t *testing.T) {
	got := extractFenced("```sql\nSELECT 1\n```")
	if got != "SELECT 1" {
		t.Errorf("extractFenced() = %q, want SELECT 1", got)
	}
}

func TestFirstJSONBlock_Nested(t *testing.T) {
	got := firstJSONBlock(`prefix {"a": {"b": 1}} suffix`)
	if got != `{"a": {"b": 1}}` {
		t.Errorf("firstJSONBlock() = %q", got)
	}
}

func TestDialectSystemPrompt_IncludesDialectHint(t *testing.T) {
	p := DialectSystemPrompt(model.Oracle, true)
	if !contains(p, "ROWNUM") {
		t.Errorf("DialectSystemPrompt(Oracle) missing ROWNUM hint: %q", p)
	}
	terse := DialectSystemPrompt(model.Oracle, false)
	if contains(terse, "Rules:") {
		t.Errorf("DialectSystemPrompt(detailed=false) should omit rules block: %q", terse)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestNormalizeBaseURL_StripsCompletionsSuffix(t *testing.T) {
	got := normalizeBaseURL("https://api.example.com/v1/chat/completions/")
	if got != "https://api.example.com/v1" {
		t.Errorf("normalizeBaseURL() = %q, want https://api.example.com/v1", got)
	}
}

func TestNew_RejectsMissingAPIKey(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{ModelName: "gpt-4o"}, nil)
	if err == nil {
		t.Error("New() error = nil, want error for missing API key")
	}
}

func TestNew_RejectsMissingModelName(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{APIKey: "key"}, nil)
	if err == nil {
		t.Error("New() error = nil, want error for missing model name")
	}
}
