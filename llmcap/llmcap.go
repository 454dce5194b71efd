// Package llmcap wraps an eino model.ChatModel behind the narrow surface
// SQLAgent needs: emit a SQL statement for a question, or emit an arbitrary
// structured-JSON object for a prompt. It collapses an OpenAI-compatible
// model construction plus a JSON-in-markdown extraction ladder, prompt
// shape, and dialect-aware system prompt down to the single
// generate-SQL/generate-JSON responsibility this agent needs; a
// tool-calling graph, Python execution, and multi-phase planning are out
// of scope here.
package llmcap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sqlnexus/config"
	coremodel "sqlnexus/core/model"
)

// Capability emits SQL or structured JSON from a dialect-aware prompt.
type Capability struct {
	chat   einomodel.ChatModel
	logger func(string)
}

// New builds a Capability from an LLMConfig, defaulting to an
// OpenAI-compatible client; any OpenAI-protocol-compatible endpoint
// (including local proxies) is reached by pointing BaseURL at it.
func New(ctx context.Context, cfg config.LLMConfig, logger func(string)) (*Capability, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("llmcap: model name is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmcap: API key is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 6000
	}
	baseURL := normalizeBaseURL(cfg.BaseURL)

	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   baseURL,
		Model:     cfg.ModelName,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llmcap: create chat model: %w", err)
	}
	if logger == nil {
		logger = func(string) {}
	}
	return &Capability{chat: chat, logger: logger}, nil
}

// normalizeBaseURL strips a trailing /chat/completions or /completions
// suffix a user may have included, since the OpenAI SDK appends its own.
func normalizeBaseURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	base = strings.TrimSuffix(base, "/completions")
	return base
}

// GenerateSQL asks the model for one SQL statement given a fully-built
// prompt (produced by contextbuilder) and the active dialect, and extracts
// the statement from the response via an extraction ladder: a fenced
// ```sql or ```json block, else the raw content.
func (c *Capability) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string, dialect coremodel.DatabaseType) (string, error) {
	msgs := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}
	resp, err := c.chat.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("llmcap: generate: %w", err)
	}

	raw := extractFenced(resp.Content)

	var asJSON struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(raw), &asJSON); err == nil && asJSON.SQL != "" {
		return strings.TrimSpace(asJSON.SQL), nil
	}
	return strings.TrimSpace(raw), nil
}

// GenerateStructured asks the model to emit one JSON object matching the
// shape of out (a pointer), and unmarshals the response into it.
func (c *Capability) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, out interface{}) error {
	msgs := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}
	resp, err := c.chat.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("llmcap: generate: %w", err)
	}

	raw := extractFenced(resp.Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		if block := firstJSONBlock(raw); block != "" {
			if err2 := json.Unmarshal([]byte(block), out); err2 == nil {
				return nil
			}
		}
		return fmt.Errorf("llmcap: response is not valid JSON: %w", err)
	}
	return nil
}

// extractFenced strips a ```json or ``` fenced code block if present,
// otherwise returns the trimmed content unchanged.
func extractFenced(content string) string {
	content = strings.TrimSpace(content)
	for _, fence := range []string{"```json", "```sql", "```"} {
		if idx := strings.Index(content, fence); idx >= 0 {
			rest := content[idx+len(fence):]
			if end := strings.Index(rest, "```"); end >= 0 {
				return strings.TrimSpace(rest[:end])
			}
		}
	}
	return content
}

// firstJSONBlock finds the first balanced {...} or [...] substring, a last
// resort when the model wraps JSON in explanatory prose despite instructions.
func firstJSONBlock(s string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		if start < 0 {
			continue
		}
		depth := 0
		for i := start; i < len(s); i++ {
			switch s[i] {
			case pair[0]:
				depth++
			case pair[1]:
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// DialectSystemPrompt builds the escalating system prompt section for
// dialect, from "return SQL only" rules through dialect-specific
// constraints.
func DialectSystemPrompt(dialect coremodel.DatabaseType, detailed bool) string {
	var b strings.Builder
	b.WriteString("You are a SQL expert. Return SQL only, no explanation, no markdown fences.\n")
	b.WriteString("Dialect: " + string(dialect) + ".\n")

	if !detailed {
		return b.String()
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Use only tables and columns present in the provided schema.\n")
	b.WriteString("- Prefer explicit JOIN ... ON clauses over implicit joins.\n")
	b.WriteString("- Cast operands explicitly when comparing columns of different types.\n")
	b.WriteString("- On a retry, read the error section and correct the specific identifier it names.\n")
	b.WriteString("- Avoid SELECT * against wide tables; prefer the columns the question needs.\n")
	b.WriteString("- Treat NULL comparisons with IS NULL / IS NOT NULL, never = NULL.\n")
	b.WriteString("- Use explicit GROUP BY for every non-aggregated selected column.\n")
	b.WriteString("- Resolve ambiguous column references by qualifying with the table name or alias.\n")
	b.WriteString(dialectHints(dialect))
	return b.String()
}

func dialectHints(dialect coremodel.DatabaseType) string {
	switch dialect {
	case coremodel.Oracle:
		return "- Oracle: no LIMIT; use FETCH FIRST n ROWS ONLY or ROWNUM <= n. String concatenation is ||.\n"
	case coremodel.SQLite:
		return "- SQLite: no RIGHT/FULL OUTER JOIN. Use strftime() for date parts, not YEAR()/MONTH().\n"
	case coremodel.MySQL:
		return "- MySQL: string concatenation requires CONCAT(), not ||. Use backticks to quote identifiers.\n"
	case coremodel.Postgres:
		return "- Postgres: use double-quoted identifiers only when case-sensitive; prefer ILIKE for case-insensitive matches.\n"
	default:
		return ""
	}
}
