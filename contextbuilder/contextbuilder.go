// Package contextbuilder implements adaptive, token-budgeted prompt
// assembly: strategy thresholds and percentage splits for section budgets,
// combined with a schema-context cache and table-relevance scoring idiom
// for caching and prioritizing which tables make it into the prompt.
package contextbuilder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sqlnexus/core/model"
)

// Strategy is a context verbosity level, selected from a configured
// max_tokens budget.
type Strategy string

const (
	Concise      Strategy = "concise"
	SemiExpanded Strategy = "semi"
	Expanded     Strategy = "expanded"
	Large        Strategy = "large"
)

// DetermineStrategy picks a strategy from maxTokens, the Go rendering of
// ContextManager._determine_strategy.
func DetermineStrategy(maxTokens int) Strategy {
	switch {
	case maxTokens < 3000:
		return Concise
	case maxTokens < 6000:
		return SemiExpanded
	case maxTokens < 10000:
		return Expanded
	default:
		return Large
	}
}

// Budget is the per-section token allocation for one strategy, matching
// ContextManager.TokenBudget's five fixed percentage splits.
type Budget struct {
	MaxTokens    int
	Strategy     Strategy
	SystemPrompt int
	Schema       int
	History      int
	Error        int
	Reserved     int
}

var budgetRatios = map[Strategy][5]float64{
	Concise:      {0.15, 0.40, 0.20, 0.15, 0.10},
	SemiExpanded: {0.12, 0.45, 0.20, 0.13, 0.10},
	Expanded:     {0.10, 0.50, 0.20, 0.10, 0.10},
	Large:        {0.08, 0.55, 0.20, 0.10, 0.07},
}

// NewBudget computes the five-section split for maxTokens at strategy.
func NewBudget(maxTokens int, strategy Strategy) Budget {
	ratios, ok := budgetRatios[strategy]
	if !ok {
		ratios = budgetRatios[Large]
	}
	return Budget{
		MaxTokens:    maxTokens,
		Strategy:     strategy,
		SystemPrompt: int(float64(maxTokens) * ratios[0]),
		Schema:       int(float64(maxTokens) * ratios[1]),
		History:      int(float64(maxTokens) * ratios[2]),
		Error:        int(float64(maxTokens) * ratios[3]),
		Reserved:     int(float64(maxTokens) * ratios[4]),
	}
}

// EstimateTokens approximates a token count as ceil(chars/4).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// TruncateToTokens truncates text to fit within maxTokens, appending an
// ellipsis marker and preserving the prefix. When maxTokens is 5 or less
// (a limit of 20 characters or fewer), text is returned unchanged.
func TruncateToTokens(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}
	charLimit := maxTokens * 4
	if len(text) <= charLimit || charLimit <= 20 {
		return text
	}
	return text[:charLimit-20] + "\n... (truncated)"
}

// Builder assembles prompt sections within a token budget, caching per
// connection the way SchemaContextBuilder caches per data source.
type Builder struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	snapshot *model.SchemaSnapshot
	cachedAt time.Time
}

// NewBuilder returns a Builder whose schema cache entries expire after ttl.
func NewBuilder(ttl time.Duration) *Builder {
	return &Builder{cache: make(map[string]cacheEntry), ttl: ttl}
}

func (b *Builder) cachedSnapshot(connectionID string) (*model.SchemaSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[connectionID]
	if !ok || time.Since(entry.cachedAt) > b.ttl {
		return nil, false
	}
	return entry.snapshot, true
}

// CacheSnapshot stores snap under connectionID for cachedSnapshot to retrieve.
func (b *Builder) CacheSnapshot(connectionID string, snap *model.SchemaSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache[connectionID] = cacheEntry{snapshot: snap, cachedAt: time.Now()}
}

// InvalidateCache discards the cached snapshot for connectionID.
func (b *Builder) InvalidateCache(connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cache, connectionID)
}

// PrioritizeTables scores tables by relevance to userRequest and returns the
// top maxTables names, the Go rendering of SchemaContextBuilder.PrioritizeTables.
func PrioritizeTables(tables []string, userRequest string, maxTables int) []string {
	if len(tables) <= maxTables {
		return tables
	}

	type scored struct {
		name  string
		score int
	}
	requestLower := strings.ToLower(userRequest)
	words := strings.Fields(requestLower)

	scores := make([]scored, len(tables))
	for i, table := range tables {
		tableLower := strings.ToLower(table)
		score := 0
		if strings.Contains(requestLower, tableLower) {
			score += 100
		}
		for _, w := range words {
			if len(w) > 2 && strings.Contains(tableLower, w) {
				score += 20
			}
		}
		scores[i] = scored{name: table, score: score}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > maxTables {
		scores = scores[:maxTables]
	}
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.name
	}
	return out
}

// BuildSystemPrompt returns the escalating-detail system prompt for
// strategy, truncated to budget.SystemPrompt.
func BuildSystemPrompt(strategy Strategy, budget Budget) string {
	var prompt string
	switch strategy {
	case Concise:
		prompt = `You are a SQL expert. Generate ONLY valid SQL queries.
Rules:
1. Return ONLY the SQL query, no explanations
2. Use exact table/column names from schema
3. Use proper JOIN syntax
4. Fix errors from previous attempts`
	case SemiExpanded:
		prompt = `You are a SQL query expert. Generate accurate SQL queries based on natural language questions.

Key Rules:
1. Return ONLY the SQL query without any explanations or markdown
2. Use EXACT table and column names from the provided schema
3. Use proper JOIN syntax with explicit conditions
4. Handle NULL values appropriately
5. If previous attempts failed, analyze the error and fix the issue
6. For ambiguous questions, make reasonable assumptions based on schema`
	case Expanded:
		prompt = `You are an expert SQL query generator with deep knowledge of the target database dialect.

Core Rules:
1. Output Format: Return ONLY the SQL query without explanations, comments, or markdown
2. Schema Accuracy: Use EXACT table and column names from the provided database schema
3. JOIN Operations: Use explicit JOIN syntax with clear ON conditions
4. Data Types: Respect column data types and use appropriate type casting when needed
5. Error Recovery: If previous attempts failed, analyze the error message and fix the root cause
6. Ambiguity Handling: Make reasonable assumptions based on schema relationships
7. Optimization: Use efficient query patterns`
	default: // Large
		prompt = `You are an expert SQL query generator with comprehensive knowledge of database dialects and best practices.

Comprehensive Rules:
1. Output Format: return ONLY the executable SQL query, no explanations or markdown
2. Schema Adherence: use EXACT table and column names; never assume a column exists
3. JOIN Operations: explicit JOIN syntax, always with ON conditions, mindful of cardinality
4. Data Types & Casting: respect column types, cast explicitly when comparing mismatched types
5. Error Recovery: analyze the previous error's root cause, don't just try variations
6. Query Optimization: avoid SELECT *, filter early, prefer EXISTS over IN where appropriate
7. NULL Handling: IS NULL / IS NOT NULL, COALESCE for defaults
8. Aggregation: GROUP BY with aggregate functions, HAVING for filtered groups
9. Sorting & Limiting: ORDER BY for meaningful ordering, LIMIT for top-N
10. Ambiguity Resolution: prefer common patterns (recent data, active records) when underspecified`
	}
	return TruncateToTokens(prompt, budget.SystemPrompt)
}

// BuildSchemaContext renders snap at the detail level strategy calls for,
// restricted to focusedTables when provided, within budget.Schema.
func BuildSchemaContext(strategy Strategy, snap *model.SchemaSnapshot, focusedTables []string, budget Budget) string {
	if snap == nil || len(snap.Tables) == 0 {
		return "No schema available."
	}

	tableList := focusedTables
	if len(tableList) == 0 {
		tableList = snap.TableNames()
	}

	var result string
	switch strategy {
	case Concise:
		result = buildConciseSchema(snap, tableList, 15)
	case SemiExpanded:
		result = buildSemiSchema(snap, tableList, 20)
	case Expanded:
		result = buildExpandedSchema(snap, tableList, 25)
	default:
		result = buildLargeSchema(snap, tableList)
	}
	return TruncateToTokens(result, budget.Schema)
}

func lookupTable(snap *model.SchemaSnapshot, nameOrFullName string) (model.TableDescriptor, bool) {
	if t, ok := snap.Table(nameOrFullName); ok {
		return t, true
	}
	for _, t := range snap.Tables {
		if t.TableName == nameOrFullName {
			return t, true
		}
	}
	return model.TableDescriptor{}, false
}

func buildConciseSchema(snap *model.SchemaSnapshot, tableList []string, maxTables int) string {
	lines := []string{"DATABASE SCHEMA:"}
	for i, name := range tableList {
		if i >= maxTables {
			break
		}
		t, ok := lookupTable(snap, name)
		if !ok {
			continue
		}
		cols := t.Columns
		if len(cols) > 10 {
			cols = cols[:10]
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t.TableName, strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

func buildSemiSchema(snap *model.SchemaSnapshot, tableList []string, maxTables int) string {
	lines := []string{"DATABASE SCHEMA:"}
	for i, name := range tableList {
		if i >= maxTables {
			break
		}
		t, ok := lookupTable(snap, name)
		if !ok {
			continue
		}
		lines = append(lines, "\nTable: "+t.TableName)
		cols := t.Columns
		if len(cols) > 15 {
			cols = cols[:15]
		}
		for _, c := range cols {
			info := fmt.Sprintf("  - %s (%s)", c.Name, c.DataType)
			if c.PrimaryKey {
				info += " [PK]"
			}
			if !c.Nullable {
				info += " NOT NULL"
			}
			lines = append(lines, info)
		}
	}
	return strings.Join(lines, "\n")
}

func buildExpandedSchema(snap *model.SchemaSnapshot, tableList []string, maxTables int) string {
	lines := []string{"DATABASE SCHEMA:"}
	for i, name := range tableList {
		if i >= maxTables {
			break
		}
		t, ok := lookupTable(snap, name)
		if !ok {
			continue
		}
		lines = append(lines, "", strings.Repeat("=", 50), "Table: "+t.TableName, strings.Repeat("=", 50), "Columns:")
		for _, c := range t.Columns {
			info := fmt.Sprintf("  - %s: %s", c.Name, c.DataType)
			var flags []string
			if c.PrimaryKey {
				flags = append(flags, "PRIMARY KEY")
			}
			if !c.Nullable {
				flags = append(flags, "NOT NULL")
			}
			if c.Unique {
				flags = append(flags, "UNIQUE")
			}
			if len(flags) > 0 {
				info += " [" + strings.Join(flags, ", ") + "]"
			}
			lines = append(lines, info)
		}
		if len(t.ForeignKeys) > 0 {
			lines = append(lines, "", "Relationships:")
			for _, fk := range t.ForeignKeys {
				lines = append(lines, fmt.Sprintf("  -> %s references %s.%s", fk.Column, fk.ReferencesTable, fk.ReferencesColumn))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func buildLargeSchema(snap *model.SchemaSnapshot, tableList []string) string {
	lines := []string{"COMPREHENSIVE DATABASE SCHEMA:"}
	for _, name := range tableList {
		t, ok := lookupTable(snap, name)
		if !ok {
			continue
		}
		lines = append(lines, "", strings.Repeat("=", 60), "TABLE: "+t.TableName, strings.Repeat("=", 60))
		if t.RowCount != nil {
			lines = append(lines, fmt.Sprintf("Row Count: %d", *t.RowCount))
		}
		lines = append(lines, "", "COLUMNS:")
		for _, c := range t.Columns {
			lines = append(lines, "  - "+c.Name, "    Type: "+c.DataType)
			if c.PrimaryKey {
				lines = append(lines, "    Constraint: PRIMARY KEY")
			}
			if !c.Nullable {
				lines = append(lines, "    Constraint: NOT NULL")
			}
			if c.Unique {
				lines = append(lines, "    Constraint: UNIQUE")
			}
			if c.Default != nil {
				lines = append(lines, "    Default: "+*c.Default)
			}
		}
		if len(t.ForeignKeys) > 0 {
			lines = append(lines, "", "FOREIGN KEY RELATIONSHIPS:")
			for _, fk := range t.ForeignKeys {
				lines = append(lines, fmt.Sprintf("  - %s -> %s.%s", fk.Column, fk.ReferencesTable, fk.ReferencesColumn))
				if fk.OnDelete != nil {
					lines = append(lines, "    On Delete: "+*fk.OnDelete)
				}
			}
		}
		if len(t.Indexes) > 0 {
			lines = append(lines, "", "INDEXES:")
			for _, idx := range t.Indexes {
				lines = append(lines, "  - "+idx)
			}
		}
		if len(t.SampleRows) > 0 {
			lines = append(lines, "", "SAMPLE DATA:")
			for i, row := range t.SampleRows {
				if i >= 3 {
					break
				}
				lines = append(lines, fmt.Sprintf("  Row %d: %v", i+1, row))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// BuildErrorContext renders the previous attempt's error for the retry
// prompt, scaling detail with strategy.
func BuildErrorContext(strategy Strategy, errMsg string, analysis *model.ErrorAnalysis, previousSQL string, attemptNumber int, budget Budget) string {
	lines := []string{fmt.Sprintf("ATTEMPT #%d - Previous attempt failed. Fix the error:", attemptNumber)}

	switch strategy {
	case Concise:
		lines = append(lines, "Error: "+capAt(errMsg, 200))
		if analysis != nil && len(analysis.Hints) > 0 {
			lines = append(lines, "Fix: "+analysis.Hints[0])
		}
	case SemiExpanded:
		lines = append(lines, "Error Message:\n"+capAt(errMsg, 400))
		if previousSQL != "" {
			lines = append(lines, "\nFailed SQL:\n"+capAt(previousSQL, 300))
		}
		if analysis != nil && len(analysis.Hints) > 0 {
			lines = append(lines, "\nHints:")
			for i, h := range analysis.Hints {
				if i >= 2 {
					break
				}
				lines = append(lines, "  - "+h)
			}
		}
	default: // Expanded, Large
		lines = append(lines, "Error Message:\n"+errMsg)
		if previousSQL != "" {
			lines = append(lines, "\nFailed SQL Query:\n"+previousSQL)
		}
		if analysis != nil {
			lines = append(lines, fmt.Sprintf("\nError Type: %s", analysis.Kind))
			if len(analysis.OffendingIdentifiers) > 0 {
				lines = append(lines, "Identifiers Mentioned: "+strings.Join(analysis.OffendingIdentifiers, ", "))
			}
			if len(analysis.Hints) > 0 {
				lines = append(lines, "\nSuggestions:")
				for _, h := range analysis.Hints {
					lines = append(lines, "  - "+h)
				}
			}
		}
	}

	return TruncateToTokens(strings.Join(lines, "\n"), budget.Error)
}

// BuildConversationHistory renders up to the last 10 messages, newest-first
// until the section budget is exhausted, matching
// ContextManager.build_conversation_history.
func BuildConversationHistory(messages []model.ChatTurn, budget Budget) string {
	if len(messages) == 0 {
		return ""
	}
	recent := messages
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var lines []string
	total := 0
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		text := strings.ToUpper(msg.Role) + ": " + msg.Content
		tokens := EstimateTokens(text)
		if total+tokens > budget.History {
			break
		}
		lines = append([]string{text}, lines...)
		total += tokens
	}

	if len(lines) == 0 {
		return ""
	}
	return "\nConversation History:\n" + strings.Join(lines, "\n")
}

func capAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
