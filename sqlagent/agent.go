// Package sqlagent implements SQLAgent, the generate/validate/execute/
// handle_error/finalize state machine at the heart of the design, rendered
// as an explicit transition enum driven by a bounded loop rather than a
// LangGraph-style compiled StateGraph or a cloudwego/eino/compose graph; the
// choice is recorded in DESIGN.md.
package sqlagent

import (
	"context"
	"fmt"
	"strings"

	"sqlnexus/contextbuilder"
	"sqlnexus/core/model"
	"sqlnexus/erroranalyzer"
	"sqlnexus/knowledgegraph"
	"sqlnexus/llmcap"
	"sqlnexus/ragstore"
)

// state is one node of the driver's transition graph.
type state int

const (
	stateGenerate state = iota
	stateValidate
	stateExecute
	stateHandleError
	stateFinalize
	stateDone
)

// Executor is the narrow slice of dbadapter.Adapter the agent needs to run
// a generated statement against the active connection.
type Executor interface {
	DatabaseType() model.DatabaseType
	Execute(ctx context.Context, sql string) (rows []map[string]interface{}, columns []string, elapsed float64, err error)
}

// LLM is the narrow slice of llmcap.Capability the agent needs to turn a
// prompt into a SQL statement.
type LLM interface {
	GenerateSQL(ctx context.Context, systemPrompt, userPrompt string, dialect model.DatabaseType) (string, error)
}

// HintsProvider is the narrow slice of hints.Provider the agent needs.
type HintsProvider interface {
	Gather(ctx context.Context, question string, snap *model.SchemaSnapshot, dialect model.DatabaseType, schemaName string) *model.Hints
}

// Input is the per-run request the orchestrator passes to Run.
type Input struct {
	Question            string
	MaxRetries           int
	TargetSchema         string
	SchemaSnapshot       *model.SchemaSnapshot
	Dialect              model.DatabaseType
	ConversationHistory  []model.ChatTurn
}

var validSQLStarts = []string{"select", "with", "insert", "update", "delete", "create", "drop", "alter"}
var dangerousKeywords = []string{"drop", "truncate", "delete", "update", "insert", "alter"}
var explanatoryMarkers = []string{
	"based on", "here are", "there are", "the following",
	"here is", "this query", "you can", "i apologize",
}

// Agent drives one SQLAgent run. Every dependency but Executor and LLM is
// optional: Hints and RAGStore may be left nil and the corresponding
// behavior is simply skipped, a zero MaxTokens selects a 6000-token budget,
// and an empty Strategy is derived from MaxTokens.
type Agent struct {
	Executor Executor
	LLM      LLM
	Hints    HintsProvider
	RAGStore ragstore.Store

	Context       *contextbuilder.Builder
	MaxTokens     int
	Strategy      contextbuilder.Strategy // zero value means derive from MaxTokens
	ConnectionID  string
}

// NewAgent builds an Agent from its required dependencies; optional streams
// are wired in afterward by setting the corresponding field.
func NewAgent(executor Executor, llm LLM) *Agent {
	return &Agent{Executor: executor, LLM: llm, Context: contextbuilder.NewBuilder(0)}
}

// Factory holds the dependencies shared across every request — the LLM
// binding, the optional hint streams, the RAG store, and the context
// builder's token budget — and mints one Agent per request bound to that
// request's acquired Executor, since two concurrent queries never share a
// connection. The LLM/vector-store bindings stay immutable after
// construction while each query still gets its own AgentState and,
// transitively, its own Agent.
type Factory struct {
	LLM       LLM
	Hints     HintsProvider
	RAGStore  ragstore.Store
	Context   *contextbuilder.Builder
	MaxTokens int
	Strategy  contextbuilder.Strategy
}

// NewAgent binds executor to a fresh Agent sharing this Factory's
// configuration.
func (f *Factory) NewAgent(executor Executor) *Agent {
	return &Agent{
		Executor:  executor,
		LLM:       f.LLM,
		Hints:     f.Hints,
		RAGStore:  f.RAGStore,
		Context:   f.Context,
		MaxTokens: f.MaxTokens,
		Strategy:  f.Strategy,
	}
}

// Run executes the generate/validate/execute/handle_error/finalize state
// machine for one question, returning the finalized AgentState. The driver
// enforces a hard step cap of (max_retries+1)*10 so that no edge case can
// loop forever.
func (a *Agent) Run(ctx context.Context, in Input) (*model.AgentState, error) {
	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	st := &model.AgentState{
		Question:            in.Question,
		MaxRetries:           maxRetries,
		TargetSchema:         in.TargetSchema,
		SchemaSnapshot:       in.SchemaSnapshot,
		Dialect:              in.Dialect,
		ConversationHistory:  in.ConversationHistory,
	}

	stepLimit := (maxRetries + 1) * 10
	cur := stateGenerate
	for steps := 0; steps < stepLimit && cur != stateDone; steps++ {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}

		var next state
		switch cur {
		case stateGenerate:
			a.generate(ctx, st)
			next = stateValidate
		case stateValidate:
			a.validate(st)
			next = a.afterValidate(st)
		case stateExecute:
			a.execute(ctx, st)
			next = a.afterExecute(st)
		case stateHandleError:
			a.handleError(st)
			next = a.afterHandleError(st)
		case stateFinalize:
			a.finalize(st)
			next = stateDone
		}
		cur = next
	}

	if cur != stateDone {
		// Step budget exhausted without reaching finalize: surface what we
		// have as a failed run rather than silently truncating.
		st.Success = false
	}
	return st, nil
}

// afterValidate implements validate's conditional edge:
// validate -> (execute | handle_error | finalize).
func (a *Agent) afterValidate(st *model.AgentState) state {
	if st.LastError == "" {
		return stateExecute
	}
	if st.Attempt >= st.MaxRetries {
		return stateFinalize
	}
	return stateHandleError
}

// afterExecute implements execute's conditional edge:
// execute -> (finalize | handle_error).
func (a *Agent) afterExecute(st *model.AgentState) state {
	if st.Success {
		return stateFinalize
	}
	return stateHandleError
}

// afterHandleError implements handle_error's conditional edge:
// handle_error -> (generate | finalize).
func (a *Agent) afterHandleError(st *model.AgentState) state {
	if st.Attempt >= st.MaxRetries {
		return stateFinalize
	}
	return stateGenerate
}

// generate normalizes the schema snapshot, gathers semantic hints, builds
// the prompt (focused schema + error section when retrying), and calls the
// LLM. On empty or non-SQL output it records a structured error so
// validate forces a retry, mirroring _generate_sql_node.
func (a *Agent) generate(ctx context.Context, st *model.AgentState) {
	if st.SchemaSnapshot != nil {
		st.SchemaSnapshot.Normalize()
	}

	if a.Hints != nil {
		st.Hints = a.Hints.Gather(ctx, st.Question, st.SchemaSnapshot, st.Dialect, st.TargetSchema)
	}

	strategy := a.Strategy
	if strategy == "" {
		strategy = contextbuilder.DetermineStrategy(a.effectiveMaxTokens())
	}
	budget := contextbuilder.NewBudget(a.effectiveMaxTokens(), strategy)

	systemPrompt := contextbuilder.BuildSystemPrompt(strategy, budget) + "\n" + llmcap.DialectSystemPrompt(st.Dialect, strategy != contextbuilder.Concise)

	isRetry := st.LastError != "" && st.Attempt > 0
	var focusedTables []string
	if isRetry && st.SchemaSnapshot != nil {
		focusedTables = knowledgegraph.DetectMentionedTables(st.LastError, st.SchemaSnapshot)
	}
	schemaSection := contextbuilder.BuildSchemaContext(strategy, st.SchemaSnapshot, focusedTables, budget)
	historySection := contextbuilder.BuildConversationHistory(st.ConversationHistory, budget)

	var userPrompt strings.Builder
	fmt.Fprintf(&userPrompt, "QUESTION: %s\n\n", st.Question)

	if isRetry {
		var analysis *model.ErrorAnalysis
		if st.SchemaSnapshot != nil {
			analysis = erroranalyzer.Analyze(st.LastError, st.SchemaSnapshot)
		}
		errorSection := contextbuilder.BuildErrorContext(strategy, st.LastError, analysis, st.SQL, st.Attempt, budget)
		userPrompt.WriteString(errorSection)
		userPrompt.WriteString("\n\n")
	}

	userPrompt.WriteString(schemaSection)
	userPrompt.WriteString(historySection)
	userPrompt.WriteString(hintsSection(st.Hints))
	userPrompt.WriteString("\n\nGenerate the SQL query:")

	sql, err := a.LLM.GenerateSQL(ctx, systemPrompt, userPrompt.String(), st.Dialect)
	if err != nil {
		st.AppendError("LLM generation error: " + err.Error())
		return
	}

	sql = strings.TrimSpace(sql)
	if sql == "" {
		st.AppendError("LLM generation error: empty SQL")
		return
	}
	if !startsWithKeyword(sql, validSQLStarts) {
		st.AppendError("LLM generation error: response is not a SQL statement: " + capAt(sql, 100))
		return
	}

	st.SQL = sql
	st.LastError = ""
}

func (a *Agent) effectiveMaxTokens() int {
	if a.MaxTokens > 0 {
		return a.MaxTokens
	}
	return 6000
}

func hintsSection(h *model.Hints) string {
	if h == nil || len(h.Sources) == 0 {
		return ""
	}
	var b strings.Builder
	if len(h.DetectedConcepts) > 0 {
		fmt.Fprintf(&b, "\n\nDetected concepts: %s", strings.Join(h.DetectedConcepts, ", "))
	}
	if len(h.SuggestedJoins) > 0 {
		fmt.Fprintf(&b, "\nSuggested joins: %s", strings.Join(h.SuggestedJoins, "; "))
	}
	if len(h.RelatedTables) > 0 {
		fmt.Fprintf(&b, "\nRelated tables: %s", strings.Join(h.RelatedTables, ", "))
	}
	for table, cols := range h.SuggestedColumns {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Column
		}
		fmt.Fprintf(&b, "\nSuggested columns for %s: %s", table, strings.Join(names, ", "))
	}
	if len(h.SimilarPastPairs) > 0 {
		fmt.Fprintf(&b, "\nSimilar past query: %s -> %s", h.SimilarPastPairs[0].Question, h.SimilarPastPairs[0].SQL)
	}
	return b.String()
}

func capAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func startsWithKeyword(sql string, keywords []string) bool {
	lower := strings.ToLower(strings.TrimSpace(sql))
	for _, kw := range keywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// validate enforces the SQL contract: non-empty, starts with a SQL
// keyword, no explanatory prose, no unrequested dangerous operation, and
// (when a target schema was supplied) schema-qualified table references.
func (a *Agent) validate(st *model.AgentState) {
	if strings.Contains(st.LastError, "LLM generation error") {
		return
	}

	sql := strings.TrimSpace(st.SQL)
	if sql == "" {
		st.LastError = "Empty SQL query generated"
		return
	}

	lower := strings.ToLower(sql)
	if !startsWithKeyword(sql, validSQLStarts) {
		st.LastError = "Invalid SQL: query must start with a SQL keyword, but starts with: " + capAt(sql, 50)
		return
	}

	for _, marker := range explanatoryMarkers {
		if strings.Contains(lower, marker) {
			st.LastError = "Invalid SQL: contains explanatory text instead of pure SQL: " + capAt(sql, 100)
			return
		}
	}

	questionLower := strings.ToLower(st.Question)
	for _, kw := range dangerousKeywords {
		if strings.Contains(lower, kw) && !strings.Contains(questionLower, kw) {
			st.LastError = "Query contains potentially dangerous operation not requested"
			return
		}
	}

	if st.TargetSchema != "" && !strings.Contains(sql, st.TargetSchema) && strings.Contains(strings.ToUpper(sql), "FROM") {
		st.LastError = "Hint: use schema prefix like " + st.TargetSchema + ".table_name"
		return
	}

	st.LastError = ""
}

// execute runs the validated statement against the active adapter. On
// success it records rows/columns/elapsed and offers the (question, sql)
// pair to the RAG store, best-effort; on failure it appends the native
// error message (deduplicated against the most recent) and lets the driver
// route to handle_error.
func (a *Agent) execute(ctx context.Context, st *model.AgentState) {
	rows, columns, elapsed, err := a.Executor.Execute(ctx, st.SQL)
	if err != nil {
		st.AppendError(err.Error())
		st.Success = false
		return
	}

	st.Results = rows
	st.Columns = columns
	st.ExecutionTime = elapsed
	st.Success = true
	st.LastError = ""

	if a.RAGStore != nil {
		_ = a.RAGStore.Add(ctx, ragstore.Entry{
			Question: st.Question,
			SQL:      st.SQL,
			Dialect:  string(st.Dialect),
			SchemaName: st.TargetSchema,
			Success:  true,
		})
	}
}

// handleError records the current error (deduplicated against the most
// recent history entry) and increments the attempt counter. generate and
// execute already append their own failures as they occur, so this is a
// no-op for those paths; it is what gives validate's rejections — which
// only ever set LastError — an entry in ErrorHistory. The error text is
// also left in LastError: the next generate call consumes it to build the
// retry's error section.
func (a *Agent) handleError(st *model.AgentState) {
	if st.LastError != "" {
		st.AppendError(st.LastError)
	}
	st.Attempt++
}

// finalize is a no-op terminal node: AgentState already carries the result.
func (a *Agent) finalize(st *model.AgentState) {}
