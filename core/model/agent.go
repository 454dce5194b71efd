package model

import "time"

// ChatTurn is one message of a conversation history, as accepted on the
// external query request and consumed by the context builder's history
// section.
type ChatTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ErrorKind classifies an ExecutionError surfaced by a database adapter.
type ErrorKind string

const (
	ErrMissingColumn ErrorKind = "missing_column"
	ErrMissingTable  ErrorKind = "missing_table"
	ErrTypeMismatch  ErrorKind = "type_mismatch"
	ErrSyntax        ErrorKind = "syntax"
	ErrUnknown       ErrorKind = "unknown"
)

// ErrorAnalysis is the structured diagnosis of one failed execution attempt.
type ErrorAnalysis struct {
	Kind                ErrorKind `json:"kind"`
	OffendingIdentifiers []string `json:"offending_identifiers"`
	Suggestions         []string  `json:"suggestions"`
	ColumnTypesCited     []string `json:"column_types_cited,omitempty"`
	Hints               []string  `json:"hints"`
}

// ColumnSuggestion is one scored column suggestion carried by Hints.
type ColumnSuggestion struct {
	Column     string  `json:"column"`
	Confidence float64 `json:"confidence"`
}

// GraphInsight is one relevance-scored concept-to-column binding surfaced by
// the knowledge graph stream of the semantic hints provider.
type GraphInsight struct {
	ConnectionID   string  `json:"connection_id"`
	Concept        string  `json:"concept"`
	Property       string  `json:"property"`
	Table          string  `json:"table"`
	Column         string  `json:"column"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SimilarQueryPair is one retrieved historical (question, sql) pair.
type SimilarQueryPair struct {
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Dialect    string    `json:"dialect"`
	SchemaName string    `json:"schema_name,omitempty"`
	Similarity float64   `json:"similarity"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Hints is the semantic payload merged from the ontology resolver, the
// knowledge graph, and the RAG store and injected into the next prompt.
type Hints struct {
	DetectedConcepts  []string                      `json:"detected_concepts"`
	SuggestedColumns  map[string][]ColumnSuggestion `json:"suggested_columns"`
	SuggestedJoins    []string                      `json:"suggested_joins"`
	RelatedTables     []string                      `json:"related_tables"`
	SimilarPastPairs  []SimilarQueryPair            `json:"similar_past_pairs"`

	// Sources records which of the three optional streams contributed,
	// for observability only — it never changes retry behavior.
	Sources []string `json:"sources,omitempty"`
}

// AgentState is the sole mutable record threaded through the SQLAgent state
// machine during one Run(). It is created fresh per run and discarded when
// the orchestrator returns.
type AgentState struct {
	// Inputs — immutable after creation.
	Question       string
	MaxRetries      int
	TargetSchema    string
	SchemaSnapshot  *SchemaSnapshot
	RawSchemaText   string
	Dialect         DatabaseType
	ConversationHistory []ChatTurn

	// Progress.
	Attempt      int
	SQL          string
	LastError    string
	ErrorHistory []string
	Hints        *Hints

	// Output.
	Results     []map[string]interface{}
	Columns     []string
	ExecutionTime float64
	Explanation string
	Success     bool
}

// AppendError records a new execution error, deduplicating against the most
// recent entry so adjacent duplicates never accumulate.
func (s *AgentState) AppendError(msg string) {
	s.LastError = msg
	if n := len(s.ErrorHistory); n > 0 && s.ErrorHistory[n-1] == msg {
		return
	}
	s.ErrorHistory = append(s.ErrorHistory, msg)
}
