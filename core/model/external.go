package model

// QueryRequest is the external request shape for an inbound query.
type QueryRequest struct {
	Question            string     `json:"question"`
	ConversationHistory  []ChatTurn `json:"conversation_history,omitempty"`
	MaxRetries           *int       `json:"max_retries,omitempty"`
	SchemaName           string     `json:"schema_name,omitempty"`
	SessionID            string     `json:"session_id,omitempty"`
}

// QueryResponse is the success response shape for a completed query.
type QueryResponse struct {
	Question          string                   `json:"question"`
	SQLQuery          string                   `json:"sql_query"`
	Results           []map[string]interface{} `json:"results"`
	Columns           []string                 `json:"columns"`
	RowCount          int                      `json:"row_count"`
	ExecutionTime     float64                  `json:"execution_time"`
	Explanation       string                   `json:"explanation,omitempty"`
	RetryCount        int                      `json:"retry_count"`
	ErrorsEncountered []string                 `json:"errors_encountered"`
}

// QueryErrorEnvelope is the exhausted-retries / adapter-failure error shape.
type QueryErrorEnvelope struct {
	Error      string   `json:"error"`
	RetryCount int      `json:"retry_count"`
	Errors     []string `json:"errors"`
	SQLQuery   string   `json:"sql_query,omitempty"`
}

// TimeoutEnvelope is the bounded timeout error shape (HTTP 504 at the edge).
type TimeoutEnvelope struct {
	Error string `json:"error"`
}
