package sqlagent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sqlnexus/core/model"
)

type stubExecutor struct {
	dialect model.DatabaseType
	// results[i] is returned on the i'th call to Execute (0-indexed);
	// execErrs[i] is returned alongside it.
	results  [][]map[string]interface{}
	execErrs []error
	calls    int
}

func (s *stubExecutor) DatabaseType() model.DatabaseType { return s.dialect }

func (s *stubExecutor) Execute(ctx context.Context, sql string) ([]map[string]interface{}, []string, float64, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.execErrs) {
		err = s.execErrs[i]
	}
	return s.results[i], []string{"col1"}, 0.01, err
}

type stubLLM struct {
	responses     []string
	errs          []error
	calls         int
	systemPrompts []string
}

func (s *stubLLM) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string, dialect model.DatabaseType) (string, error) {
	s.systemPrompts = append(s.systemPrompts, systemPrompt)
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func sampleSchema() *model.SchemaSnapshot {
	snap := &model.SchemaSnapshot{
		DatabaseType: model.Postgres,
		Tables: []model.TableDescriptor{
			{
				SchemaName: "public", TableName: "vendors", FullName: "public.vendors",
				Columns: []model.ColumnDescriptor{
					{Name: "id", DataType: "integer", PrimaryKey: true},
					{Name: "vendor_name", DataType: "text"},
				},
			},
		},
	}
	snap.Normalize()
	return snap
}

func TestRun_HappyPath(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT * FROM vendors"}}
	exec := &stubExecutor{
		dialect: model.Postgres,
		results: [][]map[string]interface{}{{{"id": 1, "vendor_name": "Acme"}}},
		execErrs: []error{nil},
	}
	agent := NewAgent(exec, llm)

	st, err := agent.Run(context.Background(), Input{
		Question: "show all vendors", MaxRetries: 3, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !st.Success {
		t.Fatalf("expected success, got %+v", st)
	}
	if st.SQL != "SELECT * FROM vendors" {
		t.Errorf("SQL = %q", st.SQL)
	}
	if len(st.Results) != 1 {
		t.Errorf("Results = %+v", st.Results)
	}
	if st.Attempt != 0 {
		t.Errorf("Attempt = %d, want 0 (no retries needed)", st.Attempt)
	}
}

func TestRun_RetriesOnExecutionErrorThenSucceeds(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT bad_col FROM vendors", "SELECT vendor_name FROM vendors"}}
	exec := &stubExecutor{
		dialect: model.Postgres,
		results: [][]map[string]interface{}{nil, {{"vendor_name": "Acme"}}},
		execErrs: []error{errors.New(`column "bad_col" does not exist`), nil},
	}
	agent := NewAgent(exec, llm)

	st, err := agent.Run(context.Background(), Input{
		Question: "show vendor names", MaxRetries: 3, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !st.Success {
		t.Fatalf("expected eventual success, got %+v", st)
	}
	if st.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", st.Attempt)
	}
	if len(st.ErrorHistory) != 1 {
		t.Errorf("ErrorHistory = %v, want 1 entry", st.ErrorHistory)
	}
}

func TestRun_ExhaustsRetriesAndFails(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT bad_col FROM vendors"}}
	exec := &stubExecutor{
		dialect:  model.Postgres,
		results:  [][]map[string]interface{}{nil},
		execErrs: []error{errors.New("permanent failure")},
	}
	agent := NewAgent(exec, llm)

	st, err := agent.Run(context.Background(), Input{
		Question: "impossible query", MaxRetries: 2, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.Success {
		t.Fatalf("expected failure after exhausting retries, got %+v", st)
	}
	if st.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2 (== MaxRetries)", st.Attempt)
	}
	if len(st.ErrorHistory) == 0 {
		t.Error("expected ErrorHistory to record the execution failures")
	}
}

func TestRun_ExhaustsRetriesOnValidationFailureRecordsErrorHistory(t *testing.T) {
	// Starts with SELECT so generate accepts it; the trailing prose marker
	// is what validate rejects.
	llm := &stubLLM{responses: []string{"SELECT * FROM vendors -- here is the query you asked for"}}
	exec := &stubExecutor{dialect: model.Postgres, results: [][]map[string]interface{}{nil}}
	agent := NewAgent(exec, llm)

	st, err := agent.Run(context.Background(), Input{
		Question: "show all vendors", MaxRetries: 2, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.Success {
		t.Fatalf("expected failure, got %+v", st)
	}
	if st.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2 (== MaxRetries)", st.Attempt)
	}
	if exec.calls != 0 {
		t.Errorf("expected validate to reject every attempt before execute runs, calls = %d", exec.calls)
	}
	if len(st.ErrorHistory) == 0 {
		t.Fatal("expected validation failures to be recorded in ErrorHistory, got none")
	}
	for _, msg := range st.ErrorHistory {
		if !strings.Contains(msg, "explanatory text") {
			t.Errorf("ErrorHistory entry = %q, want it to describe the explanatory-prose rejection", msg)
		}
	}
}

func TestRun_RecoversFromTypeMismatchError(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"SELECT w.* FROM web_user w JOIN role_permissions r ON w.id = r.user_id",
		"SELECT w.* FROM web_user w JOIN role_permissions r ON w.id = r.user_id::VARCHAR",
	}}
	exec := &stubExecutor{
		dialect:  model.Postgres,
		results:  [][]map[string]interface{}{nil, {{"id": "u1"}}},
		execErrs: []error{errors.New("operator does not exist: text = integer"), nil},
	}
	agent := NewAgent(exec, llm)

	snap := &model.SchemaSnapshot{
		DatabaseType: model.Postgres,
		Tables: []model.TableDescriptor{
			{SchemaName: "public", TableName: "web_user", FullName: "public.web_user",
				Columns: []model.ColumnDescriptor{{Name: "id", DataType: "text"}}},
			{SchemaName: "public", TableName: "role_permissions", FullName: "public.role_permissions",
				Columns: []model.ColumnDescriptor{{Name: "user_id", DataType: "integer"}}},
		},
	}
	snap.Normalize()

	st, err := agent.Run(context.Background(), Input{
		Question: "show web users with a role", MaxRetries: 3, Dialect: model.Postgres, SchemaSnapshot: snap,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !st.Success {
		t.Fatalf("expected recovery from the type-mismatch error, got %+v", st)
	}
	if st.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", st.Attempt)
	}
}

func TestGenerate_OracleDialectPromptForbidsLimit(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT * FROM (SELECT e.* FROM employees e) WHERE ROWNUM <= 5"}}
	agent := NewAgent(&stubExecutor{dialect: model.Oracle}, llm)

	st := &model.AgentState{Question: "show first 5 employees", Dialect: model.Oracle, MaxRetries: 1}
	agent.generate(context.Background(), st)

	if len(llm.systemPrompts) != 1 {
		t.Fatalf("expected exactly one GenerateSQL call, got %d", len(llm.systemPrompts))
	}
	if !strings.Contains(llm.systemPrompts[0], "ROWNUM") {
		t.Errorf("Oracle system prompt missing ROWNUM guidance: %q", llm.systemPrompts[0])
	}
	if !strings.Contains(st.SQL, "ROWNUM") {
		t.Errorf("generated SQL = %q, want it to contain ROWNUM", st.SQL)
	}
}

func TestRun_RejectsEmptyLLMOutput(t *testing.T) {
	llm := &stubLLM{responses: []string{""}}
	exec := &stubExecutor{dialect: model.Postgres, results: [][]map[string]interface{}{nil}}
	agent := NewAgent(exec, llm)

	st, err := agent.Run(context.Background(), Input{
		Question: "anything", MaxRetries: 1, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.Success {
		t.Errorf("expected failure on empty SQL, got %+v", st)
	}
	if exec.calls != 0 {
		t.Errorf("expected execute to never be called for empty SQL, calls = %d", exec.calls)
	}
}

func TestRun_RejectsNonSQLOutput(t *testing.T) {
	llm := &stubLLM{responses: []string{"I cannot help with that request."}}
	exec := &stubExecutor{dialect: model.Postgres, results: [][]map[string]interface{}{nil}}
	agent := NewAgent(exec, llm)

	st, _ := agent.Run(context.Background(), Input{
		Question: "anything", MaxRetries: 1, Dialect: model.Postgres, SchemaSnapshot: sampleSchema(),
	})
	if st.Success {
		t.Errorf("expected failure on non-SQL output, got %+v", st)
	}
	if exec.calls != 0 {
		t.Errorf("expected execute never called, calls = %d", exec.calls)
	}
}

func TestValidate_RejectsDangerousUnrequestedOperation(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{Question: "show all vendors", SQL: "DROP TABLE vendors"}
	agent.validate(st)
	if st.LastError == "" {
		t.Error("expected validate to reject an unrequested DROP")
	}
}

func TestValidate_AllowsDangerousOperationWhenRequested(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{Question: "delete all inactive vendors", SQL: "DELETE FROM vendors WHERE active = false"}
	agent.validate(st)
	if st.LastError != "" {
		t.Errorf("expected validate to allow a requested DELETE, got error: %q", st.LastError)
	}
}

func TestValidate_RejectsExplanatoryProse(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{Question: "show vendors", SQL: "Here is the query: SELECT * FROM vendors"}
	agent.validate(st)
	if st.LastError == "" {
		t.Error("expected validate to reject explanatory prose")
	}
}

func TestValidate_RejectsNonKeywordStart(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{Question: "show vendors", SQL: "vendors are great"}
	agent.validate(st)
	if st.LastError == "" {
		t.Error("expected validate to reject a non-SQL-keyword start")
	}
}

func TestValidate_SkipsWhenLLMErrorAlreadyPresent(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{SQL: "", LastError: "LLM generation error: boom"}
	agent.validate(st)
	if st.LastError != "LLM generation error: boom" {
		t.Errorf("expected LastError left untouched, got %q", st.LastError)
	}
}

func TestAfterValidate_RoutesToFinalizeWhenRetriesExhausted(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{LastError: "bad sql", Attempt: 3, MaxRetries: 3}
	if got := agent.afterValidate(st); got != stateFinalize {
		t.Errorf("afterValidate = %v, want stateFinalize", got)
	}
}

func TestAfterValidate_RoutesToHandleErrorWhenRetriesRemain(t *testing.T) {
	agent := &Agent{}
	st := &model.AgentState{LastError: "bad sql", Attempt: 0, MaxRetries: 3}
	if got := agent.afterValidate(st); got != stateHandleError {
		t.Errorf("afterValidate = %v, want stateHandleError", got)
	}
}
