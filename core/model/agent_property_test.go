package model

import "testing"

// For every ErrorHistory, adjacent duplicates must be absent.
func TestAppendError_NeverAccumulatesAdjacentDuplicates(t *testing.T) {
	sequences := [][]string{
		{"a", "a", "a"},
		{"a", "b", "a"},
		{"x", "x", "y", "y", "x"},
		{},
	}
	for _, seq := range sequences {
		st := &AgentState{}
		for _, msg := range seq {
			st.AppendError(msg)
		}
		for i := 1; i < len(st.ErrorHistory); i++ {
			if st.ErrorHistory[i] == st.ErrorHistory[i-1] {
				t.Errorf("sequence %v: adjacent duplicate %q at index %d in %v", seq, st.ErrorHistory[i], i, st.ErrorHistory)
			}
		}
	}
}

func TestAppendError_AlwaysUpdatesLastError(t *testing.T) {
	st := &AgentState{}
	st.AppendError("first")
	st.AppendError("first")
	if st.LastError != "first" {
		t.Errorf("LastError = %q, want %q", st.LastError, "first")
	}
	if len(st.ErrorHistory) != 1 {
		t.Errorf("ErrorHistory = %v, want a single entry", st.ErrorHistory)
	}
}
