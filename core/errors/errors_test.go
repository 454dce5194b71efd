package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCoreError_Error(t *testing.T) {
	tests := []struct {
		name      string
		service   string
		operation string
		kind      Kind
		err       error
		want      string
	}{
		{"no kind", "Pool", "Acquire", "", fmt.Errorf("connection refused"), "[Pool.Acquire] connection refused"},
		{"with kind", "Agent", "Execute", ExecutionError, fmt.Errorf("column does not exist"), "[Agent.Execute] ExecutionError: column does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := &CoreError{Service: tt.service, Operation: tt.operation, Kind: tt.kind, Err: tt.err}
			if got := ce.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap_NilError(t *testing.T) {
	if Wrap("Svc", "Op", nil) != nil {
		t.Error("Wrap with nil err should return nil")
	}
	if WrapKind("Svc", "Op", ExecutionError, nil) != nil {
		t.Error("WrapKind with nil err should return nil")
	}
}

func TestWrapKind_ErrorsAs(t *testing.T) {
	original := fmt.Errorf("syntax error at or near \"SELCT\"")
	wrapped := WrapKind("SQLAgent", "Execute", ExecutionError, original)

	var ce *CoreError
	if !stderrors.As(wrapped, &ce) {
		t.Fatal("errors.As should find *CoreError")
	}
	if ce.Kind != ExecutionError {
		t.Errorf("Kind = %q, want %q", ce.Kind, ExecutionError)
	}
	if !stderrors.Is(wrapped, original) {
		t.Error("errors.Is should find the wrapped original error")
	}

	kind, ok := As(wrapped)
	if !ok || kind != ExecutionError {
		t.Errorf("As() = (%q, %v), want (%q, true)", kind, ok, ExecutionError)
	}
}

func TestAs_NotACoreError(t *testing.T) {
	if _, ok := As(fmt.Errorf("plain error")); ok {
		t.Error("As() should report false for a non-CoreError")
	}
}
