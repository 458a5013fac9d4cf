package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindModuleNotFound,
				Path:   []string{"/tmp/mod.wasm"},
				Detail: "module file is not readable",
			},
			contains: []string{"[load]", "module_not_found", "/tmp/mod.wasm", "not readable"},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseRemap, Kind: KindInvalidMapping},
			contains: []string{"[remap]", "invalid_mapping"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseActivate,
				Kind:   KindActivationFailed,
				Detail: "compile",
				Cause:  errors.New("invalid section"),
			},
			contains: []string{"[activate]", "activation_failed", "compile", "caused by", "invalid section"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindMalformedMetadata, cause, "header")

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_IsKindSentinel(t *testing.T) {
	err := fmt.Errorf("boot: %w", ModuleNotFound("/nope", nil))

	if !errors.Is(err, ErrModuleNotFound) {
		t.Error("expected kind sentinel to match through wrapping")
	}
	if errors.Is(err, ErrMalformedMetadata) {
		t.Error("sentinel of a different kind must not match")
	}
}

func TestError_IsPhaseAndKind(t *testing.T) {
	err := New(PhaseLoad, KindMalformedMetadata).Build()

	if !errors.Is(err, &Error{Phase: PhaseLoad, Kind: KindMalformedMetadata}) {
		t.Error("expected phase+kind match")
	}
	if errors.Is(err, &Error{Phase: PhaseSerialize, Kind: KindMalformedMetadata}) {
		t.Error("different phase must not match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseActivate, KindEntryPointNotFound).
		Path("Runtime.Engine", "InternalInitialize").
		Detail("method %q is not exported", "InternalInitialize").
		Value(7).
		Cause(cause).
		Build()

	if err.Phase != PhaseActivate || err.Kind != KindEntryPointNotFound {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if got := strings.Join(err.Path, "|"); got != "Runtime.Engine|InternalInitialize" {
		t.Errorf("path: got %q", got)
	}
	if err.Detail != `method "InternalInitialize" is not exported` {
		t.Errorf("detail: got %q", err.Detail)
	}
	if err.Value != 7 {
		t.Errorf("value: got %v", err.Value)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wired")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		kind Kind
	}{
		{MalformedMetadata("import section", nil), KindMalformedMetadata},
		{MalformedInitBlob("missing separator", 1), KindMalformedInitBlob},
		{MappingNotFound("nope"), KindMappingNotFound},
		{EntryPointNotFound([]string{"T"}, "type not found"), KindEntryPointNotFound},
		{ActivationFailed("instantiate", errors.New("x")), KindActivationFailed},
	}
	for _, tt := range tests {
		if tt.err.Kind != tt.kind {
			t.Errorf("got kind %s, want %s", tt.err.Kind, tt.kind)
		}
		if KindOf(fmt.Errorf("wrapped: %w", tt.err)) != tt.kind {
			t.Errorf("KindOf did not see %s through wrapping", tt.kind)
		}
	}
}

func TestKindOf_Foreign(t *testing.T) {
	if k := KindOf(errors.New("plain")); k != "" {
		t.Errorf("expected empty kind, got %q", k)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int32
	}{
		{nil, 0},
		{errors.New("plain"), StatusFailed},
		{ModuleNotFound("/x", nil), StatusFailed},
		{New(PhaseInvoke, KindNotInitialized).Build(), StatusNotInitialized},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
