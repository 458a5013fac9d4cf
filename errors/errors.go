package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names the pipeline step that failed.
type Phase string

const (
	PhaseLoad      Phase = "load"      // reading and decoding a module
	PhaseRemap     Phase = "remap"     // retargeting external linkage
	PhaseSerialize Phase = "serialize" // re-encoding a module
	PhaseActivate  Phase = "activate"  // compiling and instantiating
	PhaseInvoke    Phase = "invoke"    // calling the entry point
	PhaseParse     Phase = "parse"     // init blob and CLI arguments
	PhasePatch     Phase = "patch"     // calling-convention patching
)

// Kind classifies a failure independently of where it happened.
type Kind string

const (
	KindMalformedMetadata  Kind = "malformed_metadata"
	KindMalformedInitBlob  Kind = "malformed_init_blob"
	KindModuleNotFound     Kind = "module_not_found"
	KindEntryPointNotFound Kind = "entry_point_not_found"
	KindActivationFailed   Kind = "activation_failed"
	KindMappingNotFound    Kind = "mapping_not_found"
	KindInvalidMapping     Kind = "invalid_mapping"
	KindInvocation         Kind = "invocation"
	KindNotInitialized     Kind = "not_initialized"
)

// Kind sentinels for errors.Is. They match any *Error of the same kind
// regardless of phase.
var (
	ErrMalformedMetadata  = &Error{Kind: KindMalformedMetadata}
	ErrMalformedInitBlob  = &Error{Kind: KindMalformedInitBlob}
	ErrModuleNotFound     = &Error{Kind: KindModuleNotFound}
	ErrEntryPointNotFound = &Error{Kind: KindEntryPointNotFound}
	ErrActivationFailed   = &Error{Kind: KindActivationFailed}
	ErrMappingNotFound    = &Error{Kind: KindMappingNotFound}
	ErrInvalidMapping     = &Error{Kind: KindInvalidMapping}
	ErrInvocation         = &Error{Kind: KindInvocation}
	ErrNotInitialized     = &Error{Kind: KindNotInitialized}
)

// Error describes a failure with the location it refers to and the
// underlying cause, if any.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Phase != "" {
		fmt.Fprintf(&b, "[%s] ", e.Phase)
	}
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " at %s", strings.Join(e.Path, ": "))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts an Error of the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	b := &Builder{}
	b.err.Phase, b.err.Kind = phase, kind
	return b
}

// Path sets the location the error refers to, outermost first.
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value records the rejected input.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause records the error that triggered this one.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	b.err.Detail = msg
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	}
	return b
}

// Build returns the Error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Constructors for the failures reported across packages.

// MalformedMetadata creates an error for a binary that is not a recognizable module
func MalformedMetadata(section string, cause error) *Error {
	e := &Error{
		Phase: PhaseLoad,
		Kind:  KindMalformedMetadata,
		Cause: cause,
	}
	if section != "" {
		e.Path = []string{section}
	}
	return e
}

// ModuleNotFound creates an error for a module path that cannot be read
func ModuleNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindModuleNotFound,
		Path:   []string{path},
		Detail: "module file is not readable",
		Cause:  cause,
	}
}

// MalformedInitBlob creates an error for an init blob that does not split into two fields
func MalformedInitBlob(detail string, fields int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMalformedInitBlob,
		Detail: detail,
		Value:  fields,
	}
}

// MappingNotFound creates an error for a mapping argument without a usable "name=target" pair
func MappingNotFound(arg string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMappingNotFound,
		Path:   []string{arg},
		Detail: "expected <sentinel>=<target>",
		Value:  arg,
	}
}

// EntryPointNotFound creates an error for a missing well-known type or method
func EntryPointNotFound(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindEntryPointNotFound,
		Path:   path,
		Detail: detail,
	}
}

// ActivationFailed wraps a compile or instantiate failure
func ActivationFailed(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindActivationFailed,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Status codes returned across the native boundary.
const (
	StatusFailed         int32 = -1
	StatusNotInitialized int32 = -2
)

// Status maps an error to the negative status convention. A nil error maps to 0.
func Status(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotInitialized):
		return StatusNotInitialized
	default:
		return StatusFailed
	}
}
