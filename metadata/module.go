package metadata

import (
	"fmt"
	"iter"
	"strings"
)

// Module is the mutable in-memory view of a compiled WebAssembly module.
// Only external linkage (function import module names) is mutable; every
// other section is kept as raw bytes and re-emitted verbatim.
type Module struct {
	refs       *References
	signatures []Signature
	raw        []byte
	sections   []section
	imports    []*importEntry
	funcTypes  []uint32
	exports    []Export
	methods    []*Method
	types      []*Type

	// signaturesKnown is false when the type section uses GC type forms.
	signaturesKnown bool
	hasTypeTree     bool
}

type section struct {
	raw     []byte // id + size + payload, as read
	payload []byte
	id      byte
}

type importEntry struct {
	linkage *ExternalLinkage // set for function imports
	ref     *ModuleRef       // set for every other kind
	module  string           // module name as loaded
	name    string
	desc    []byte // raw descriptor bytes after the kind byte
	kind    byte
}

func (e *importEntry) currentModule() string {
	if e.linkage != nil {
		if e.linkage.Module == nil {
			return e.module
		}
		return e.linkage.Module.Name()
	}
	return e.ref.Name()
}

// Import is a read-only view of one import entry.
type Import struct {
	Module string
	Name   string
	Kind   byte
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Type groups methods under a name. Types nest without a depth limit.
type Type struct {
	DeclaringType *Type
	Name          string
	Methods       []*Method
	Nested        []*Type
}

// FullName returns the type name qualified by its declaring types,
// e.g. "Outer/Inner".
func (t *Type) FullName() string {
	if t.DeclaringType == nil {
		return t.Name
	}
	return t.DeclaringType.FullName() + NestedSeparator + t.Name
}

// FindMethod returns the first method with the given name, or nil.
func (t *Type) FindMethod(name string) *Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Method is a function in the module's function index space.
type Method struct {
	DeclaringType *Type
	// Signature is nil when the module's type section could not be decoded
	// into plain function types.
	Signature *Signature
	// Linkage is non-nil for imported functions.
	Linkage *ExternalLinkage
	Name    string
	Exports []string
	Index   uint32
}

// IsExternal reports whether the method is bound to an external module.
func (m *Method) IsExternal() bool {
	return m.Linkage != nil
}

// ExternalLinkage binds a method to an entry point in a named external module.
type ExternalLinkage struct {
	Module     *ModuleRef
	EntryPoint string
}

// ValType is a WebAssembly value type byte.
type ValType byte

// Value types used in signatures.
const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
	ValRefNull ValType = 0x63
	ValRef     ValType = 0x64
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	case ValRefNull:
		return "ref null"
	case ValRef:
		return "ref"
	default:
		return fmt.Sprintf("0x%02x", byte(v))
	}
}

// Signature is a function type.
type Signature struct {
	Params  []ValType
	Results []ValType
}

func (s *Signature) String() string {
	if s == nil {
		return "<unknown>"
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	switch len(s.Results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(s.Results[0].String())
	default:
		b.WriteByte('(')
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Types returns the top-level types in declaration order. The implicit
// ModuleTypeName type is always first.
func (m *Module) Types() []*Type {
	return m.types
}

// FindType resolves a type by its FullName.
func (m *Module) FindType(fullName string) *Type {
	parts := strings.Split(fullName, NestedSeparator)
	candidates := m.types
	var found *Type
	for _, part := range parts {
		found = nil
		for _, t := range candidates {
			if t.Name == part {
				found = t
				break
			}
		}
		if found == nil {
			return nil
		}
		candidates = found.Nested
	}
	return found
}

// Methods iterates every method of every type, pre-order: a type's own
// methods first, then its nested types.
func (m *Module) Methods() iter.Seq[*Method] {
	return func(yield func(*Method) bool) {
		stack := make([]*Type, 0, len(m.types))
		for i := len(m.types) - 1; i >= 0; i-- {
			stack = append(stack, m.types[i])
		}
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, meth := range t.Methods {
				if !yield(meth) {
					return
				}
			}
			for i := len(t.Nested) - 1; i >= 0; i-- {
				stack = append(stack, t.Nested[i])
			}
		}
	}
}

// Method returns the method at a function index, or nil.
func (m *Module) Method(idx uint32) *Method {
	if int(idx) >= len(m.methods) {
		return nil
	}
	return m.methods[idx]
}

// NumMethods returns the size of the function index space.
func (m *Module) NumMethods() int {
	return len(m.methods)
}

// SignaturesKnown reports whether method signatures were decoded.
func (m *Module) SignaturesKnown() bool {
	return m.signaturesKnown
}

// HasTypeTree reports whether the module carried a TypeTreeSection.
func (m *Module) HasTypeTree() bool {
	return m.hasTypeTree
}

// Imports returns a snapshot of every import with its current module name.
func (m *Module) Imports() []Import {
	out := make([]Import, len(m.imports))
	for i, e := range m.imports {
		out[i] = Import{Module: e.currentModule(), Name: e.name, Kind: e.kind}
	}
	return out
}

// Exports returns the module's exports.
func (m *Module) Exports() []Export {
	return m.exports
}

// References returns the module reference table.
func (m *Module) References() *References {
	return m.refs
}

// UsedReferences returns the references bound by at least one import, in
// import order. Only these are written by Serialize.
func (m *Module) UsedReferences() []*ModuleRef {
	seen := make(map[string]bool, len(m.imports))
	var out []*ModuleRef
	for _, e := range m.imports {
		name := e.currentModule()
		if seen[name] {
			continue
		}
		seen[name] = true
		ref, ok := m.refs.Lookup(name)
		if !ok {
			ref, _ = m.refs.Intern(name)
		}
		out = append(out, ref)
	}
	return out
}

// UnusedReferences returns registered references no import binds to.
// They are pruned on serialization.
func (m *Module) UnusedReferences() []*ModuleRef {
	used := make(map[string]bool)
	for _, ref := range m.UsedReferences() {
		used[ref.Name()] = true
	}
	var out []*ModuleRef
	for _, ref := range m.refs.All() {
		if !used[ref.Name()] {
			out = append(out, ref)
		}
	}
	return out
}

// Modified reports whether any import now binds to a module other than the
// one it was loaded with.
func (m *Module) Modified() bool {
	for _, e := range m.imports {
		if e.currentModule() != e.module {
			return true
		}
	}
	return false
}
