// Package wasmtest builds small WebAssembly binaries for tests.
package wasmtest

import (
	"github.com/wippyai/wasm-relink/internal/binary"
)

// Value types.
const (
	I32 byte = 0x7F
	I64 byte = 0x7E
	F32 byte = 0x7D
	F64 byte = 0x7C
)

// Common function bodies, each terminated by end.
var (
	// BodyEmpty does nothing.
	BodyEmpty = []byte{0x0b}
	// BodyConst16 returns i32 16.
	BodyConst16 = []byte{0x41, 0x10, 0x0b}
	// BodyForward2 calls function 0 with its two parameters.
	BodyForward2 = []byte{0x20, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b}
)

// ConstI32 returns a body that returns v (v < 64).
func ConstI32(v byte) []byte {
	return []byte{0x41, v & 0x3f, 0x0b}
}

type funcType struct {
	params, results []byte
}

type importEntry struct {
	module, name string
	desc         []byte
	kind         byte
}

type function struct {
	body    []byte
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type custom struct {
	name    string
	payload []byte
}

type name struct {
	name string
	idx  uint32
}

// Builder assembles a module. Imports must be added before defined
// functions so returned function indices stay valid.
type Builder struct {
	memory      *uint32
	types       []funcType
	imports     []importEntry
	funcs       []function
	exports     []export
	names       []name
	customs     []custom
	importFuncs uint32
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Type adds a function type and returns its index.
func (b *Builder) Type(params, results []byte) uint32 {
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (b *Builder) ImportFunc(module, field string, typeIdx uint32) uint32 {
	w := binary.NewWriter()
	w.WriteU32(typeIdx)
	b.imports = append(b.imports, importEntry{module: module, name: field, kind: 0x00, desc: w.Bytes()})
	b.importFuncs++
	return b.importFuncs - 1
}

// ImportMemory adds a memory import with the given minimum page count.
func (b *Builder) ImportMemory(module, field string, min uint32) {
	w := binary.NewWriter()
	w.Byte(0x00)
	w.WriteU32(min)
	b.imports = append(b.imports, importEntry{module: module, name: field, kind: 0x02, desc: w.Bytes()})
}

// ImportGlobal adds a global import.
func (b *Builder) ImportGlobal(module, field string, valType byte, mutable bool) {
	mut := byte(0)
	if mutable {
		mut = 1
	}
	b.imports = append(b.imports, importEntry{module: module, name: field, kind: 0x03, desc: []byte{valType, mut}})
}

// Func adds a defined function and returns its function index.
func (b *Builder) Func(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, function{typeIdx: typeIdx, body: body})
	return b.importFuncs + uint32(len(b.funcs)-1)
}

// Memory defines a memory with the given minimum page count.
func (b *Builder) Memory(min uint32) {
	b.memory = &min
}

// ExportFunc exports a function.
func (b *Builder) ExportFunc(exportName string, idx uint32) {
	b.exports = append(b.exports, export{name: exportName, kind: 0x00, idx: idx})
}

// ExportMemory exports memory 0.
func (b *Builder) ExportMemory(exportName string) {
	b.exports = append(b.exports, export{name: exportName, kind: 0x02})
}

// Name records a function name for the name section.
func (b *Builder) Name(idx uint32, funcName string) {
	b.names = append(b.names, name{idx: idx, name: funcName})
}

// Custom appends a custom section after all standard sections.
func (b *Builder) Custom(sectionName string, payload []byte) {
	b.customs = append(b.customs, custom{name: sectionName, payload: payload})
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(0x6D736100)
	w.WriteU32LE(1)

	if len(b.types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			s.Byte(0x60)
			s.WriteU32(uint32(len(t.params)))
			s.WriteBytes(t.params)
			s.WriteU32(uint32(len(t.results)))
			s.WriteBytes(t.results)
		}
		w.WriteSection(1, s.Bytes())
	}

	if len(b.imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			s.WriteName(imp.module)
			s.WriteName(imp.name)
			s.Byte(imp.kind)
			s.WriteBytes(imp.desc)
		}
		w.WriteSection(2, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.WriteU32(f.typeIdx)
		}
		w.WriteSection(3, s.Bytes())
	}

	if b.memory != nil {
		s := binary.NewWriter()
		s.WriteU32(1)
		s.Byte(0x00)
		s.WriteU32(*b.memory)
		w.WriteSection(5, s.Bytes())
	}

	if len(b.exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.exports)))
		for _, e := range b.exports {
			s.WriteName(e.name)
			s.Byte(e.kind)
			s.WriteU32(e.idx)
		}
		w.WriteSection(7, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.WriteU32(uint32(len(f.body) + 1))
			s.Byte(0x00) // no locals
			s.WriteBytes(f.body)
		}
		w.WriteSection(10, s.Bytes())
	}

	if len(b.names) > 0 {
		sub := binary.NewWriter()
		sub.WriteU32(uint32(len(b.names)))
		for _, n := range b.names {
			sub.WriteU32(n.idx)
			sub.WriteName(n.name)
		}
		s := binary.NewWriter()
		s.Byte(0x01)
		s.WriteU32(uint32(sub.Len()))
		s.WriteBytes(sub.Bytes())
		w.WriteCustomSection("name", s.Bytes())
	}

	for _, c := range b.customs {
		w.WriteCustomSection(c.name, c.payload)
	}
	return w.Bytes()
}
