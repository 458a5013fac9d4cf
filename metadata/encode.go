package metadata

import (
	"github.com/wippyai/wasm-relink/internal/binary"
)

// Serialize returns the module binary with the current external linkage.
// When no import was retargeted the original bytes are returned unchanged.
// Otherwise every section is written back as read except the import
// section, which is re-encoded from the in-memory descriptors.
func (m *Module) Serialize() []byte {
	if !m.Modified() {
		out := make([]byte, len(m.raw))
		copy(out, m.raw)
		return out
	}

	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)
	for _, s := range m.sections {
		if s.id == SectionImport {
			w.WriteSection(SectionImport, m.encodeImports())
			continue
		}
		w.WriteBytes(s.raw)
	}
	return w.Bytes()
}

func (m *Module) encodeImports() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(m.imports)))
	for _, e := range m.imports {
		w.WriteName(e.currentModule())
		w.WriteName(e.name)
		w.Byte(e.kind)
		w.WriteBytes(e.desc)
	}
	return w.Bytes()
}

// TypeDecl declares one entry of the type tree.
type TypeDecl struct {
	Name   string
	Funcs  []uint32
	Nested []TypeDecl
}

// EncodeTypeTree encodes decls as a TypeTreeSection payload (without the
// section name).
func EncodeTypeTree(decls []TypeDecl) []byte {
	type frame struct {
		decls []TypeDecl
		next  int
	}

	w := binary.NewWriter()
	w.WriteU32(uint32(len(decls)))
	stack := []*frame{{decls: decls}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.decls) {
			stack = stack[:len(stack)-1]
			continue
		}
		d := top.decls[top.next]
		top.next++

		w.WriteName(d.Name)
		w.WriteU32(uint32(len(d.Funcs)))
		for _, idx := range d.Funcs {
			w.WriteU32(idx)
		}
		w.WriteU32(uint32(len(d.Nested)))
		stack = append(stack, &frame{decls: d.Nested})
	}
	return w.Bytes()
}
