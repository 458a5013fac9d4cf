package metadata

import (
	"errors"
	"fmt"
	"os"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
	"github.com/wippyai/wasm-relink/internal/binary"
	"go.uber.org/zap"
)

// Parsing errors wrapped into MalformedMetadata by Load.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// LoadFile reads and loads the module at path. A path that cannot be read
// fails with ModuleNotFound.
func LoadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, relinkerrors.ModuleNotFound(path, err)
	}
	return Load(data)
}

// Load parses a WebAssembly binary into a Module. The module keeps a
// reference to data; callers must not modify it afterwards.
func Load(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, relinkerrors.MalformedMetadata("header", r.WrapError("header", err))
	}
	if magic != Magic {
		return nil, relinkerrors.MalformedMetadata("header", ErrInvalidMagic)
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, relinkerrors.MalformedMetadata("header", r.WrapError("header", err))
	}
	if version != Version {
		return nil, relinkerrors.MalformedMetadata("header", ErrInvalidVersion)
	}

	m := &Module{
		raw:             data,
		refs:            newReferences(),
		signaturesKnown: true,
	}

	var lastOrder int
	for r.Len() > 0 {
		start := r.Position()
		id, _ := r.ReadByte()

		// custom sections can appear anywhere
		if id != SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, relinkerrors.MalformedMetadata("section header",
					r.WrapError("section header", fmt.Errorf("unknown section ID: 0x%02x", id)))
			}
			if order <= lastOrder {
				return nil, relinkerrors.MalformedMetadata("section header",
					r.WrapError("section header", fmt.Errorf("section %d appears out of order", id)))
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, relinkerrors.MalformedMetadata("section size", r.WrapError("section size", err))
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, relinkerrors.MalformedMetadata("section data", r.WrapError("section data", err))
		}
		m.sections = append(m.sections, section{
			id:      id,
			raw:     r.Slice(start, r.Position()),
			payload: payload,
		})
	}

	var typeTree []byte
	for _, s := range m.sections {
		sr := binary.NewReader(s.payload)
		var perr error
		parsed := true
		switch s.id {
		case SectionType:
			perr = parseTypeSection(sr, m)
		case SectionImport:
			perr = parseImportSection(sr, m)
		case SectionFunction:
			perr = parseFunctionSection(sr, m)
		case SectionExport:
			perr = parseExportSection(sr, m)
		case SectionCustom:
			name, err := sr.ReadName()
			if err != nil {
				perr = err
				break
			}
			if name == TypeTreeSection {
				typeTree = sr.ReadRemaining()
				m.hasTypeTree = true
			}
			parsed = false
		default:
			// kept raw, never decoded
			parsed = false
		}
		if perr == nil && parsed && sr.Len() != 0 {
			perr = sr.WrapError(sectionName(s.id), fmt.Errorf("%d trailing bytes", sr.Len()))
		}
		if perr != nil {
			return nil, relinkerrors.MalformedMetadata(sectionName(s.id), perr)
		}
	}

	if err := m.buildMethods(); err != nil {
		return nil, err
	}
	m.applyNames()
	if err := m.buildTypes(typeTree); err != nil {
		return nil, err
	}
	return m, nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	sigs := make([]Signature, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return r.WrapError("type section", err)
		}
		switch form {
		case formFunc:
			params, err := readValTypes(r)
			if err != nil {
				return err
			}
			results, err := readValTypes(r)
			if err != nil {
				return err
			}
			sigs = append(sigs, Signature{Params: params, Results: results})
		case formRec, formSub, formSubFinal, formStruct, formArray:
			// GC type forms shift the flat type index space; signatures are
			// left unknown and the section stays raw.
			m.signaturesKnown = false
			m.signatures = nil
			r.ReadRemaining()
			return nil
		default:
			return r.WrapError("type section", fmt.Errorf("unsupported type form 0x%02x", form))
		}
	}
	m.signatures = sigs
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, 0, n)
	for i := uint32(0); i < n; i++ {
		vt, err := readValType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, r.WrapError("value type", err)
	}
	if b == refNullPrefix || b == refPrefix {
		// heap type, s33
		if _, err := r.ReadS64(); err != nil {
			return 0, err
		}
	}
	return ValType(b), nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.imports = make([]*importEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("import section", err)
		}
		descStart := r.Position()
		if err := skipImportDesc(r, kind); err != nil {
			return err
		}
		e := &importEntry{
			module: module,
			name:   name,
			kind:   kind,
			desc:   r.Slice(descStart, r.Position()),
		}
		ref, _ := m.refs.Intern(module)
		if kind == KindFunc {
			e.linkage = &ExternalLinkage{Module: ref, EntryPoint: name}
		} else {
			e.ref = ref
		}
		m.imports = append(m.imports, e)
	}
	return nil
}

func skipImportDesc(r *binary.Reader, kind byte) error {
	switch kind {
	case KindFunc:
		_, err := r.ReadU32()
		return err
	case KindTable:
		if _, err := readValType(r); err != nil {
			return err
		}
		return skipLimits(r)
	case KindMemory:
		return skipLimits(r)
	case KindGlobal:
		if _, err := readValType(r); err != nil {
			return err
		}
		_, err := r.ReadByte()
		return err
	case KindTag:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		_, err := r.ReadU32()
		return err
	default:
		return r.WrapError("import section", fmt.Errorf("unknown import kind 0x%02x", kind))
	}
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return r.WrapError("limits", err)
	}
	// memory64 limits are u64
	if _, err := r.ReadU64(); err != nil {
		return r.WrapError("limits", err)
	}
	if flags&0x01 != 0 {
		if _, err := r.ReadU64(); err != nil {
			return r.WrapError("limits", err)
		}
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.funcTypes = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.funcTypes = append(m.funcTypes, idx)
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return r.WrapError("export section", err)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.exports = append(m.exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

// buildMethods creates one Method per function index: imported functions
// first, then defined ones.
func (m *Module) buildMethods() error {
	for _, e := range m.imports {
		if e.kind != KindFunc {
			continue
		}
		typeIdx, _ := binary.NewReader(e.desc).ReadU32()
		sig, err := m.signature(typeIdx)
		if err != nil {
			return relinkerrors.MalformedMetadata("import section", err)
		}
		m.methods = append(m.methods, &Method{
			Index:     uint32(len(m.methods)),
			Name:      e.name,
			Signature: sig,
			Linkage:   e.linkage,
		})
	}
	for _, typeIdx := range m.funcTypes {
		sig, err := m.signature(typeIdx)
		if err != nil {
			return relinkerrors.MalformedMetadata("function section", err)
		}
		m.methods = append(m.methods, &Method{
			Index:     uint32(len(m.methods)),
			Signature: sig,
		})
	}
	for _, exp := range m.exports {
		if exp.Kind != KindFunc {
			continue
		}
		meth := m.Method(exp.Idx)
		if meth == nil {
			return relinkerrors.MalformedMetadata("export section",
				fmt.Errorf("export %q references function %d out of range", exp.Name, exp.Idx))
		}
		meth.Exports = append(meth.Exports, exp.Name)
	}
	return nil
}

func (m *Module) signature(typeIdx uint32) (*Signature, error) {
	if !m.signaturesKnown {
		return nil, nil
	}
	if int(typeIdx) >= len(m.signatures) {
		return nil, fmt.Errorf("type index %d out of range", typeIdx)
	}
	return &m.signatures[typeIdx], nil
}

// applyNames resolves method names: name section first, then the first
// export, then the import field name, else "func[N]".
func (m *Module) applyNames() {
	names := m.functionNames()
	for _, meth := range m.methods {
		switch {
		case names[meth.Index] != "":
			meth.Name = names[meth.Index]
		case len(meth.Exports) > 0:
			meth.Name = meth.Exports[0]
		case meth.Name != "":
		default:
			meth.Name = fmt.Sprintf("func[%d]", meth.Index)
		}
	}
}

// functionNames decodes the function-names subsection of the name section.
// A malformed name section is ignored; it carries no linkage information.
func (m *Module) functionNames() map[uint32]string {
	names := make(map[uint32]string)
	for _, s := range m.sections {
		if s.id != SectionCustom {
			continue
		}
		r := binary.NewReader(s.payload)
		name, err := r.ReadName()
		if err != nil || name != NameSection {
			continue
		}
		if err := readFunctionNames(r, names); err != nil {
			Logger().Debug("ignoring malformed name section", zap.Error(err))
			clear(names)
		}
	}
	return names
}

func readFunctionNames(r *binary.Reader, names map[uint32]string) error {
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		if id != nameSubsectionFunctions {
			continue
		}
		sr := binary.NewReader(payload)
		count, err := sr.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			idx, err := sr.ReadU32()
			if err != nil {
				return err
			}
			name, err := sr.ReadName()
			if err != nil {
				return err
			}
			names[idx] = name
		}
	}
	return nil
}

// buildTypes decodes the type tree and places every unclaimed method in the
// implicit ModuleTypeName type. The tree is stored pre-order:
//
//	tree  := count:u32 entry*
//	entry := name:name funcs:vec(u32) nested:u32
//
// where nested entries follow their parent directly.
func (m *Module) buildTypes(tree []byte) error {
	root := &Type{Name: ModuleTypeName}
	m.types = []*Type{root}
	claimed := make([]bool, len(m.methods))

	if m.hasTypeTree {
		if err := m.decodeTypeTree(tree, claimed); err != nil {
			return relinkerrors.MalformedMetadata(TypeTreeSection, err)
		}
	}

	for _, meth := range m.methods {
		if !claimed[meth.Index] {
			meth.DeclaringType = root
			root.Methods = append(root.Methods, meth)
		}
	}
	return nil
}

func (m *Module) decodeTypeTree(tree []byte, claimed []bool) error {
	type frame struct {
		parent    *Type
		remaining uint32
	}

	r := binary.NewReader(tree)
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	stack := []*frame{{remaining: count}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.remaining == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		top.remaining--

		name, err := r.ReadName()
		if err != nil {
			return err
		}
		t := &Type{Name: name, DeclaringType: top.parent}
		if top.parent == nil {
			m.types = append(m.types, t)
		} else {
			top.parent.Nested = append(top.parent.Nested, t)
		}

		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			idx, err := r.ReadU32()
			if err != nil {
				return err
			}
			if int(idx) >= len(m.methods) {
				return fmt.Errorf("type %q claims function %d out of range", t.FullName(), idx)
			}
			if claimed[idx] {
				return fmt.Errorf("function %d claimed by more than one type", idx)
			}
			claimed[idx] = true
			meth := m.methods[idx]
			meth.DeclaringType = t
			t.Methods = append(t.Methods, meth)
		}

		nested, err := r.ReadU32()
		if err != nil {
			return err
		}
		stack = append(stack, &frame{parent: t, remaining: nested})
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}
