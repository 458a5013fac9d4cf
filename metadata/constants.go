package metadata

import "fmt"

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

// Type section forms.
const (
	formFunc      byte = 0x60
	formStruct    byte = 0x5F
	formArray     byte = 0x5E
	formSub       byte = 0x50
	formSubFinal  byte = 0x4F
	formRec       byte = 0x4E
	refNullPrefix byte = 0x63
	refPrefix     byte = 0x64
)

// Custom section names understood by the model.
const (
	// NameSection is the standard name section carrying function names.
	NameSection = "name"

	// TypeTreeSection groups functions into (possibly nested) named types.
	TypeTreeSection = "linkage.types"

	// ModuleTypeName is the implicit top-level type owning every function not
	// claimed by the type tree.
	ModuleTypeName = "<Module>"

	// NestedSeparator joins nested type names in FullName.
	NestedSeparator = "/"

	nameSubsectionFunctions byte = 1
)

// sectionOrder returns the canonical ordering for a section ID, or 0 for an
// unknown ID. The order differs from the numeric IDs for tag and data count.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom section"
	case SectionType:
		return "type section"
	case SectionImport:
		return "import section"
	case SectionFunction:
		return "function section"
	case SectionExport:
		return "export section"
	default:
		return fmt.Sprintf("section %d", id)
	}
}
