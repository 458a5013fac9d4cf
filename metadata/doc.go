// Package metadata loads WebAssembly core modules into a mutable model of
// their external linkage.
//
// Every function in the function index space is a Method. Imported
// functions carry an ExternalLinkage naming the module they are bound to
// (a ModuleRef from the module's References table) and their entry point.
// Methods are grouped into Types: the optional "linkage.types" custom
// section declares a tree of named types, and every function it does not
// claim belongs to the implicit "<Module>" type.
//
// # Loading
//
//	m, err := metadata.LoadFile("app.wasm")
//	if err != nil {
//	    return err
//	}
//	for meth := range m.Methods() {
//	    if meth.IsExternal() {
//	        fmt.Println(meth.Name, meth.Linkage.Module.Name())
//	    }
//	}
//
// # Serialization
//
// Only import module names can change. Serialize returns the original
// bytes when nothing was retargeted; otherwise the import section is
// re-encoded and every other section is copied as read:
//
//	ref, _ := m.References().Intern("libfoo")
//	meth.Linkage.Module = ref
//	out := m.Serialize()
//
// References that no import binds to after retargeting are not written.
//
// # Type tree encoding
//
//	tree  := count:u32 entry*
//	entry := name:name funcs:vec(u32) nested:u32 entry{nested}
//
// EncodeTypeTree produces this payload.
package metadata
