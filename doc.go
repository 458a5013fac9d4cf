// Package wasmrelink rewrites the external linkage of compiled WebAssembly
// modules and activates the result on behalf of native hosts.
//
// A module built against a placeholder import module (the sentinel,
// "__Internal" by default) is retargeted to the real library before it is
// loaded. Only import module names change; every other byte of the module
// is preserved.
//
// # Architecture Overview
//
//	wasmrelink/
//	├── metadata/        Module model: types, methods, external linkage, references
//	├── relink/          Sentinel to target remapping
//	├── callconv/        Calling-convention modifier patcher for textual disassembly
//	├── bootstrap/       Loader: parse init blob, remap, activate with wazero, call entry points
//	├── errors/          Structured error types with kinds and status codes
//	├── internal/config  relink.toml and RELINK_* settings
//	├── cmd/relink/      Command line tool
//	└── cmd/relinkboot/  C shared library exporting the bootstrap loader
//
// # Quick Start
//
// Retarget a module in place:
//
//	m, err := metadata.LoadFile("app.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := relink.Remap(m, []relink.Mapping{{Sentinel: "__Internal", Target: "libnative"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Total(), "methods retargeted")
//	os.WriteFile("app.wasm", m.Serialize(), 0o644)
//
// Or boot it directly:
//
//	loader := bootstrap.NewLoader(bootstrap.Config{})
//	loader.Register("libnative", lib)
//	status := loader.Initialize(ctx, []byte("app.wasm;libnative"))
//
// # Type Tree
//
// Methods are grouped into types by the "linkage.types" custom section, a
// pre-order list of named types each claiming function indices. Functions
// no type claims belong to the implicit "<Module>" type. Modules without
// the section load with every function under "<Module>".
//
// # Thread Safety
//
// metadata.Module is not safe for concurrent mutation. bootstrap.Loader
// serializes its operations and may be shared.
package wasmrelink
