// Package bootstrap activates a relinked module on behalf of a native host.
//
// The host passes a UTF-8 blob "<module path>;<target library>". The loader
// reads the module, retargets every function imported from the sentinel
// module ("__Internal" by default) to the target library, compiles and
// instantiates the rewritten bytes with wazero and calls the initialize
// entry point found on the well-known entry type:
//
//	loader := bootstrap.NewLoader(bootstrap.Config{})
//	loader.Register("libnative", bootstrap.HostLibrary{
//	    "add": {Fn: add, Params: i32i32, Results: i32},
//	})
//	status := loader.Initialize(ctx, []byte("/opt/app.wasm;libnative"))
//
// Entry points are exported functions of type (ptr, size) -> status with
// i32 or i64 operands. When the module exports a memory and an allocator
// (cabi_realloc or alloc) the blob is copied into guest memory and its
// address passed as ptr; otherwise ptr is 0.
//
// # Status codes
//
// Initialize and Shutdown never panic or return errors. Every failure is
// logged with its kind and a stack trace and mapped to a negative status:
//
//	-1  any failure (malformed blob, missing module, activation, entry point, trap)
//	-2  Shutdown without a successful Initialize
//
// Boot and Stop are the error-returning equivalents for Go callers.
//
// # Libraries
//
// Every import module of the rewritten module must resolve to a Library.
// Registered libraries come first; wasi_snapshot_preview1 is provided
// automatically; any other name is looked up as "<name>.wasm" in the
// module's directory and then in Config.LibraryPath. Each activation uses
// its own wazero runtime, closed on the next Initialize, on Shutdown or on
// Close.
package bootstrap
