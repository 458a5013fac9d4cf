package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Library supplies the host module a rewritten module binds to. The loader
// instantiates one Library per distinct import module name, passing that
// name so a Library can serve several aliases.
type Library interface {
	Instantiate(ctx context.Context, r wazero.Runtime, name string) (api.Module, error)
}

// LibraryFunc adapts a function to Library.
type LibraryFunc func(ctx context.Context, r wazero.Runtime, name string) (api.Module, error)

// Instantiate calls f.
func (f LibraryFunc) Instantiate(ctx context.Context, r wazero.Runtime, name string) (api.Module, error) {
	return f(ctx, r, name)
}

// HostFunc is one exported host function.
type HostFunc struct {
	Fn      api.GoModuleFunc
	Params  []api.ValueType
	Results []api.ValueType
}

// HostLibrary is a Library built from Go functions keyed by export name.
type HostLibrary map[string]HostFunc

// Instantiate builds and instantiates the host module under name.
func (h HostLibrary) Instantiate(ctx context.Context, r wazero.Runtime, name string) (api.Module, error) {
	builder := r.NewHostModuleBuilder(name)

	exports := make([]string, 0, len(h))
	for export := range h {
		exports = append(exports, export)
	}
	slices.Sort(exports)

	for _, export := range exports {
		fn := h[export]
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.Fn, fn.Params, fn.Results).
			Export(export)
	}
	return builder.Instantiate(ctx)
}

// WASIModuleName is the import module name served by the built-in WASI
// preview1 library.
const WASIModuleName = wasi_snapshot_preview1.ModuleName

// WASI returns a Library exporting WASI preview1 under the requested name.
func WASI() Library {
	return LibraryFunc(func(ctx context.Context, r wazero.Runtime, name string) (api.Module, error) {
		builder := r.NewHostModuleBuilder(name)
		wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
		return builder.Instantiate(ctx)
	})
}

// LibraryFileExt is appended to an import module name when looking for a
// library file on disk.
const LibraryFileExt = ".wasm"

// FileLibrary returns a Library that compiles the WebAssembly module at
// path and instantiates it under the requested name.
func FileLibrary(path string) Library {
	return LibraryFunc(func(ctx context.Context, r wazero.Runtime, name string) (api.Module, error) {
		bin, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read library %s: %w", path, err)
		}
		compiled, err := r.CompileModule(ctx, bin)
		if err != nil {
			return nil, fmt.Errorf("compile library %s: %w", path, err)
		}
		return r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
			WithName(name).
			WithStartFunctions("_initialize"))
	})
}

func findFileLibrary(dirs []string, name string) (Library, bool) {
	if name == "" || filepath.Base(name) != name {
		return nil, false
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, name+LibraryFileExt)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return FileLibrary(p), true
		}
	}
	return nil, false
}
