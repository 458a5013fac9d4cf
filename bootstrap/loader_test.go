package bootstrap_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-relink/bootstrap"
	relinkerrors "github.com/wippyai/wasm-relink/errors"
	"github.com/wippyai/wasm-relink/internal/logging"
	"github.com/wippyai/wasm-relink/internal/wasmtest"
	"github.com/wippyai/wasm-relink/metadata"
)

var i32 = wasmtest.I32

type fixture struct {
	sentinel  string
	initBody  []byte
	withAlloc bool
	withWASI  bool
}

// writeModule writes a module whose Runtime.Engine type declares
// InternalInitialize (forwarding (ptr, size) to the imported native_add)
// and InternalShutdown (returning 7).
func writeModule(t *testing.T, f fixture) string {
	t.Helper()
	if f.sentinel == "" {
		f.sentinel = "__Internal"
	}
	if f.initBody == nil {
		f.initBody = wasmtest.BodyForward2
	}

	b := wasmtest.New()
	entry := b.Type([]byte{i32, i32}, []byte{i32})
	allocType := b.Type([]byte{i32}, []byte{i32})
	native := b.ImportFunc(f.sentinel, "native_add", entry)
	if f.withWASI {
		b.ImportFunc(bootstrap.WASIModuleName, "args_sizes_get", entry)
	}
	b.Memory(1)
	initialize := b.Func(entry, f.initBody)
	shutdown := b.Func(entry, wasmtest.ConstI32(7))
	b.ExportMemory("memory")
	b.ExportFunc("InternalInitialize", initialize)
	b.ExportFunc("InternalShutdown", shutdown)
	if f.withAlloc {
		alloc := b.Func(allocType, wasmtest.BodyConst16)
		b.ExportFunc("alloc", alloc)
	}
	b.Custom(metadata.TypeTreeSection, metadata.EncodeTypeTree([]metadata.TypeDecl{
		{Name: "Runtime.Engine", Funcs: []uint32{native, initialize, shutdown}},
	}))

	path := filepath.Join(t.TempDir(), "app.wasm")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recorder struct {
	blob      []byte
	ptr, size uint32
	calls     int
}

func nativeLibrary(rec *recorder) bootstrap.HostLibrary {
	return bootstrap.HostLibrary{
		"native_add": {
			Fn: func(_ context.Context, mod api.Module, stack []uint64) {
				rec.calls++
				rec.ptr, rec.size = uint32(stack[0]), uint32(stack[1])
				if mem := mod.Memory(); mem != nil {
					if data, ok := mem.Read(rec.ptr, rec.size); ok {
						rec.blob = bytes.Clone(data)
					}
				}
				stack[0] = uint64(rec.ptr + rec.size)
			},
			Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		},
	}
}

func newLoader(t *testing.T, cfg bootstrap.Config) (*bootstrap.Loader, *recorder, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	if cfg.Logger == nil {
		l, err := logging.New(&logs, "error", false)
		if err != nil {
			t.Fatal(err)
		}
		cfg.Logger = l
	}
	rec := &recorder{}
	loader := bootstrap.NewLoader(cfg)
	loader.Register("libnative", nativeLibrary(rec))
	t.Cleanup(func() { _ = loader.Close(context.Background()) })
	return loader, rec, &logs
}

func TestBootForwardsBlob(t *testing.T) {
	ctx := context.Background()
	path := writeModule(t, fixture{withAlloc: true})
	loader, rec, _ := newLoader(t, bootstrap.Config{})

	blob := []byte(path + ";libnative")
	status, err := loader.Boot(ctx, blob)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("expected native library to be called once, got %d", rec.calls)
	}
	if rec.ptr != 16 {
		t.Errorf("expected blob at allocator address 16, got %d", rec.ptr)
	}
	if !bytes.Equal(rec.blob, blob) {
		t.Errorf("guest saw blob %q, want %q", rec.blob, blob)
	}
	if want := int32(16 + len(blob)); status != want {
		t.Errorf("status = %d, want %d", status, want)
	}
	if !loader.Active() {
		t.Error("loader should hold the activation")
	}
}

func TestBootWithoutAllocator(t *testing.T) {
	path := writeModule(t, fixture{})
	loader, rec, _ := newLoader(t, bootstrap.Config{})

	blob := []byte(path + ";libnative")
	status, err := loader.Boot(context.Background(), blob)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if rec.ptr != 0 || rec.size != uint32(len(blob)) {
		t.Errorf("expected (0, %d), got (%d, %d)", len(blob), rec.ptr, rec.size)
	}
	if status != int32(len(blob)) {
		t.Errorf("status = %d", status)
	}
}

func TestBootCustomSentinel(t *testing.T) {
	path := writeModule(t, fixture{sentinel: "__native"})
	loader, rec, _ := newLoader(t, bootstrap.Config{Sentinel: "__native"})

	if _, err := loader.Boot(context.Background(), []byte(path+";libnative")); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if rec.calls != 1 {
		t.Error("native library not called")
	}
}

func TestBootProvidesWASI(t *testing.T) {
	path := writeModule(t, fixture{withWASI: true})
	loader, _, _ := newLoader(t, bootstrap.Config{})

	if _, err := loader.Boot(context.Background(), []byte(path+";libnative")); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

func TestBootErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wasm")
	if err := os.WriteFile(garbage, []byte("not a module"), 0o644); err != nil {
		t.Fatal(err)
	}
	valid := writeModule(t, fixture{})
	trapping := writeModule(t, fixture{initBody: []byte{0x00, 0x0b}})

	tests := []struct {
		name string
		blob string
		cfg  bootstrap.Config
		want error
	}{
		{name: "malformed blob", blob: "onlyonefield", want: relinkerrors.ErrMalformedInitBlob},
		{name: "extra field", blob: valid + ";libnative;extra", want: relinkerrors.ErrMalformedInitBlob},
		{name: "missing module", blob: filepath.Join(dir, "missing.wasm") + ";libnative", want: relinkerrors.ErrModuleNotFound},
		{name: "not a module", blob: garbage + ";libnative", want: relinkerrors.ErrMalformedMetadata},
		{name: "unregistered target", blob: valid + ";libmissing", want: relinkerrors.ErrActivationFailed},
		{name: "missing type", blob: valid + ";libnative", cfg: bootstrap.Config{EntryType: "Nope"}, want: relinkerrors.ErrEntryPointNotFound},
		{name: "missing method", blob: valid + ";libnative", cfg: bootstrap.Config{InitializeMethod: "Nope"}, want: relinkerrors.ErrEntryPointNotFound},
		{name: "imported method", blob: valid + ";libnative", cfg: bootstrap.Config{InitializeMethod: "native_add"}, want: relinkerrors.ErrEntryPointNotFound},
		{name: "trap", blob: trapping + ";libnative", want: relinkerrors.ErrInvocation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loader, _, _ := newLoader(t, tc.cfg)
			_, err := loader.Boot(context.Background(), []byte(tc.blob))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if loader.Active() {
				t.Error("failed boot must not leave an activation")
			}
		})
	}
}

func TestBootRejectsWrongSignature(t *testing.T) {
	path := writeModule(t, fixture{withAlloc: true})
	loader, _, _ := newLoader(t, bootstrap.Config{EntryType: metadata.ModuleTypeName, InitializeMethod: "alloc"})

	_, err := loader.Boot(context.Background(), []byte(path+";libnative"))
	if !errors.Is(err, relinkerrors.ErrEntryPointNotFound) {
		t.Fatalf("expected entry point not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "(i32) -> i32") {
		t.Errorf("error should describe the signature, got %v", err)
	}
}

func TestInitializeReportsFailure(t *testing.T) {
	loader, _, logs := newLoader(t, bootstrap.Config{})

	if status := loader.Initialize(context.Background(), []byte("a;b;c")); status != -1 {
		t.Errorf("status = %d, want -1", status)
	}
	out := logs.String()
	if !strings.Contains(out, "malformed_init_blob") {
		t.Errorf("log should name the error kind, got %q", out)
	}
	if !strings.Contains(out, "goroutine") {
		t.Errorf("log should carry a stack trace, got %q", out)
	}
}

func TestInitializeRecoversPanic(t *testing.T) {
	path := writeModule(t, fixture{})
	loader, _, logs := newLoader(t, bootstrap.Config{})
	loader.Register("libnative", bootstrap.LibraryFunc(func(context.Context, wazero.Runtime, string) (api.Module, error) {
		panic("library exploded")
	}))

	if status := loader.Initialize(context.Background(), []byte(path+";libnative")); status != -1 {
		t.Errorf("status = %d, want -1", status)
	}
	if !strings.Contains(logs.String(), "library exploded") {
		t.Errorf("panic not logged: %q", logs.String())
	}

	// the loader stays usable after a panic
	if status := loader.Initialize(context.Background(), []byte("bad")); status != -1 {
		t.Errorf("status = %d, want -1", status)
	}
}

func TestInitializeNative(t *testing.T) {
	path := writeModule(t, fixture{withAlloc: true})
	loader, rec, _ := newLoader(t, bootstrap.Config{})

	blob := []byte(path + ";libnative")
	status := loader.InitializeNative(unsafe.Pointer(&blob[0]), len(blob))
	if want := int32(16 + len(blob)); status != want {
		t.Fatalf("status = %d, want %d", status, want)
	}
	if !bytes.Equal(rec.blob, blob) {
		t.Errorf("guest saw blob %q", rec.blob)
	}
	if status := loader.InitializeNative(nil, 4); status != -1 {
		t.Errorf("nil buffer: status = %d, want -1", status)
	}
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	path := writeModule(t, fixture{})
	loader, _, logs := newLoader(t, bootstrap.Config{})

	if status := loader.Shutdown(ctx, nil); status != -2 {
		t.Errorf("shutdown before initialize: status = %d, want -2", status)
	}
	if logs.Len() != 0 {
		t.Errorf("not-initialized shutdown should not log, got %q", logs.String())
	}

	if status := loader.Initialize(ctx, []byte(path+";libnative")); status < 0 {
		t.Fatalf("initialize failed: %d\n%s", status, logs.String())
	}
	if status := loader.Shutdown(ctx, []byte("full_shutdown")); status != 7 {
		t.Errorf("shutdown status = %d, want 7", status)
	}
	if loader.Active() {
		t.Error("shutdown should release the activation")
	}
	if status := loader.Shutdown(ctx, nil); status != -2 {
		t.Errorf("second shutdown: status = %d, want -2", status)
	}

	_, err := loader.Stop(ctx, nil)
	if !errors.Is(err, relinkerrors.ErrNotInitialized) {
		t.Errorf("expected not initialized, got %v", err)
	}
}

func TestReinitialize(t *testing.T) {
	ctx := context.Background()
	path := writeModule(t, fixture{})
	loader, rec, _ := newLoader(t, bootstrap.Config{})

	blob := []byte(path + ";libnative")
	for i := 0; i < 3; i++ {
		if status := loader.Initialize(ctx, blob); status < 0 {
			t.Fatalf("initialize %d failed: %d", i, status)
		}
	}
	if rec.calls != 3 {
		t.Errorf("expected 3 entry point calls, got %d", rec.calls)
	}
	if err := loader.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if loader.Active() {
		t.Error("Close should release the activation")
	}
}

func TestFailedReinitializeKeepsActivation(t *testing.T) {
	ctx := context.Background()
	path := writeModule(t, fixture{})
	loader, rec, _ := newLoader(t, bootstrap.Config{})

	if status := loader.Initialize(ctx, []byte(path+";libnative")); status < 0 {
		t.Fatalf("initialize failed: %d", status)
	}

	for _, blob := range []string{
		"no separator",
		filepath.Join(t.TempDir(), "missing.wasm") + ";libnative",
		path + ";libunknown",
	} {
		if status := loader.Initialize(ctx, []byte(blob)); status != -1 {
			t.Errorf("initialize %q: status = %d, want -1", blob, status)
		}
		if !loader.Active() {
			t.Fatalf("initialize %q dropped the previous activation", blob)
		}
	}
	if rec.calls != 1 {
		t.Errorf("expected 1 entry point call, got %d", rec.calls)
	}
	if status := loader.Shutdown(ctx, nil); status != 7 {
		t.Errorf("shutdown status = %d, want 7", status)
	}
}

func writeLibrary(t *testing.T, dir, name string, result byte) {
	t.Helper()
	b := wasmtest.New()
	sig := b.Type([]byte{i32, i32}, []byte{i32})
	fn := b.Func(sig, wasmtest.ConstI32(result))
	b.ExportFunc("native_add", fn)
	if err := os.WriteFile(filepath.Join(dir, name+bootstrap.LibraryFileExt), b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBootLoadsLibraryFile(t *testing.T) {
	ctx := context.Background()

	t.Run("module directory", func(t *testing.T) {
		path := writeModule(t, fixture{})
		writeLibrary(t, filepath.Dir(path), "libfile", 42)
		loader, _, _ := newLoader(t, bootstrap.Config{})

		status, err := loader.Boot(ctx, []byte(path+";libfile"))
		if err != nil {
			t.Fatalf("Boot: %v", err)
		}
		if status != 42 {
			t.Errorf("status = %d, want 42", status)
		}
	})

	t.Run("library path", func(t *testing.T) {
		path := writeModule(t, fixture{})
		libDir := t.TempDir()
		writeLibrary(t, libDir, "libfile", 9)
		loader, _, _ := newLoader(t, bootstrap.Config{LibraryPath: []string{libDir}})

		status, err := loader.Boot(ctx, []byte(path+";libfile"))
		if err != nil {
			t.Fatalf("Boot: %v", err)
		}
		if status != 9 {
			t.Errorf("status = %d, want 9", status)
		}
	})

	t.Run("registered library wins", func(t *testing.T) {
		path := writeModule(t, fixture{})
		writeLibrary(t, filepath.Dir(path), "libnative", 42)
		loader, rec, _ := newLoader(t, bootstrap.Config{})

		if _, err := loader.Boot(ctx, []byte(path+";libnative")); err != nil {
			t.Fatalf("Boot: %v", err)
		}
		if rec.calls != 1 {
			t.Errorf("expected the registered library to be called, got %d calls", rec.calls)
		}
	})

	t.Run("path separators are not followed", func(t *testing.T) {
		path := writeModule(t, fixture{})
		loader, _, _ := newLoader(t, bootstrap.Config{})

		_, err := loader.Boot(ctx, []byte(path+";../libfile"))
		if !errors.Is(err, relinkerrors.ErrActivationFailed) {
			t.Fatalf("expected activation failure, got %v", err)
		}
	})
}
