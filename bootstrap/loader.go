package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
	"github.com/wippyai/wasm-relink/internal/logging"
	"github.com/wippyai/wasm-relink/metadata"
	"github.com/wippyai/wasm-relink/relink"
)

// Defaults for Config fields left empty.
const (
	DefaultSentinel         = "__Internal"
	DefaultEntryType        = "Runtime.Engine"
	DefaultInitializeMethod = "InternalInitialize"
	DefaultShutdownMethod   = "InternalShutdown"
)

// Guest allocators tried, in order, to copy the init blob into memory.
const (
	reallocExport = "cabi_realloc"
	allocExport   = "alloc"
)

// Config holds loader configuration.
type Config struct {
	// Logger receives diagnostics. Defaults to an error-level console
	// logger on Stderr.
	Logger *zap.Logger
	// Stdout and Stderr are handed to the activated module. Default to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
	// RuntimeConfig configures the wazero runtime of each activation.
	RuntimeConfig wazero.RuntimeConfig

	// Sentinel is the import module name retargeted to the blob's target.
	Sentinel string
	// EntryType is the full name of the type declaring the entry points.
	EntryType string
	// InitializeMethod and ShutdownMethod are called with (ptr, size).
	InitializeMethod string
	ShutdownMethod   string
	// LibraryPath lists directories searched for "<name>.wasm" when no
	// Library is registered under an import module name. The directory of
	// the booted module is searched first.
	LibraryPath []string
}

func (c Config) withDefaults() Config {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = logging.Must(c.Stderr, "error", false)
	}
	if c.RuntimeConfig == nil {
		c.RuntimeConfig = wazero.NewRuntimeConfig()
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	if c.EntryType == "" {
		c.EntryType = DefaultEntryType
	}
	if c.InitializeMethod == "" {
		c.InitializeMethod = DefaultInitializeMethod
	}
	if c.ShutdownMethod == "" {
		c.ShutdownMethod = DefaultShutdownMethod
	}
	return c
}

// Loader rewrites and activates modules on behalf of a native host. At most
// one activation is live at a time; all methods are safe for concurrent use.
type Loader struct {
	libs   map[string]Library
	active *activation
	cfg    Config
	mu     sync.Mutex
}

// NewLoader creates a loader.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		cfg:  cfg.withDefaults(),
		libs: make(map[string]Library),
	}
}

// Register makes lib available under an import module name. Registering
// WASIModuleName replaces the built-in WASI library.
func (l *Loader) Register(name string, lib Library) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.libs[name] = lib
}

// Active reports whether a module is currently activated.
func (l *Loader) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active != nil
}

// Boot parses blob, loads the module it names, retargets the sentinel to
// the blob's target library, activates the result and calls the initialize
// entry point with the blob. It returns the entry point's status. A
// previous activation is replaced only once the new one has initialized;
// on any error it stays active.
func (l *Loader) Boot(ctx context.Context, blob []byte) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ib, err := ParseBlob(blob)
	if err != nil {
		return 0, err
	}

	l.cfg.Logger.Info("remapping module",
		zap.String("module", ib.ModulePath),
		zap.String("sentinel", l.cfg.Sentinel),
		zap.String("target", ib.Target))

	m, err := metadata.LoadFile(ib.ModulePath)
	if err != nil {
		return 0, err
	}
	report, err := relink.Remap(m, []relink.Mapping{{Sentinel: l.cfg.Sentinel, Target: ib.Target}})
	if err != nil {
		return 0, err
	}
	l.cfg.Logger.Debug("remapped methods", zap.Int("count", report.Total()))

	dirs := append([]string{filepath.Dir(ib.ModulePath)}, l.cfg.LibraryPath...)
	act, err := l.activate(ctx, m, m.Serialize(), dirs)
	if err != nil {
		return 0, err
	}

	status, err := act.call(ctx, l.cfg.EntryType, l.cfg.InitializeMethod, blob)
	if err != nil {
		_ = act.close(ctx)
		return 0, err
	}
	if err := l.closeActive(ctx); err != nil {
		l.cfg.Logger.Warn("closing previous activation failed", zap.Error(err))
	}
	l.active = act
	l.cfg.Logger.Info("initialize returned", zap.Int32("status", status))
	return status, nil
}

// Initialize is Boot for native callers: it never panics and never returns
// an error. Failures are logged with a stack trace and reported as -1.
func (l *Loader) Initialize(ctx context.Context, blob []byte) (status int32) {
	defer func() {
		if r := recover(); r != nil {
			l.report("initialize", fmt.Errorf("panic: %v", r))
			status = relinkerrors.StatusFailed
		}
	}()

	status, err := l.Boot(ctx, blob)
	if err != nil {
		l.report("initialize", err)
		return relinkerrors.Status(err)
	}
	return status
}

// Stop calls the shutdown entry point of the active module with blob and
// releases the activation. It fails with NotInitialized when nothing is
// active.
func (l *Loader) Stop(ctx context.Context, blob []byte) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return 0, relinkerrors.New(relinkerrors.PhaseInvoke, relinkerrors.KindNotInitialized).
			Detail("no module has been initialized").
			Build()
	}

	status, err := l.active.call(ctx, l.cfg.EntryType, l.cfg.ShutdownMethod, blob)
	if cerr := l.closeActive(ctx); cerr != nil {
		l.cfg.Logger.Warn("closing activation failed", zap.Error(cerr))
	}
	if err != nil {
		return 0, err
	}
	return status, nil
}

// Shutdown is Stop for native callers. It returns -2 when nothing was
// initialized and -1 on any other failure.
func (l *Loader) Shutdown(ctx context.Context, blob []byte) (status int32) {
	defer func() {
		if r := recover(); r != nil {
			l.report("shutdown", fmt.Errorf("panic: %v", r))
			status = relinkerrors.StatusFailed
		}
	}()

	status, err := l.Stop(ctx, blob)
	if err != nil {
		if relinkerrors.KindOf(err) != relinkerrors.KindNotInitialized {
			l.report("shutdown", err)
		}
		return relinkerrors.Status(err)
	}
	return status
}

// Close releases the active module without calling its shutdown method.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeActive(ctx)
}

func (l *Loader) closeActive(ctx context.Context) error {
	if l.active == nil {
		return nil
	}
	err := l.active.close(ctx)
	l.active = nil
	return err
}

func (l *Loader) report(op string, err error) {
	l.cfg.Logger.Error(op+" failed",
		zap.String("kind", string(relinkerrors.KindOf(err))),
		zap.Error(err),
		zap.ByteString("stack", debug.Stack()))
}

// activate compiles bin and instantiates it in a fresh runtime, after
// instantiating a library for every module it imports.
func (l *Loader) activate(ctx context.Context, m *metadata.Module, bin []byte, dirs []string) (*activation, error) {
	r := wazero.NewRuntimeWithConfig(ctx, l.cfg.RuntimeConfig)
	ok := false
	defer func() {
		if !ok {
			_ = r.Close(ctx)
		}
	}()

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return nil, relinkerrors.ActivationFailed("compile rewritten module", err)
	}

	for _, ref := range m.UsedReferences() {
		name := ref.Name()
		lib, found := l.libs[name]
		if !found && name == WASIModuleName {
			lib, found = WASI(), true
		}
		if !found {
			lib, found = findFileLibrary(dirs, name)
		}
		if !found {
			return nil, relinkerrors.ActivationFailed(fmt.Sprintf("no library registered for module %q", name), nil)
		}
		if _, err := lib.Instantiate(ctx, r, name); err != nil {
			return nil, relinkerrors.ActivationFailed(fmt.Sprintf("instantiate library %q", name), err)
		}
		l.cfg.Logger.Debug("instantiated library", zap.String("module", name))
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStdout(l.cfg.Stdout).
		WithStderr(l.cfg.Stderr)
	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, relinkerrors.ActivationFailed("instantiate rewritten module", err)
	}

	ok = true
	return &activation{runtime: r, module: mod, meta: m}, nil
}

type activation struct {
	runtime wazero.Runtime
	module  api.Module
	meta    *metadata.Module
}

func (a *activation) close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

// call resolves typeName/methodName through the module's metadata and
// invokes its export with the blob's guest pointer and size.
func (a *activation) call(ctx context.Context, typeName, methodName string, blob []byte) (int32, error) {
	typ := a.meta.FindType(typeName)
	if typ == nil {
		return 0, relinkerrors.EntryPointNotFound([]string{typeName}, "type not found")
	}
	path := []string{typeName, methodName}
	meth := typ.FindMethod(methodName)
	if meth == nil {
		return 0, relinkerrors.EntryPointNotFound(path, "method not found")
	}
	if len(meth.Exports) == 0 {
		return 0, relinkerrors.EntryPointNotFound(path, "method is not exported")
	}
	fn := a.module.ExportedFunction(meth.Exports[0])
	if fn == nil {
		return 0, relinkerrors.EntryPointNotFound(path, fmt.Sprintf("export %q not found", meth.Exports[0]))
	}
	def := fn.Definition()
	if !isEntrySignature(def) {
		return 0, relinkerrors.EntryPointNotFound(path,
			fmt.Sprintf("want (ptr, size) -> status, have %s", signatureString(def)))
	}

	ptr, err := a.writeBlob(ctx, blob)
	if err != nil {
		return 0, err
	}

	res, err := fn.Call(ctx, ptr, uint64(len(blob)))
	if err != nil {
		return 0, relinkerrors.New(relinkerrors.PhaseInvoke, relinkerrors.KindInvocation).
			Path(path...).
			Detail("entry point trapped").
			Cause(err).
			Build()
	}
	if def.ResultTypes()[0] == api.ValueTypeI64 {
		return int32(int64(res[0])), nil
	}
	return int32(uint32(res[0])), nil
}

// writeBlob copies blob into guest memory using the module's allocator and
// returns its address. Modules without memory or allocator receive 0.
func (a *activation) writeBlob(ctx context.Context, blob []byte) (uint64, error) {
	mem := a.module.Memory()
	if mem == nil || len(blob) == 0 {
		return 0, nil
	}

	var (
		res []uint64
		err error
	)
	size := uint64(len(blob))
	if fn := a.module.ExportedFunction(reallocExport); fn != nil && len(fn.Definition().ParamTypes()) == 4 {
		res, err = fn.Call(ctx, 0, 0, 1, size)
	} else if fn := a.module.ExportedFunction(allocExport); fn != nil && len(fn.Definition().ParamTypes()) == 1 {
		res, err = fn.Call(ctx, size)
	} else {
		return 0, nil
	}
	if err != nil {
		return 0, relinkerrors.Wrap(relinkerrors.PhaseInvoke, relinkerrors.KindInvocation, err, "allocate init blob")
	}
	if len(res) == 0 {
		return 0, relinkerrors.Wrap(relinkerrors.PhaseInvoke, relinkerrors.KindInvocation, nil, "allocator returned no address")
	}

	ptr := uint32(res[0])
	if !mem.Write(ptr, blob) {
		return 0, relinkerrors.Wrap(relinkerrors.PhaseInvoke, relinkerrors.KindInvocation, nil,
			fmt.Sprintf("allocated address %d out of memory bounds", ptr))
	}
	return uint64(ptr), nil
}

func isEntrySignature(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != 2 || len(results) != 1 {
		return false
	}
	for _, t := range params {
		if !isInteger(t) {
			return false
		}
	}
	return isInteger(results[0])
}

func isInteger(t api.ValueType) bool {
	return t == api.ValueTypeI32 || t == api.ValueTypeI64
}

func signatureString(def api.FunctionDefinition) string {
	sig := metadata.Signature{}
	for _, p := range def.ParamTypes() {
		sig.Params = append(sig.Params, metadata.ValType(p))
	}
	for _, r := range def.ResultTypes() {
		sig.Results = append(sig.Results, metadata.ValType(r))
	}
	return sig.String()
}
