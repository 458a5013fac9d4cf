// Command relinkboot builds the bootstrap loader as a C shared library:
//
//	go build -buildmode=c-shared -o librelinkboot.so ./cmd/relinkboot
//
// A native host calls relink_initialize with the blob
// "<module path>;<target library>" and relink_shutdown when done. Both
// return the entry point's status, -1 on failure and, for shutdown, -2 when
// nothing was initialized. Settings come from relink.toml and RELINK_*
// variables; diagnostics go to stderr.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-relink/bootstrap"
	"github.com/wippyai/wasm-relink/internal/config"
	"github.com/wippyai/wasm-relink/internal/logging"
	"github.com/wippyai/wasm-relink/metadata"
	"github.com/wippyai/wasm-relink/relink"
)

var loader = sync.OnceValue(newLoader)

func newLoader() *bootstrap.Loader {
	cfg, path, err := config.Load(config.LoadOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "relinkboot: %v, using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relinkboot: %v\n", err)
		log = logging.Must(os.Stderr, "error", false)
	}
	log = log.Named("relinkboot")
	metadata.SetLogger(log.Named("metadata"))
	relink.SetLogger(log.Named("relink"))
	if path != "" {
		log.Debug("loaded config", zap.String("path", path))
	}

	return bootstrap.NewLoader(bootstrap.Config{
		Logger:           log,
		Sentinel:         cfg.Sentinel,
		EntryType:        cfg.Entry.Type,
		InitializeMethod: cfg.Entry.Initialize,
		ShutdownMethod:   cfg.Entry.Shutdown,
		LibraryPath:      cfg.LibraryPath,
	})
}

//export relink_initialize
func relink_initialize(data unsafe.Pointer, size C.int32_t) C.int32_t {
	return C.int32_t(loader().InitializeNative(data, int(size)))
}

//export relink_shutdown
func relink_shutdown(data unsafe.Pointer, size C.int32_t) C.int32_t {
	return C.int32_t(loader().ShutdownNative(data, int(size)))
}

func main() {}
