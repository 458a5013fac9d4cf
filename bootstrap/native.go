package bootstrap

import (
	"context"
	"unsafe"

	relinkerrors "github.com/wippyai/wasm-relink/errors"
)

// copyNative copies size bytes starting at ptr into Go memory.
func copyNative(ptr unsafe.Pointer, size int) ([]byte, error) {
	if size < 0 || (ptr == nil && size > 0) {
		return nil, relinkerrors.MalformedInitBlob("invalid native buffer", 0)
	}
	if size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	return out, nil
}

// InitializeNative copies the blob from native memory and runs Initialize.
// The native buffer is not referenced after the call returns.
func (l *Loader) InitializeNative(ptr unsafe.Pointer, size int) int32 {
	blob, err := copyNative(ptr, size)
	if err != nil {
		l.report("initialize", err)
		return relinkerrors.StatusFailed
	}
	return l.Initialize(context.Background(), blob)
}

// ShutdownNative copies the blob from native memory and runs Shutdown.
func (l *Loader) ShutdownNative(ptr unsafe.Pointer, size int) int32 {
	blob, err := copyNative(ptr, size)
	if err != nil {
		l.report("shutdown", err)
		return relinkerrors.StatusFailed
	}
	return l.Shutdown(context.Background(), blob)
}
