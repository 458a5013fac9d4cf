// Package errors provides structured error types for wasm-relink.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Every failure the rewriter can report has a Kind sentinel that
// works with the standard errors.Is:
//
//	if errors.Is(err, relinkerrors.ErrMalformedMetadata) {
//	    ...
//	}
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindModuleNotFound).
//		Path("/tmp/mod.wasm").
//		Detail("file is not readable").
//		Cause(ioErr).
//		Build()
//
// Status converts any error into the negative status convention used across the
// native boundary.
package errors
