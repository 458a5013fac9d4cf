// Package callconv patches the calling convention of callback trampolines
// in a textual disassembly.
//
// A type or method carrying the marker line is rewritten so that the
// modifier line (by default a CallConvCdecl modopt) is emitted:
//
//   - in a marked method, right after the method header;
//   - in a marked type, right before the first trampoline signature line
//     ("Invoke(" by default).
//
// Everything else is copied through unchanged and in order. Nested types
// are tracked with an explicit scope stack, so nesting depth is limited
// only by memory.
//
//	p := callconv.New(callconv.DefaultDialect())
//	n, err := p.PatchStream(in, out)
package callconv
