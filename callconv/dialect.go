package callconv

// Dialect names the line prefixes the patcher recognizes in a textual
// disassembly. Lines are matched after trimming surrounding whitespace.
type Dialect struct {
	// TypeOpen starts a type scope.
	TypeOpen string
	// TypeClose ends the innermost type scope.
	TypeClose string
	// MethodOpen starts a method body inside a type.
	MethodOpen string
	// MethodClose ends the current method body.
	MethodClose string
	// Marker flags the enclosing scope for patching.
	Marker string
	// Trampoline identifies the callback signature line that receives the
	// modifier. Like the other fields it must prefix the trimmed line.
	Trampoline string
	// Modifier is emitted verbatim on its own line.
	Modifier string
}

// DefaultDialect returns the ILAsm-style dialect.
func DefaultDialect() Dialect {
	return Dialect{
		TypeOpen:    ".class ",
		TypeClose:   "} // end of class",
		MethodOpen:  ".method ",
		MethodClose: "} // end of method",
		Marker:      ".custom instance void Runtime.CallConvCdeclAttribute",
		Trampoline:  "Invoke(",
		Modifier:    " modopt([mscorlib]System.Runtime.CompilerServices.CallConvCdecl)",
	}
}

func (d Dialect) withDefaults() Dialect {
	def := DefaultDialect()
	if d.TypeOpen == "" {
		d.TypeOpen = def.TypeOpen
	}
	if d.TypeClose == "" {
		d.TypeClose = def.TypeClose
	}
	if d.MethodOpen == "" {
		d.MethodOpen = def.MethodOpen
	}
	if d.MethodClose == "" {
		d.MethodClose = def.MethodClose
	}
	if d.Marker == "" {
		d.Marker = def.Marker
	}
	if d.Trampoline == "" {
		d.Trampoline = def.Trampoline
	}
	if d.Modifier == "" {
		d.Modifier = def.Modifier
	}
	return d
}
