// Command relink rewrites the external linkage of compiled modules.
//
//	relink app.wasm __Internal=libnative
//	relink inspect app.wasm
//	relink callconv app.il -o app.patched.il
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
