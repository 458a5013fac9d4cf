// Package relink retargets the external linkage of a loaded module.
//
// A mapping names a sentinel module ("__Internal") and the library the
// sentinel's methods should bind to instead:
//
//	m, _ := metadata.LoadFile("app.wasm")
//	report, err := relink.Remap(m, []relink.Mapping{
//	    {Sentinel: "__Internal", Target: "libnative"},
//	})
//	if err != nil {
//	    return err
//	}
//	for _, res := range report.Results {
//	    for _, rt := range res.Retargeted {
//	        fmt.Printf("%s::%s -> %s\n", rt.Type, rt.Method, rt.To)
//	    }
//	}
//	out := m.Serialize()
//
// Remap only changes import module names; the rest of the module is left
// as it was loaded.
package relink
