package metadata

// ModuleRef is a named handle to an external module. Instances are owned by
// a module's References table; compare them by pointer.
type ModuleRef struct {
	name string
}

// Name returns the external module name.
func (r *ModuleRef) Name() string {
	return r.name
}

func (r *ModuleRef) String() string {
	return r.name
}

// References interns module references by name. A name is registered at
// most once; every descriptor resolving to that name shares one *ModuleRef.
type References struct {
	byName map[string]*ModuleRef
	order  []*ModuleRef
}

func newReferences() *References {
	return &References{byName: make(map[string]*ModuleRef)}
}

// Lookup returns the reference registered under name.
func (rs *References) Lookup(name string) (*ModuleRef, bool) {
	ref, ok := rs.byName[name]
	return ref, ok
}

// Intern returns the reference registered under name, registering it first
// if needed. created reports whether a new entry was added.
func (rs *References) Intern(name string) (ref *ModuleRef, created bool) {
	if ref, ok := rs.byName[name]; ok {
		return ref, false
	}
	ref = &ModuleRef{name: name}
	rs.byName[name] = ref
	rs.order = append(rs.order, ref)
	return ref, true
}

// All returns every registered reference in registration order.
func (rs *References) All() []*ModuleRef {
	out := make([]*ModuleRef, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of registered references.
func (rs *References) Len() int {
	return len(rs.order)
}
