package deb

import "strings"

// Closure is the set of packages required by a root package, in the order they
// were discovered.
type Closure struct {
	names   []string
	records map[string]Record
}

// Names returns the package names in discovery order: the root first, then each
// dependency in listed order, fully expanded before its next sibling.
func (c *Closure) Names() []string {
	return append([]string(nil), c.names...)
}

// Get returns the record of a package of the closure.
func (c *Closure) Get(name string) (Record, bool) {
	r, ok := c.records[name]
	return r, ok
}

// Has reports whether name is part of the closure.
func (c *Closure) Has(name string) bool {
	_, ok := c.records[name]
	return ok
}

// Len returns the number of packages in the closure.
func (c *Closure) Len() int { return len(c.names) }

// Records returns the records in discovery order.
func (c *Closure) Records() []Record {
	res := make([]Record, len(c.names))
	for i, n := range c.names {
		res[i] = c.records[n]
	}
	return res
}

// Resolve computes the transitive Depends closure of root within idx.
//
// The traversal is a pre-order depth-first walk driven by an explicit stack, so
// that long dependency chains do not grow the call stack. A package already in
// the closure is never expanded again, which terminates cycles and shares
// diamonds. Every name met must be in idx, otherwise a *MissingPackageError is
// returned.
func Resolve(idx Index, root string) (*Closure, error) {
	c := &Closure{records: make(map[string]Record)}

	stack := []string{root}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.Has(name) {
			continue
		}
		r, ok := idx[name]
		if !ok {
			return nil, &MissingPackageError{Name: name}
		}
		c.names = append(c.names, name)
		c.records[name] = r

		deps := r.Depends()
		// Push in reverse so the first listed dependency is expanded first.
		for i := len(deps) - 1; i >= 0; i-- {
			stack = append(stack, pick(idx, Alternatives(deps[i])))
		}
	}
	return c, nil
}

// pick returns the first alternative present in idx, or the first one if none is.
func pick(idx Index, alts []string) string {
	for _, a := range alts {
		if _, ok := idx[a]; ok {
			return a
		}
	}
	return alts[0]
}

// Alternatives splits one Depends entry into the bare package names it accepts.
// "libc6 (>= 2.31) | musl:any" yields ["libc6", "musl"]. Version constraints are
// dropped, not evaluated.
func Alternatives(entry string) []string {
	var names []string
	for _, alt := range strings.Split(entry, "|") {
		name := strings.TrimSpace(alt)
		if i := strings.IndexAny(name, "(["); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []string{strings.TrimSpace(entry)}
	}
	return names
}
