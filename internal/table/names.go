package table

import (
	"fmt"
	"strings"
)

// DevicePrefixSeparator splits "Device.Point" style headers.
const DevicePrefixSeparator = "."

// StripDevicePrefix keeps the text after the first separator. Names that would
// become empty keep their trimmed original form.
func StripDevicePrefix(name string) string {
	s := strings.TrimSpace(name)
	idx := strings.Index(s, DevicePrefixSeparator)
	if idx < 0 {
		return s
	}
	rest := strings.TrimSpace(s[idx+len(DevicePrefixSeparator):])
	if rest == "" {
		return s
	}
	return rest
}

// NameSet hands out unique column names, suffixing collisions with " (2)",
// " (3)", ... in first-seen order.
type NameSet struct {
	taken map[string]struct{}
}

// NewNameSet returns a set pre-populated with names.
func NewNameSet(names ...string) *NameSet {
	ns := &NameSet{taken: make(map[string]struct{}, len(names))}
	for _, n := range names {
		ns.taken[n] = struct{}{}
	}
	return ns
}

// Has reports whether name is already taken.
func (ns *NameSet) Has(name string) bool {
	_, ok := ns.taken[name]
	return ok
}

// Claim reserves name, or the first free suffixed variant, and returns it.
func (ns *NameSet) Claim(name string) string {
	if ns.taken == nil {
		ns.taken = map[string]struct{}{}
	}
	if _, ok := ns.taken[name]; !ok {
		ns.taken[name] = struct{}{}
		return name
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s (%d)", name, i)
		if _, ok := ns.taken[cand]; !ok {
			ns.taken[cand] = struct{}{}
			return cand
		}
	}
}
