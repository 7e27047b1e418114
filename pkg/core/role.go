package core

import (
	"slices"
	"strings"
)

// Capability ids understood by the builtin tool set.
const (
	CapabilitySearch = "search"
	CapabilityFetch  = "fetch"
)

// Role is a named persona with an instruction and a capability set.
// A Role is immutable once built with NewRole.
type Role struct {
	id           string
	name         string
	instruction  string
	capabilities []string
}

// NewRole builds a role. Capabilities are trimmed, deduplicated and sorted.
func NewRole(id, name, instruction string, capabilities ...string) Role {
	caps := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(caps, c) {
			continue
		}
		caps = append(caps, c)
	}
	slices.Sort(caps)
	if name == "" {
		name = id
	}
	return Role{
		id:           strings.TrimSpace(id),
		name:         name,
		instruction:  instruction,
		capabilities: caps,
	}
}

// ID returns the role identifier.
func (r Role) ID() string { return r.id }

// Name returns the display name.
func (r Role) Name() string { return r.name }

// Instruction returns the instruction template.
func (r Role) Instruction() string { return r.instruction }

// Capabilities returns a copy of the capability ids.
func (r Role) Capabilities() []string {
	return append([]string(nil), r.capabilities...)
}

// Can reports whether the role holds the capability.
func (r Role) Can(capability string) bool {
	_, found := slices.BinarySearch(r.capabilities, capability)
	return found
}
