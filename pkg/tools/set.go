// Package tools provides the capability tools roles can call: web search
// and page fetch, plus a Set mapping capability ids to tools.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

// Set maps capability ids to tools. A role only sees the tools of the
// capabilities it holds.
type Set struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{tools: make(map[string]core.Tool)}
}

// Register binds a tool to a capability. Re-binding replaces the tool.
func (s *Set) Register(capability string, tool core.Tool) error {
	if capability == "" || tool == nil {
		return errors.InvalidInput("capability and tool are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[capability] = tool
	return nil
}

// Capabilities returns the registered capability ids in sorted order.
func (s *Set) Capabilities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tools))
	for c := range s.tools {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Tools returns the tools for capabilities, in the given order. An
// unserved capability is an error.
func (s *Set) Tools(capabilities []string) ([]core.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Tool, 0, len(capabilities))
	for _, c := range capabilities {
		t, ok := s.tools[c]
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("no tool serves capability %q", c)).
				WithContext("capability", c)
		}
		out = append(out, t)
	}
	return out, nil
}
