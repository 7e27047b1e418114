// Package template renders goal and instruction templates against shared state.
//
// Placeholders use single braces, {topic}, as in the crew YAML files. Rendering
// is strict: a placeholder with no value in state is an error, never an empty
// substitution.
package template

import (
	"regexp"
	"strings"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the placeholder names in text, in first-seen order.
func Placeholders(text string) []string {
	matches := placeholderRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}

// Render substitutes every placeholder in text with its value in state.
// owner names the step for error reporting.
func Render(owner, text string, state *core.SharedState) (string, error) {
	var missing string
	out := placeholderRE.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := state.Get(key)
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", errors.MissingInput(owner, missing)
	}
	return out, nil
}

// RequiredKeys merges declared inputs with the placeholders found in texts,
// declared keys first.
func RequiredKeys(declared []string, texts ...string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(key string) {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, key)
	}
	for _, key := range declared {
		add(key)
	}
	for _, text := range texts {
		for _, key := range Placeholders(text) {
			add(key)
		}
	}
	return out
}
