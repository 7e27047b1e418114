package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// inputString pulls a string argument out of a tool input. Inputs arrive as
// decoded JSON objects from the model, or as plain strings.
func inputString(input any, keys ...string) (string, error) {
	switch v := input.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		for _, k := range append(keys, "input") {
			if s, ok := v[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), nil
			}
		}
	}
	return "", fmt.Errorf("missing %q argument", keys[0])
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
