package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
	Enum        []string
	Default     any
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// argReader pulls typed values out of a decoded JSON argument map and
// collects every violation, so a tool can report them together.
type argReader struct {
	args   map[string]any
	errs   []string
	failed map[string]bool
}

func readArgs(args map[string]any) *argReader {
	if args == nil {
		args = map[string]any{}
	}
	return &argReader{args: args, failed: make(map[string]bool)}
}

func (a *argReader) fail(key, format string, v ...any) {
	a.failed[key] = true
	a.errs = append(a.errs, key+": "+fmt.Sprintf(format, v...))
}

func (a *argReader) lookup(key string) (any, bool) {
	v, ok := a.args[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (a *argReader) requiredString(key string) string {
	v, ok := a.lookup(key)
	if !ok {
		a.fail(key, "field required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, "input should be a valid string")
		return ""
	}
	return s
}

func (a *argReader) optionalString(key, def string) string {
	v, ok := a.lookup(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, "input should be a valid string")
		return def
	}
	return s
}

// requiredInt accepts JSON numbers with no fractional part and numeric strings.
func (a *argReader) requiredInt(key string) int {
	v, ok := a.lookup(key)
	if !ok {
		a.fail(key, "field required")
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			a.fail(key, "input should be a valid integer")
			return 0
		}
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			a.fail(key, "input should be a valid integer")
			return 0
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			a.fail(key, "input should be a valid integer")
			return 0
		}
		return i
	}
	a.fail(key, "input should be a valid integer")
	return 0
}

// valid reports whether key has not failed a check so far.
func (a *argReader) valid(key string) bool {
	return !a.failed[key]
}

func (a *argReader) intRange(key string, v, lo, hi int) {
	if !a.valid(key) {
		return
	}
	if v < lo {
		a.fail(key, "input should be greater than or equal to %d", lo)
	} else if v > hi {
		a.fail(key, "input should be less than or equal to %d", hi)
	}
}

func (a *argReader) length(key, s string, lo, hi int) {
	if !a.valid(key) {
		return
	}
	n := utf8.RuneCountInString(s)
	if n < lo {
		a.fail(key, "string should have at least %d characters", lo)
	} else if hi > 0 && n > hi {
		a.fail(key, "string should have at most %d characters", hi)
	}
}

func (a *argReader) oneOf(key, s string, allowed []string) {
	if !a.valid(key) {
		return
	}
	if !slices.Contains(allowed, s) {
		a.fail(key, "input should be one of %s", strings.Join(allowed, ", "))
	}
}

func (a *argReader) err() error {
	if len(a.errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(a.errs, "; "))
}

// preview shortens s to n runes, marking the cut with "...".
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
