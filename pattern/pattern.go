// Package pattern compiles LinkML structured patterns — regex or
// glob syntax, optionally interpolated with {dotted.path} references —
// into cached *regexp.Regexp matchers, plus typed named-capture
// extraction.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Spec describes one structured_pattern as carried on a SlotDef.
type Spec struct {
	Syntax       string // "regex" or "glob"; "" defaults to "regex"
	Pattern      string
	Interpolated bool
	PartialMatch bool
}

// compiledKey identifies a cache entry: syntax+pattern+partial always
// participate; interpolated patterns also key on the binding values
// actually substituted, since two interpolations of the same template
// against different contexts compile to different regexes.
type compiledKey struct {
	syntax       string
	pattern      string
	partialMatch bool
	interpolated bool
	bindings     string
}

// Compiler caches compiled patterns keyed the same way the teacher
// caches compiled JSON Schema regexes in compiledRegexPool (a
// package-level sync.Map keyed by pattern string in
// jsonschema/v2/jsonschema.go / compiler.go) — generalized here to a
// richer key since interpolation means the same template can compile to
// many distinct regexes.
type Compiler struct {
	cache sync.Map // compiledKey -> *regexp.Regexp
}

// NewCompiler returns an empty pattern Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile resolves spec against bindings (used only when
// spec.Interpolated) and returns the cached or newly compiled regex.
func (c *Compiler) Compile(spec Spec, bindings map[string]any) (*regexp.Regexp, error) {
	raw := spec.Pattern
	bindingsKey := ""
	if spec.Interpolated {
		interpolated, err := Interpolate(spec.Pattern, bindings)
		if err != nil {
			return nil, err
		}
		raw = interpolated
		bindingsKey = stableBindingsKey(bindings)
	}

	key := compiledKey{
		syntax:       spec.Syntax,
		pattern:      spec.Pattern,
		partialMatch: spec.PartialMatch,
		interpolated: spec.Interpolated,
		bindings:     bindingsKey,
	}
	if cached, ok := c.cache.Load(key); ok {
		return cached.(*regexp.Regexp), nil
	}

	exprStr := raw
	if spec.Syntax == "glob" {
		exprStr = globToRegex(raw)
	}
	if !spec.PartialMatch {
		exprStr = "^(?:" + exprStr + ")$"
	}
	re, err := regexp.Compile(exprStr)
	if err != nil {
		return nil, fmt.Errorf("pattern: invalid pattern %q: %w", spec.Pattern, err)
	}
	c.cache.Store(key, re)
	return re, nil
}

func stableBindingsKey(bindings map[string]any) string {
	if len(bindings) == 0 {
		return ""
	}
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	// sort for determinism without pulling in a helper elsewhere
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v;", k, bindings[k])
	}
	return sb.String()
}

// globToRegex transforms a shell-glob pattern into an equivalent regex
// body (unanchored; Compile applies anchoring). `*` matches any run of
// characters, `?` matches exactly one, everything else is escaped.
func globToRegex(glob string) string {
	var sb strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Interpolate expands every {dotted.path} reference in template against
// bindings, regex-escaping each substituted value so that it is always
// matched as a literal rather than reinterpreted as pattern syntax.
// Recursion is cycle-guarded: a value that itself contains a `{...}`
// reference is expanded at most once per distinct path seen so far.
func Interpolate(template string, bindings map[string]any) (string, error) {
	return interpolate(template, bindings, map[string]bool{})
}

func interpolate(template string, bindings map[string]any, seen map[string]bool) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(template) {
		if template[i] != '{' {
			out.WriteByte(template[i])
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("pattern: unterminated interpolation in %q", template)
		}
		path := strings.TrimSpace(template[i+1 : i+end])
		i += end + 1

		if seen[path] {
			return "", fmt.Errorf("pattern: cyclic interpolation at %q", path)
		}
		val, ok := lookupPath(bindings, path)
		if !ok {
			return "", fmt.Errorf("pattern: unresolved interpolation reference %q", path)
		}
		str := fmt.Sprintf("%v", val)
		if strings.Contains(str, "{") {
			seen2 := cloneSet(seen)
			seen2[path] = true
			expanded, err := interpolate(str, bindings, seen2)
			if err != nil {
				return "", err
			}
			str = expanded
		}
		out.WriteString(regexp.QuoteMeta(str))
	}
	return out.String(), nil
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func lookupPath(bindings map[string]any, path string) (any, bool) {
	var cur any = bindings
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
