// Package prompt implements the template engine for database-resident
// prompts: literal {{ name }} replacement with one level of nested
// {{ name['key'] }} access. Rendering is best effort; unresolved
// placeholders stay in the output verbatim.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Value is a template variable: either a scalar string or a one-level
// map of string keys.
type Value struct {
	scalar string
	fields map[string]string
	isMap  bool
}

func String(s string) Value {
	return Value{scalar: s}
}

func Map(fields map[string]string) Value {
	return Value{fields: fields, isMap: true}
}

func (v Value) IsMap() bool {
	return v.isMap
}

// String renders the scalar form. Maps render as a sorted key-value
// listing so the top-level placeholder still resolves deterministically.
func (v Value) String() string {
	if !v.isMap {
		return v.scalar
	}
	keys := make([]string, 0, len(v.fields))
	for key := range v.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("{")
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': '%s'", key, v.fields[key])
	}
	b.WriteString("}")
	return b.String()
}

// UnmarshalJSON coerces arbitrary caller-supplied JSON: strings stay
// strings, objects become one-level field maps, everything else is
// stringified.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		fields := make(map[string]string, len(obj))
		for key, val := range obj {
			fields[key] = stringify(val)
		}
		*v = Map(fields)
		return nil
	}

	var other any
	if err := json.Unmarshal(data, &other); err != nil {
		return err
	}
	*v = String(stringify(other))
	return nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	}
}

// Vars maps variable names to values for rendering.
type Vars map[string]Value

// Render replaces every {{ name }} occurrence with the scalar form of
// vars[name], tolerating arbitrary whitespace inside the braces, and
// every {{ name['key'] }} occurrence for map values. Placeholders with
// no matching variable are left untouched.
func Render(template string, vars Vars) string {
	rendered := template

	for name, value := range vars {
		pattern := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
		rendered = pattern.ReplaceAllLiteralString(rendered, value.String())

		if value.isMap {
			for key, nested := range value.fields {
				nestedPattern := regexp.MustCompile(
					`\{\{\s*` + regexp.QuoteMeta(name) + `\['` + regexp.QuoteMeta(key) + `'\]\s*\}\}`)
				rendered = nestedPattern.ReplaceAllLiteralString(rendered, nested)
			}
		}
	}

	return rendered
}

// Validate returns the missing variable identifiers: expected top-level
// names absent from provided, and for provided map values, any
// {{ name['key'] }} reference in the template whose key the map lacks.
// Nested misses are reported as name['key'].
func Validate(template string, expectedVars []string, provided Vars) []string {
	var missing []string

	for _, name := range expectedVars {
		value, ok := provided[name]
		if !ok {
			missing = append(missing, name)
			continue
		}

		if value.isMap {
			pattern := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\['([^']+)'\]\s*\}\}`)
			for _, match := range pattern.FindAllStringSubmatch(template, -1) {
				key := match[1]
				if _, ok := value.fields[key]; !ok {
					missing = append(missing, name+"['"+key+"']")
				}
			}
		}
	}

	return missing
}

// SampleVariables generates realistic sample values for a prompt's
// declared variables, with a generic fallback for unknown names.
func SampleVariables(expectedVars []string) map[string]string {
	samples := make(map[string]string, len(expectedVars))

	for _, name := range expectedVars {
		switch name {
		case "goal":
			samples[name] = "Build a mobile app for task management"
		case "latest_contribution_text":
			samples[name] = "I think we should use React Native for cross-platform compatibility"
		case "context":
			samples[name] = "Previous discussion about technology stack choices"
		case "history":
			samples[name] = "User A: What framework should we use?\nUser B: I suggest React Native\nUser A: That sounds good"
		case "role":
			samples[name] = "{'name': 'John Doe', 'title': 'Senior Developer'}"
		case "roles_text":
			samples[name] = "John Doe (Senior Developer), Jane Smith (UI/UX Designer), Bob Wilson (Project Manager)"
		case "contributions_text":
			samples[name] = "John: We need to decide on the tech stack\nJane: I suggest focusing on user experience first\nBob: Let's align on timeline and priorities"
		case "current_briefing":
			samples[name] = "You're responsible for the technical architecture decisions. The team is currently discussing framework options."
		case "synthesis":
			samples[name] = "The team has agreed on React Native for mobile development and is now discussing state management approaches."
		case "chat_history_text":
			samples[name] = "John: What about Redux for state management?\nJane: I prefer Zustand for its simplicity\nBob: Both are good options, let's prototype with both"
		default:
			samples[name] = "Sample value for " + name
		}
	}

	return samples
}
