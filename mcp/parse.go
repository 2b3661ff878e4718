package mcp

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// ExtractJSON implements §4.4's response-parsing rule: prefer a fenced
// ```json block, fall back to treating the whole string as JSON, then to
// the span starting at the first '{' or '['; when none of these parses it
// returns an empty result and false, leaving the raw string to the caller.
// gjson is used instead of
// strict encoding/json so trailing prose after a JSON object (a common LLM
// habit) doesn't make an otherwise well-formed payload unusable; ok reports
// whether a JSON value was actually found.
func ExtractJSON(raw string) (gjson.Result, bool) {
	if m := fencedJSONPattern.FindStringSubmatch(raw); len(m) == 2 {
		candidate := strings.TrimSpace(m[1])
		if r := gjson.Parse(candidate); r.Exists() && (r.IsObject() || r.IsArray()) {
			return r, true
		}
	}
	trimmed := strings.TrimSpace(raw)
	if r := gjson.Parse(trimmed); r.Exists() && (r.IsObject() || r.IsArray()) {
		return r, true
	}
	// last resort: salvage the first top-level {...} or [...] span, tolerating
	// leading/trailing prose around it.
	if start := strings.IndexAny(trimmed, "{["); start >= 0 {
		if r := gjson.Parse(trimmed[start:]); r.Exists() && (r.IsObject() || r.IsArray()) {
			return r, true
		}
	}
	return gjson.Result{}, false
}
