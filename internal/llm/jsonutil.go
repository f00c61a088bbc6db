package llm

import (
	"regexp"
	"strings"
)

var (
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	trailingComma       = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the first JSON object found in a model reply,
// preferring a fenced code block. Trailing commas are removed. It returns
// "" when the reply holds no object.
func ExtractJSON(content string) string {
	if m := fencedObjectPattern.FindStringSubmatch(content); len(m) > 1 {
		return trailingComma.ReplaceAllString(m[1], "$1")
	}
	raw := firstObject(content)
	if raw == "" {
		return ""
	}
	return trailingComma.ReplaceAllString(raw, "$1")
}

// firstObject scans for the first balanced {...} span, ignoring braces
// inside string literals.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			depth++
		case c == '}' && !inString:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
