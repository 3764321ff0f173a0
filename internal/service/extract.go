package service

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} substring of text.
// Braces inside JSON string literals are ignored. When a candidate starting
// at one '{' never closes, scanning resumes at the next '{'.
func ExtractJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start != -1; {
		if end, ok := matchBrace(text, start); ok {
			return text[start:end], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index just past the brace closing text[start].
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// DecodeJSONObject extracts the first JSON object from text and unmarshals it
// into v. It reports false when no object is found or it does not parse.
func DecodeJSONObject(text string, v interface{}) bool {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}
