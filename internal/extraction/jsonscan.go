package extraction

import (
	"encoding/json"
	"strings"
)

// ExtractEmbeddedJSON finds the JSON object inside free-form model output.
//
// Candidates start at each '{' and end at the brace that brings the nesting
// depth back to zero, ignoring braces inside string literals. The first
// candidate that is valid JSON wins; failing that, the first balanced block
// is returned so the caller can report why it does not parse. ok is false
// when the text holds no balanced block at all.
func ExtractEmbeddedJSON(text string) (string, bool) {
	var fallback string
	found := false

	for offset := 0; offset < len(text); {
		start := strings.IndexByte(text[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		if end, ok := closingBrace(text, start); ok {
			block := text[start : end+1]
			if json.Valid([]byte(block)) {
				return block, true
			}
			if !found {
				fallback, found = block, true
			}
		}
		offset = start + 1
	}

	return fallback, found
}

// closingBrace returns the index of the brace matching the one at start
func closingBrace(text string, start int) (int, bool) {
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
				return i, true
			}
		}
	}
	return 0, false
}
