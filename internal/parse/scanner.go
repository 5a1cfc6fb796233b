package parse

import "strings"

// scanner walks JSON text one byte at a time, tracking whether it is inside
// a string literal and how deeply arrays and objects are nested.
type scanner struct {
	inString bool
	escaped  bool
	arrays   int
	objects  int
}

// step advances the scanner over c. It reports whether c is structural,
// i.e. outside any string literal.
func (s *scanner) step(c byte) bool {
	if s.inString {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.inString = false
		}
		return false
	}

	switch c {
	case '"':
		s.inString = true
		return false
	case '[':
		s.arrays++
	case ']':
		s.arrays--
	case '{':
		s.objects++
	case '}':
		s.objects--
	}
	return true
}

// matchingClose returns the index of the bracket closing the one at start,
// or -1 when the text ends first.
func matchingClose(text string, start int) int {
	var s scanner
	depth := 0
	for i := start; i < len(text); i++ {
		c := text[i]
		if !s.step(c) {
			continue
		}
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// lastCompleteElement returns the index of the '}' that closes the last
// fully written object directly inside the top-level array starting at
// text[0]. It returns -1 if no such object exists.
func lastCompleteElement(text string) int {
	var s scanner
	last := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !s.step(c) {
			continue
		}
		if c == '}' && s.arrays == 1 && s.objects == 0 {
			last = i
		}
		if s.arrays == 0 && i > 0 {
			break
		}
	}
	return last
}

// repairTruncatedArray closes a cut-off array after its last complete
// element. ok is false when nothing complete was written.
func repairTruncatedArray(text string) (repaired string, ok bool) {
	end := lastCompleteElement(text)
	if end < 0 {
		return "", false
	}
	return text[:end+1] + "\n]", true
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket, ignoring anything inside string literals.
func stripTrailingCommas(text string) string {
	if !strings.Contains(text, ",") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	var s scanner
	for i := 0; i < len(text); i++ {
		c := text[i]
		structural := s.step(c)
		if structural && c == ',' {
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j < len(text) && (text[j] == ']' || text[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripCodeFence returns the body of the first fenced block in text.
// Fences must open at the start of a line and close at the end of one, so
// backticks quoted inside element text are left alone. A missing closing
// fence, as left by a truncated response, keeps the rest.
func stripCodeFence(text string) string {
	open := findFence(text, 0, true)
	if open < 0 {
		return text
	}
	body := text[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// skip the info string, e.g. ```json
		if !strings.ContainsAny(body[:nl], "[{") {
			body = body[nl+1:]
		}
	}
	if end := findFence(body, 0, false); end >= 0 {
		body = body[:end]
	}
	return body
}

// findFence returns the index of the first ``` at or after from that opens
// (atLineStart) or closes a line, or -1.
func findFence(text string, from int, atLineStart bool) int {
	for from < len(text) {
		i := strings.Index(text[from:], "```")
		if i < 0 {
			return -1
		}
		i += from
		if atLineStart && onlySpaceBefore(text, i) {
			return i
		}
		if !atLineStart && onlySpaceAfter(text, i+3) {
			return i
		}
		from = i + 3
	}
	return -1
}

func onlySpaceBefore(text string, i int) bool {
	for k := i - 1; k >= 0 && text[k] != '\n'; k-- {
		if !isSpace(text[k]) {
			return false
		}
	}
	return true
}

func onlySpaceAfter(text string, i int) bool {
	for k := i; k < len(text) && text[k] != '\n'; k++ {
		if !isSpace(text[k]) {
			return false
		}
	}
	return true
}

// elementStart returns the index of the first '[' or '{' that opens an
// element list or object, skipping bracketed prose such as "Page [1]".
// It returns -1 when there is none.
func elementStart(text string) int {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '[' && c != '{' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == len(text) {
			// cut off right after the bracket
			return i
		}
		switch next := text[j]; {
		case c == '[' && (next == '{' || next == ']'):
			return i
		case c == '{' && (next == '"' || next == '}'):
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
