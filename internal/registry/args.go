package registry

import "strings"

// SplitCommand splits a command line into its leading identifier token and
// the trailing parameter string. ok is false when the line is a bare
// identifier with no parameters.
func SplitCommand(s string) (name, params string, ok bool) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", false
	}
	name = s[:i]
	params = strings.TrimSpace(s[i+1:])
	return name, params, params != ""
}

// ParseKeyValues parses whitespace-delimited key=value pairs. Values may be
// unquoted (terminated by whitespace), single-quoted, or double-quoted;
// quote characters are not escapable within the quoted form. Tokens without
// an unquoted '=' are skipped.
func ParseKeyValues(s string) map[string]any {
	kwargs := make(map[string]any)
	i := 0
	n := len(s)
	for i < n {
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}

		// Key runs to the first '='.
		start := i
		for i < n && s[i] != '=' && !isSpace(s[i]) {
			i++
		}
		if i >= n || s[i] != '=' {
			// Not a pair; skip the rest of the token.
			for i < n && !isSpace(s[i]) {
				i++
			}
			continue
		}
		key := s[start:i]
		i++ // consume '='

		var value string
		if i < n && (s[i] == '\'' || s[i] == '"') {
			quote := s[i]
			i++
			vstart := i
			for i < n && s[i] != quote {
				i++
			}
			value = s[vstart:i]
			if i < n {
				i++ // consume closing quote
			}
		} else {
			vstart := i
			for i < n && !isSpace(s[i]) {
				i++
			}
			value = s[vstart:i]
		}

		if key != "" {
			kwargs[key] = value
		}
	}
	return kwargs
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
