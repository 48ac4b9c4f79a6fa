// Package sanitize implements the secure shell's character-set
// filter (C1). It is lossy by design: forbidden bytes are dropped,
// never escaped, so no downstream substitution can synthesize a
// token the grammars in package gate wouldn't otherwise admit.
package sanitize

// Line reduces input to the characters the rest of the system's
// grammars assume: ASCII letters and digits, space, '-', '.', '@',
// '_', and '/'. Order is preserved; everything else (tabs, quotes,
// backticks, shell metacharacters, non-ASCII bytes) is dropped
// silently, mirroring sanitize_input in the original C++ source.
func Line(input string) string {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		c := input[i]
		if isAllowed(c) {
			out = append(out, c)
		}
	}
	return string(out)
}

func isAllowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == ' ' || c == '-' || c == '.' || c == '@' || c == '_' || c == '/':
		return true
	default:
		return false
	}
}
