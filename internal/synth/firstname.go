package synth

import "strings"

// FallbackName greets a prospect whose name yields no usable first name.
const FallbackName = "there"

var honorifics = []string{"Dr.", "Mr.", "Mrs.", "Ms.", "Prof.", "Professor", "Sir", "Madam"}

// FirstName extracts the greeting name from a full name. A leading single-letter initial
// is skipped when a longer token follows ("A. B. Smith" -> "B"); names made only of
// initials fall back. It never returns "".
func FirstName(full string) string {
	name := strings.TrimSpace(full)
	if name == "" {
		return FallbackName
	}
	for _, h := range honorifics {
		if hasHonorific(name, h) {
			name = strings.TrimSpace(name[len(h):])
		}
	}

	parts := strings.Fields(name)
	if len(parts) == 0 {
		return FallbackName
	}

	first := parts[0]
	if isInitial(first) && len(parts) > 1 && len([]rune(parts[1])) > 1 {
		second := trimPunct(parts[1])
		if (len(parts) > 2 && second != "") || len([]rune(second)) > 1 {
			return second
		}
	}
	first = trimPunct(first)
	if len([]rune(first)) <= 1 {
		return FallbackName
	}
	return first
}

// hasHonorific matches h as a whole word, so "Sirius" keeps its name.
func hasHonorific(name, h string) bool {
	if !strings.HasPrefix(name, h) {
		return false
	}
	rest := name[len(h):]
	return rest == "" || strings.HasSuffix(h, ".") || rest[0] == ' ' || rest[0] == '\t'
}

func isInitial(token string) bool {
	return len([]rune(trimPunct(token))) == 1
}

func trimPunct(s string) string {
	return strings.TrimRight(s, ".,")
}
