package internal

import "strings"

const maxDisplayNameLen = 24

// sanitizeDisplayName trims to printable ASCII, clamps length, and falls
// back to a default when the result is empty.
func sanitizeDisplayName(name string) string {
	clean := printableASCII(strings.TrimSpace(name))
	if len(clean) > maxDisplayNameLen {
		clean = clean[:maxDisplayNameLen]
	}
	if clean == "" {
		return "Player"
	}
	return clean
}

// printableASCII drops every byte outside the printable ASCII range
// (0x20-0x7e).
func printableASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	return b.String()
}
