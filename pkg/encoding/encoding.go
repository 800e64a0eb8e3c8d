// Package encoding repairs the mojibake pattern legacy Facebook exports
// produce when UTF-8 text is reinterpreted as Latin-1 and re-encoded.
package encoding

import "unicode/utf8"

// FixMojibake reverses a UTF-8-as-Latin-1 reinterpretation. Each rune of s is
// treated as a single byte (its low 8 bits); the resulting byte sequence is
// decoded as UTF-8. If s holds a rune above U+00FF (which no Latin-1
// reinterpretation produces), or that decode fails, s is returned unchanged —
// a failed repair is not an error (spec §4.3, §7).
func FixMojibake(s string) string {
	raw := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		raw = append(raw, byte(r))
	}
	if !utf8.Valid(raw) {
		return s
	}
	return string(raw)
}
