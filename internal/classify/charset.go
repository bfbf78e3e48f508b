package classify

import (
	"strings"
	"unicode"
)

// Letters that occur in exactly one language of the pair. A single occurrence
// is decisive for the character heuristic.
const (
	protectedOnlyLetters  = "іїєґІЇЄҐ"
	suppressedOnlyLetters = "ыэъёЫЭЪЁ"
)

// Scan summarizes one pass over a text's codepoints.
type Scan struct {
	// Protected is true when a protected-only letter was seen.
	Protected bool
	// Suppressed is true when a suppressed-only letter was seen.
	Suppressed bool
	// Letters counts alphabetic codepoints.
	Letters int
	// Shared counts letters from the shared Cyrillic script family.
	Shared int
}

// ScanText examines every codepoint once. Malformed UTF-8 decodes to the
// replacement rune, which belongs to no set.
func ScanText(text string) Scan {
	var scan Scan
	for _, r := range text {
		if strings.ContainsRune(protectedOnlyLetters, r) {
			scan.Protected = true
		} else if strings.ContainsRune(suppressedOnlyLetters, r) {
			scan.Suppressed = true
		}
		if unicode.IsLetter(r) {
			scan.Letters++
			if unicode.Is(unicode.Cyrillic, r) {
				scan.Shared++
			}
		}
	}
	return scan
}

// HasShared reports whether any shared-script letter was present.
func (s Scan) HasShared() bool {
	return s.Shared > 0
}

// SharedMajority reports whether more than half of the alphabetic codepoints
// belong to the shared script family.
func (s Scan) SharedMajority() bool {
	return s.Letters > 0 && s.Shared*2 > s.Letters
}
