package classify

import (
	"fmt"

	"golang.org/x/text/language"
)

// TagPair matches oracle language tags against the configured pair. Matching
// compares base languages, so a regional tag like "uk-UA" matches "uk".
type TagPair struct {
	protected  language.Base
	suppressed language.Base
}

// NewTagPair parses the configured BCP-47 tags.
func NewTagPair(protectedTag, suppressedTag string) (TagPair, error) {
	protected, err := parseBase(protectedTag)
	if err != nil {
		return TagPair{}, fmt.Errorf("protected language: %w", err)
	}
	suppressed, err := parseBase(suppressedTag)
	if err != nil {
		return TagPair{}, fmt.Errorf("suppressed language: %w", err)
	}
	return TagPair{protected: protected, suppressed: suppressed}, nil
}

func parseBase(tag string) (language.Base, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return language.Base{}, fmt.Errorf("parse tag %q: %w", tag, err)
	}
	base, _ := parsed.Base()
	return base, nil
}

// IsProtected reports whether the oracle tag names the protected language.
// Unparseable tags match nothing.
func (p TagPair) IsProtected(tag string) bool {
	base, err := parseBase(tag)
	return err == nil && base == p.protected
}

// IsSuppressed reports whether the oracle tag names the suppressed language.
func (p TagPair) IsSuppressed(tag string) bool {
	base, err := parseBase(tag)
	return err == nil && base == p.suppressed
}
