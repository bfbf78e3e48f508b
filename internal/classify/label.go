package classify

// Label is the outcome of classifying one text.
type Label int

const (
	// LabelNeutral means evidence was absent or inconclusive.
	LabelNeutral Label = iota
	// LabelProtected marks the protected language variant; it outranks
	// LabelSuppressed wherever both could apply.
	LabelProtected
	// LabelSuppressed marks the language whose items are hidden.
	LabelSuppressed
)

func (l Label) String() string {
	switch l {
	case LabelProtected:
		return "protected"
	case LabelSuppressed:
		return "suppressed"
	case LabelNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// LabelFromInt converts a persisted numeric value back to a Label. Values
// outside the known range decode as neutral.
func LabelFromInt(v int) Label {
	switch Label(v) {
	case LabelProtected, LabelSuppressed:
		return Label(v)
	default:
		return LabelNeutral
	}
}
