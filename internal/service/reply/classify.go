package reply

import "strings"

// Intent is the classification outcome of an inbound reply text.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentCancel  Intent = "cancel"
	IntentNone    Intent = "none"
)

// Classify maps free-form reply text to an intent. Matching is
// case-insensitive on the trimmed text; anything unrecognized is a no-op.
func Classify(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return IntentNone
	}

	switch {
	case strings.Contains(t, "cancelar"), strings.Contains(t, "não"), strings.Contains(t, "nao"):
		return IntentCancel
	case t == "s", strings.Contains(t, "sim"):
		return IntentConfirm
	default:
		return IntentNone
	}
}
