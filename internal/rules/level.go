package rules

import "strings"

var levelLabels = []struct {
	label string
	cefr  string
}{
	{"Beginner", "A1"},
	{"Intermediate", "B1"},
	{"Advanced", "C1"},
}

// MapLevel converts a proficiency label to its CEFR code. Labels match
// case-insensitively, and a supported CEFR code (A1, B1, C1) is accepted
// as-is. Anything else is an *UnknownLevelError.
func MapLevel(label string) (string, error) {
	key := strings.TrimSpace(label)
	for _, l := range levelLabels {
		if strings.EqualFold(key, l.label) || strings.EqualFold(key, l.cefr) {
			return l.cefr, nil
		}
	}
	return "", &UnknownLevelError{Level: label, Supported: SupportedLevels()}
}

// SupportedLevels lists the accepted proficiency labels in ascending order.
func SupportedLevels() []string {
	out := make([]string, 0, len(levelLabels))
	for _, l := range levelLabels {
		out = append(out, l.label)
	}
	return out
}
