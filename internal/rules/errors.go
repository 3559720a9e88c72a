package rules

import (
	"fmt"
	"strings"
)

// ConfigLoadError reports a rule or policy document that is missing or
// cannot be parsed. No adaptation can run without both documents.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load rule config %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// RuleNotFoundError reports a (language, level) pair absent from the rule
// set. It carries what is available so a casing or data mismatch can be
// diagnosed from the message alone.
// Language is the normalised lookup key; Requested is the name as the
// caller sent it.
type RuleNotFoundError struct {
	Language           string
	Requested          string
	Level              string
	AvailableLanguages []string
	AvailableLevels    []string
}

func (e *RuleNotFoundError) Error() string {
	levels := "none"
	if len(e.AvailableLevels) > 0 {
		levels = strings.Join(e.AvailableLevels, ", ")
	}
	name := fmt.Sprintf("%q", e.Language)
	if e.Requested != "" && e.Requested != e.Language {
		name = fmt.Sprintf("%q (looked up as %q)", e.Requested, e.Language)
	}
	return fmt.Sprintf("no rules found for %s at level %q (available languages: %s; available levels for %q: %s)",
		name, e.Level, strings.Join(e.AvailableLanguages, ", "), e.Language, levels)
}

// UnknownLevelError reports a proficiency label that is neither a known
// label (Beginner, Intermediate, Advanced) nor a supported CEFR code.
type UnknownLevelError struct {
	Level     string
	Supported []string
}

func (e *UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown proficiency level %q (supported: %s)", e.Level, strings.Join(e.Supported, ", "))
}
