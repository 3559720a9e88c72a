// Package validator checks an adapted text against the targets it was
// produced for. Every check is advisory: a failed check is reported, never
// turned into an error.
package validator

import (
	"strings"

	"github.com/valpere/adaptran/internal/textstat"
)

// WordCountTolerance is the allowed distance between the adapted text's
// word count and its target.
const WordCountTolerance = 20

// minDetectionLength is the rune count below which language detection is
// too unreliable to report on.
const minDetectionLength = 20

type Report struct {
	WordCountValid              bool `json:"wordCountValid"`
	ParagraphStructurePreserved bool `json:"paragraphStructurePreserved"`
	ActualWordCount             int  `json:"actualWordCount"`
	TargetWordCount             int  `json:"targetWordCount"`
	ActualParagraphs            int  `json:"actualParagraphs"`
	OriginalParagraphs          int  `json:"originalParagraphs"`

	LanguageChecked  bool   `json:"languageChecked,omitempty"`
	LanguageMatches  bool   `json:"languageMatches,omitempty"`
	DetectedLanguage string `json:"detectedLanguage,omitempty"`
}

// ValidateAdaptation compares word and paragraph counts of an adapted text
// with its target word count and the original text.
func ValidateAdaptation(adapted, original string, targetWordCount int) Report {
	words := textstat.Words(adapted)
	diff := words - targetWordCount
	if diff < 0 {
		diff = -diff
	}

	actualParagraphs := textstat.ParagraphCount(adapted)
	originalParagraphs := textstat.ParagraphCount(original)

	return Report{
		WordCountValid:              diff <= WordCountTolerance,
		ParagraphStructurePreserved: actualParagraphs == originalParagraphs,
		ActualWordCount:             words,
		TargetWordCount:             targetWordCount,
		ActualParagraphs:            actualParagraphs,
		OriginalParagraphs:          originalParagraphs,
	}
}

// LanguageDetector names the language a text is written in.
type LanguageDetector interface {
	DetectName(text string) (string, bool)
}

// Validator adds a language check on top of ValidateAdaptation.
// The underlying detector is expensive to build; reuse the instance.
type Validator struct {
	det LanguageDetector
}

func New(det LanguageDetector) *Validator {
	return &Validator{det: det}
}

// Validate runs ValidateAdaptation and, when the text is long enough and
// its language can be determined, records whether it is written in
// targetLanguage.
func (v *Validator) Validate(adapted, original string, targetWordCount int, targetLanguage string) Report {
	report := ValidateAdaptation(adapted, original, targetWordCount)
	if v == nil || v.det == nil || targetLanguage == "" {
		return report
	}

	text := strings.TrimSpace(adapted)
	if len([]rune(text)) < minDetectionLength {
		return report
	}

	detected, ok := v.det.DetectName(text)
	if !ok {
		return report
	}

	report.LanguageChecked = true
	report.DetectedLanguage = detected
	report.LanguageMatches = strings.EqualFold(detected, strings.TrimSpace(targetLanguage))
	return report
}
