package internal

import (
	"errors"
	"strings"
)

// DefaultMotherTongue is used when a request does not name the learner's
// first language.
const DefaultMotherTongue = "English"

var (
	ErrEmptyText       = errors.New("original text is empty")
	ErrMissingLanguage = errors.New("target language is required")
	ErrMissingLevel    = errors.New("proficiency level is required")
)

type AdaptationRequest struct {
	OriginalText     string `json:"originalText"`
	TargetLanguage   string `json:"targetLanguage"`
	ProficiencyLevel string `json:"proficiencyLevel"`
	MotherTongue     string `json:"motherTongue"`
}

// Normalized returns a copy with surrounding whitespace removed from the
// labels and MotherTongue defaulted.
func (r AdaptationRequest) Normalized() AdaptationRequest {
	r.TargetLanguage = strings.TrimSpace(r.TargetLanguage)
	r.ProficiencyLevel = strings.TrimSpace(r.ProficiencyLevel)
	r.MotherTongue = strings.TrimSpace(r.MotherTongue)
	if r.MotherTongue == "" {
		r.MotherTongue = DefaultMotherTongue
	}
	return r
}

func (r AdaptationRequest) Validate() error {
	if strings.TrimSpace(r.OriginalText) == "" {
		return ErrEmptyText
	}
	if r.TargetLanguage == "" {
		return ErrMissingLanguage
	}
	if r.ProficiencyLevel == "" {
		return ErrMissingLevel
	}
	return nil
}

type VocabularyItem struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Difficulty  string `json:"difficulty,omitempty"`
	Context     string `json:"context,omitempty"`
}

type Metrics struct {
	TotalProcessingTimeMs int64 `json:"totalProcessingTimeMs"`
	PhasesCompleted       int   `json:"phasesCompleted"`
	RevisionCycles        int   `json:"revisionCycles"`
	Success               bool  `json:"success"`
}

type AdaptationResult struct {
	AdaptedText string           `json:"adaptedText"`
	Vocabulary  []VocabularyItem `json:"vocabulary"`
	Metrics     Metrics          `json:"metrics"`
}
