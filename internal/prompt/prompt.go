// Package prompt builds the user prompts for the three adaptation stages.
// Every prompt asks for a single JSON object; the expected shape is spelled
// out at the end of each prompt and mirrored by the response types in
// package completion.
package prompt

import (
	"fmt"
	"strings"

	"github.com/valpere/adaptran/internal/rules"
	"github.com/valpere/adaptran/internal/textstat"
)

// Vocabulary extraction bounds.
const (
	MinVocabulary = 5
	MaxVocabulary = 8
)

type AdaptationInput struct {
	OriginalText     string
	TargetLanguage   string
	ProficiencyLevel string
	CEFRLevel        string
	MotherTongue     string
	Rules            rules.LevelRules
	Universal        rules.UniversalLevel
	TargetWordCount  int

	// Feedback is the reviewer's feedback when this is a revision; empty on
	// the first attempt.
	Feedback string
}

func Adaptation(in AdaptationInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a specialist language teacher adapting text for %s level %s learners whose mother tongue is %s.\n\n",
		in.ProficiencyLevel, in.TargetLanguage, in.MotherTongue)

	sb.WriteString("ORIGINAL TEXT:\n")
	sb.WriteString(in.OriginalText)
	sb.WriteString("\n\n")

	sb.WriteString("ADAPTATION REQUIREMENTS:\n")
	fmt.Fprintf(&sb, "- Target word count: %d words (original: %d words)\n", in.TargetWordCount, textstat.Words(in.OriginalText))
	fmt.Fprintf(&sb, "- CRITICAL: Keep exactly %d paragraph(s), the same paragraph structure as the original\n", textstat.ParagraphCount(in.OriginalText))
	sb.WriteString("- CRITICAL: Separate paragraphs with a double line break (\\n\\n) exactly as in the original\n")
	fmt.Fprintf(&sb, "- Follow %s (%s) level constraints for %s\n\n", in.ProficiencyLevel, in.CEFRLevel, in.TargetLanguage)

	fmt.Fprintf(&sb, "LANGUAGE-SPECIFIC RULES FOR %s:\n", strings.ToUpper(in.TargetLanguage))
	sb.WriteString(FormatRules(in.Rules))
	sb.WriteString("\n")

	sb.WriteString("UNIVERSAL PRINCIPLES:\n")
	sb.WriteString(FormatUniversal(in.Universal))

	if fb := strings.TrimSpace(in.Feedback); fb != "" {
		sb.WriteString("\nREVIEWER FEEDBACK ON THE PREVIOUS ADAPTATION (address every point):\n")
		sb.WriteString(fb)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Adapt the text following these rules exactly. Respond ONLY with a JSON object, no markdown:
{
  "adaptedText": "the adapted text",
  "adaptationNotes": "brief notes about what you changed and why",
  "wordCount": actual_word_count,
  "paragraphCount": actual_paragraph_count
}`)

	return sb.String()
}

// FormatRules renders the non-empty rule lists one per line.
func FormatRules(lr rules.LevelRules) string {
	var sb strings.Builder
	writeList := func(label string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n", label, strings.Join(items, ", "))
		}
	}
	writeList("ALLOWED GRAMMAR", lr.AllowedGrammar)
	writeList("AVOID", lr.AvoidGrammar)
	writeList("VERB RESTRICTIONS", lr.VerbRestrictions)
	writeList("SPECIFIC RULES", lr.SpecificFeatures)
	return sb.String()
}

func FormatUniversal(u rules.UniversalLevel) string {
	subordination := "use " + u.Subordination
	if u.Subordination == "" || strings.EqualFold(u.Subordination, "none") {
		subordination = "avoid subordination"
	}
	return fmt.Sprintf("- Maximum sentence length: %d clauses\n- Vocabulary frequency: %s\n- Keep sentences simple and %s\n",
		u.MaxClauses, u.FrequencyBand, subordination)
}

type ReviewInput struct {
	OriginalText     string
	AdaptedText      string
	AdaptationNotes  string
	TargetLanguage   string
	ProficiencyLevel string
}

func Review(in ReviewInput) string {
	notes := strings.TrimSpace(in.AdaptationNotes)
	if notes == "" {
		notes = "(none)"
	}
	return fmt.Sprintf(`You are an experienced language teacher reviewing an adapted text. Evaluate whether this adaptation is appropriate for %s level %s learners.

ORIGINAL TEXT:
%s

ADAPTED TEXT:
%s

ADAPTATION NOTES:
%s

Review from a pedagogical perspective and decide whether to:
- APPROVE: the text is appropriate and well adapted
- REVISE: the text needs minor adjustments
- REJECT: the text needs significant rework

Respond ONLY with a JSON object, no markdown:
{
  "decision": "approve|revise|reject",
  "feedback": "specific feedback about what works and what needs improvement",
  "pedagogicalScore": score_from_0_to_1,
  "specificIssues": ["list", "of", "specific", "issues"]
}`,
		in.ProficiencyLevel, in.TargetLanguage,
		in.OriginalText,
		in.AdaptedText,
		notes,
	)
}

type VocabularyInput struct {
	AdaptedText      string
	TargetLanguage   string
	ProficiencyLevel string
	MotherTongue     string
}

func Vocabulary(in VocabularyInput) string {
	return fmt.Sprintf(`You are a vocabulary specialist. Extract new vocabulary from this %[2]s level %[1]s text that learners should learn. Provide translations in %[3]s.

TEXT:
%[4]s

Instructions:
- Identify %[5]d-%[6]d key vocabulary words appropriate for %[2]s level
- Focus on words that are important for comprehension
- EXCLUDE international words, cognates, and words similar to their %[3]s equivalent (e.g. "hospital", "restaurant", "computer")
- PRIORITIZE native %[1]s roots, cultural words and language-specific expressions
- EXCLUDE basic words that %[2]s learners should already know
- Provide clear, contextual translations in %[3]s

Respond ONLY with a JSON object, no markdown:
{
  "vocabulary": [
    {
      "word": "%[1]s word",
      "translation": "translation in %[3]s",
      "difficulty": "appropriate|challenging",
      "context": "how it is used in the text"
    }
  ]
}`,
		in.TargetLanguage, in.ProficiencyLevel, in.MotherTongue,
		in.AdaptedText,
		MinVocabulary, MaxVocabulary,
	)
}

var systemPrompts = map[string]string{
	"adaptation": "You are a professional language teacher specializing in text adaptation for language learners. You excel at simplifying texts while maintaining their meaning and educational value.",
	"review":     "You are an experienced language pedagogy expert who reviews adapted texts for appropriateness and educational effectiveness.",
	"vocabulary": "You are a vocabulary specialist who identifies key learning words and provides accurate, contextual translations.",
}

// System returns the system prompt for an agent. Unknown agents get a
// generic assistant prompt.
func System(agent string) string {
	if p, ok := systemPrompts[agent]; ok {
		return p
	}
	return "You are a helpful language learning assistant."
}
