// Package postprocess removes common LLM artifacts from text fields that were
// already decoded from a model's JSON response.
//
// It never repairs JSON: the completion contract requires well-formed JSON,
// and cleanup only runs on string values extracted from it.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean tidies an adapted text and returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal ("Here is the adapted text:")
//  3. Quote wrapping removal
//  4. Paragraph break normalisation
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = removeQuoteWrapping(text)
	text = normalizeParagraphBreaks(text)
	return strings.TrimSpace(text)
}

// CleanField tidies a short single-value field such as a vocabulary word or
// its translation.
func CleanField(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return removeQuoteWrapping(text)
}

// --- Phase 1: thinking blocks ---

// Go's RE2 has no backreferences, so each tag pair is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opened tag with no closing tag: the model was cut off mid-thought.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// Anchored at the start and terminated by a colon so legitimate opening
// sentences are left alone.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the|your] [adapted|simplified|revised] [text|version|adaptation]:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your)? (?:adapted |simplified |revised )?(?:text|version|adaptation)\s*:`),
	// "[The] [adapted|simplified|revised] [text|version]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:adapted|simplified|revised) (?:text|version)\s*:`),
	// "Certainly / Sure / Of course[,] here is ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| your)? (?:adapted |simplified |revised )?(?:text|version|adaptation)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: quote wrapping ---

// removeQuoteWrapping strips one matching pair of outer quotes:
//
//	"…"  '…'  «…»  “…”  ‘…’
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}

// --- Phase 4: paragraph breaks ---

var blankRunRe = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)

// normalizeParagraphBreaks converts CRLF to LF and collapses any run of blank
// lines into exactly one blank line, the separator paragraphs are counted by.
func normalizeParagraphBreaks(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return blankRunRe.ReplaceAllString(text, "\n\n")
}
