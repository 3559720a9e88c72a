// Package markdown converts between Markdown and the plain paragraphs the
// adaptation workflow works on, and renders results as HTML.
package markdown

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/textstat"
)

// ToHTML renders Markdown. Raw HTML in the source is dropped, since model
// output is untrusted.
func ToHTML(md []byte) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

// ToPlainText strips Markdown formatting paragraph by paragraph, keeping a
// blank line between paragraphs so the structure survives adaptation.
func ToPlainText(md []byte) string {
	paragraphs := textstat.Paragraphs(string(md))
	out := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		text := stdhtml.UnescapeString(StripHTMLTags(ToHTML([]byte(para))))
		text = strings.Join(strings.Fields(text), " ")
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n\n")
}

// RenderAdaptation renders an adapted text followed by its vocabulary as a
// table.
func RenderAdaptation(adapted string, vocabulary []internal.VocabularyItem) string {
	var sb strings.Builder
	sb.WriteString(adapted)

	if len(vocabulary) > 0 {
		sb.WriteString("\n\n### Vocabulary\n\n")
		sb.WriteString("| Word | Translation | Difficulty | Context |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, item := range vocabulary {
			sb.WriteString("| ")
			sb.WriteString(tableCell(item.Word))
			sb.WriteString(" | ")
			sb.WriteString(tableCell(item.Translation))
			sb.WriteString(" | ")
			sb.WriteString(tableCell(item.Difficulty))
			sb.WriteString(" | ")
			sb.WriteString(tableCell(item.Context))
			sb.WriteString(" |\n")
		}
	}

	return ToHTML([]byte(sb.String()))
}

func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func StripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(ch)
			}
		}
	}

	return result.String()
}
