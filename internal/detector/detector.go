// Package detector identifies the language a text is written in.
package detector

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
)

type Detector struct {
	detector  lingua.LanguageDetector
	languages []lingua.Language
}

// New builds a detector restricted to the named languages ("Spanish",
// "french", ...). With fewer than two names it considers every language
// lingua knows, since a single-language model cannot discriminate.
func New(names ...string) (*Detector, error) {
	langs := make([]lingua.Language, 0, len(names))
	for _, name := range names {
		lang, ok := LanguageByName(name)
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", name)
		}
		langs = append(langs, lang)
	}

	builder := lingua.NewLanguageDetectorBuilder()
	var detector lingua.LanguageDetector
	if len(langs) < 2 {
		detector = builder.FromAllLanguages().Build()
		langs = lingua.AllLanguages()
	} else {
		detector = builder.FromLanguages(langs...).Build()
	}

	return &Detector{detector: detector, languages: langs}, nil
}

// LanguageByName resolves an English language name, case-insensitively.
func LanguageByName(name string) (lingua.Language, bool) {
	name = strings.TrimSpace(name)
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.String(), name) {
			return lang, true
		}
	}
	return lingua.Unknown, false
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectName returns the English name of the detected language.
func (d *Detector) DetectName(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.String(), true
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// DetectTag returns the BCP 47 tag of the detected language.
func (d *Detector) DetectTag(text string) (language.Tag, bool) {
	code, ok := d.DetectISO(text)
	if !ok {
		return language.Und, false
	}
	tag, err := language.Parse(strings.ToLower(code))
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
