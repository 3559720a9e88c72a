// Package rules loads the per-language, per-level grammar constraints and
// the workflow policy that drive text adaptation.
//
// A Store is built once at startup by Load and is read-only afterwards, so
// any number of concurrent workflows may query it without locking.
package rules

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultShortTextThreshold = 200
	defaultMaxRevisionCycles  = 2
)

// LevelRules are the grammar and vocabulary constraints for one language at
// one CEFR level.
type LevelRules struct {
	AllowedGrammar   []string `yaml:"allowed_grammar" json:"allowedGrammar,omitempty"`
	AvoidGrammar     []string `yaml:"avoid_grammar" json:"avoidGrammar,omitempty"`
	VerbRestrictions []string `yaml:"verb_restrictions" json:"verbRestrictions,omitempty"`
	SpecificFeatures []string `yaml:"specific_features" json:"specificFeatures,omitempty"`
}

type Language struct {
	Name   string                `yaml:"name"`
	Levels map[string]LevelRules `yaml:"levels"`
}

type frequencyRule struct {
	FrequencyBand string `yaml:"frequency_band"`
}

type complexityRule struct {
	MaxClauses    int    `yaml:"max_clauses"`
	Subordination string `yaml:"subordination"`
}

type UniversalPrinciples struct {
	VocabularyFrequency map[string]frequencyRule  `yaml:"vocabulary_frequency"`
	SentenceComplexity  map[string]complexityRule `yaml:"sentence_complexity"`
}

// UniversalLevel is the language-independent guidance for one CEFR level.
type UniversalLevel struct {
	FrequencyBand string
	MaxClauses    int
	Subordination string
}

// RuleSet is the parsed linguistic rules document.
type RuleSet struct {
	Languages           map[string]Language `yaml:"languages"`
	UniversalPrinciples UniversalPrinciples `yaml:"universal_principles"`
}

// Policy is the resolved workflow policy.
type Policy struct {
	ShortTextThreshold       int
	ShortTextTarget          int
	LongTextReductionPercent float64
	MaxRevisionCycles        int
}

type policyDocument struct {
	Requirements struct {
		WordCount struct {
			ShortTexts struct {
				Threshold int `yaml:"threshold"`
				Target    int `yaml:"target"`
			} `yaml:"short_texts"`
			LongTexts struct {
				ReductionPercent float64 `yaml:"reduction_percent"`
			} `yaml:"long_texts"`
		} `yaml:"word_count"`
	} `yaml:"requirements"`
	Workflows struct {
		TextAdaptation struct {
			MaxRevisionCycles *int `yaml:"max_revision_cycles"`
		} `yaml:"text_adaptation"`
	} `yaml:"workflows"`
}

type Store struct {
	rules  RuleSet
	policy Policy
}

// Load reads the rules document at rulesPath and the workflow policy at
// policyPath. Either file missing or malformed yields a *ConfigLoadError.
func Load(rulesPath, policyPath string) (*Store, error) {
	rs, err := loadRuleSet(rulesPath)
	if err != nil {
		return nil, err
	}
	policy, err := loadPolicy(policyPath)
	if err != nil {
		return nil, err
	}
	return New(rs, policy), nil
}

// New builds a Store from already-parsed data. Language keys are lowercased
// and level keys uppercased so lookups are insensitive to document casing.
func New(rs RuleSet, policy Policy) *Store {
	langs := make(map[string]Language, len(rs.Languages))
	for key, lang := range rs.Languages {
		levels := make(map[string]LevelRules, len(lang.Levels))
		for lvl, lr := range lang.Levels {
			levels[strings.ToUpper(strings.TrimSpace(lvl))] = lr
		}
		lang.Levels = levels
		langs[strings.ToLower(strings.TrimSpace(key))] = lang
	}
	rs.Languages = langs
	rs.UniversalPrinciples.VocabularyFrequency = upperKeys(rs.UniversalPrinciples.VocabularyFrequency)
	rs.UniversalPrinciples.SentenceComplexity = upperKeys(rs.UniversalPrinciples.SentenceComplexity)
	return &Store{rules: rs, policy: policy}
}

func upperKeys[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

func loadRuleSet(path string) (RuleSet, error) {
	var rs RuleSet
	data, err := os.ReadFile(path)
	if err != nil {
		return rs, &ConfigLoadError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return rs, &ConfigLoadError{Path: path, Err: err}
	}
	if len(rs.Languages) == 0 {
		return rs, &ConfigLoadError{Path: path, Err: errors.New("no languages defined")}
	}
	for name, lang := range rs.Languages {
		if len(lang.Levels) == 0 {
			return rs, &ConfigLoadError{Path: path, Err: fmt.Errorf("language %q has no levels", name)}
		}
	}
	return rs, nil
}

func loadPolicy(path string) (Policy, error) {
	var doc policyDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, &ConfigLoadError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Policy{}, &ConfigLoadError{Path: path, Err: err}
	}

	wc := doc.Requirements.WordCount
	p := Policy{
		ShortTextThreshold:       wc.ShortTexts.Threshold,
		ShortTextTarget:          wc.ShortTexts.Target,
		LongTextReductionPercent: wc.LongTexts.ReductionPercent,
		MaxRevisionCycles:        defaultMaxRevisionCycles,
	}
	if p.ShortTextThreshold == 0 {
		p.ShortTextThreshold = defaultShortTextThreshold
	}
	// Zero means unset, as with the short-text threshold.
	if mrc := doc.Workflows.TextAdaptation.MaxRevisionCycles; mrc != nil && *mrc != 0 {
		p.MaxRevisionCycles = *mrc
	}

	if err := p.Validate(); err != nil {
		return Policy{}, &ConfigLoadError{Path: path, Err: err}
	}
	return p, nil
}

func (p Policy) Validate() error {
	switch {
	case p.ShortTextTarget <= 0:
		return errors.New("requirements.word_count.short_texts.target must be positive")
	case p.ShortTextThreshold <= 0:
		return errors.New("requirements.word_count.short_texts.threshold must be positive")
	case p.LongTextReductionPercent < 0 || p.LongTextReductionPercent >= 100:
		return errors.New("requirements.word_count.long_texts.reduction_percent must be in [0, 100)")
	case p.MaxRevisionCycles < 0:
		return errors.New("workflows.text_adaptation.max_revision_cycles must not be negative")
	}
	return nil
}

// Lookup returns the rules for language at cefrLevel. The language is
// matched case-insensitively.
func (s *Store) Lookup(language, cefrLevel string) (LevelRules, error) {
	key := strings.ToLower(strings.TrimSpace(language))
	level := strings.ToUpper(strings.TrimSpace(cefrLevel))

	lang, ok := s.rules.Languages[key]
	if !ok {
		return LevelRules{}, &RuleNotFoundError{
			Language:           key,
			Requested:          language,
			Level:              level,
			AvailableLanguages: s.Languages(),
		}
	}
	lr, ok := lang.Levels[level]
	if !ok {
		return LevelRules{}, &RuleNotFoundError{
			Language:           key,
			Requested:          language,
			Level:              level,
			AvailableLanguages: s.Languages(),
			AvailableLevels:    sortedKeys(lang.Levels),
		}
	}
	return lr, nil
}

// Universal returns the language-independent principles for cefrLevel.
func (s *Store) Universal(cefrLevel string) (UniversalLevel, error) {
	level := strings.ToUpper(strings.TrimSpace(cefrLevel))
	up := s.rules.UniversalPrinciples

	freq, okFreq := up.VocabularyFrequency[level]
	cx, okCx := up.SentenceComplexity[level]
	if !okFreq || !okCx {
		return UniversalLevel{}, &RuleNotFoundError{
			Language:           "universal_principles",
			Level:              level,
			AvailableLanguages: s.Languages(),
			AvailableLevels:    sortedKeys(up.SentenceComplexity),
		}
	}
	return UniversalLevel{
		FrequencyBand: freq.FrequencyBand,
		MaxClauses:    cx.MaxClauses,
		Subordination: cx.Subordination,
	}, nil
}

// Languages returns the lowercased language keys, sorted.
func (s *Store) Languages() []string {
	return sortedKeys(s.rules.Languages)
}

// Levels returns the CEFR levels defined for language, sorted. It returns
// nil for an unknown language.
func (s *Store) Levels(language string) []string {
	lang, ok := s.rules.Languages[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return nil
	}
	return sortedKeys(lang.Levels)
}

// DisplayName returns the document's display name for language, falling
// back to the key itself.
func (s *Store) DisplayName(language string) string {
	key := strings.ToLower(strings.TrimSpace(language))
	if lang, ok := s.rules.Languages[key]; ok && lang.Name != "" {
		return lang.Name
	}
	return key
}

func (s *Store) Policy() Policy { return s.policy }

func (s *Store) MaxRevisionCycles() int { return s.policy.MaxRevisionCycles }

// TargetWordCount returns the word count an adaptation should aim for.
// Texts shorter than the short-text threshold get the fixed short-text
// target; longer texts are reduced by the configured percentage.
func (s *Store) TargetWordCount(originalWords int) int {
	if originalWords < s.policy.ShortTextThreshold {
		return s.policy.ShortTextTarget
	}
	factor := 1 - s.policy.LongTextReductionPercent/100
	return int(math.Round(float64(originalWords) * factor))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
