package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/postprocess"
)

type AdaptationResponse struct {
	AdaptedText     string `json:"adaptedText"`
	AdaptationNotes string `json:"adaptationNotes"`
	WordCount       int    `json:"wordCount,omitempty"`
	ParagraphCount  int    `json:"paragraphCount,omitempty"`
}

type ReviewResponse struct {
	Decision         string   `json:"decision"`
	Feedback         string   `json:"feedback"`
	PedagogicalScore float64  `json:"pedagogicalScore,omitempty"`
	SpecificIssues   []string `json:"specificIssues,omitempty"`
}

type VocabularyResponse struct {
	Vocabulary []internal.VocabularyItem `json:"vocabulary"`
}

func decodeAdaptation(raw json.RawMessage) (*AdaptationResponse, error) {
	var resp AdaptationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	resp.AdaptedText = postprocess.Clean(resp.AdaptedText)
	if resp.AdaptedText == "" {
		return nil, errors.New(`missing "adaptedText"`)
	}
	resp.AdaptationNotes = strings.TrimSpace(resp.AdaptationNotes)
	return &resp, nil
}

func decodeReview(raw json.RawMessage) (*ReviewResponse, error) {
	var resp ReviewResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	resp.Decision = strings.TrimSpace(resp.Decision)
	if resp.Decision == "" {
		return nil, errors.New(`missing "decision"`)
	}
	resp.Feedback = strings.TrimSpace(resp.Feedback)
	return &resp, nil
}

func decodeVocabulary(raw json.RawMessage) (*VocabularyResponse, error) {
	var wire struct {
		Vocabulary *[]internal.VocabularyItem `json:"vocabulary"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	if wire.Vocabulary == nil {
		return nil, errors.New(`missing "vocabulary"`)
	}

	items := make([]internal.VocabularyItem, 0, len(*wire.Vocabulary))
	for i, item := range *wire.Vocabulary {
		item.Word = postprocess.CleanField(item.Word)
		item.Translation = postprocess.CleanField(item.Translation)
		item.Difficulty = strings.TrimSpace(item.Difficulty)
		item.Context = strings.TrimSpace(item.Context)
		if item.Word == "" || item.Translation == "" {
			return nil, fmt.Errorf("vocabulary[%d]: word and translation are required", i)
		}
		items = append(items, item)
	}
	return &VocabularyResponse{Vocabulary: items}, nil
}
