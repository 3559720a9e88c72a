package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/adaptran/internal"
)

func TestReadBatchAppliesDefaults(t *testing.T) {
	batchLanguage, batchLevel, batchMotherTongue = "Spanish", "Beginner", "English"
	t.Cleanup(func() { batchLanguage, batchLevel, batchMotherTongue = "", "", "English" })

	input := `{"text":"Uno."}

{"text":"Dos.","language":"French","level":"B1","motherTongue":"German"}
`
	reqs, err := readBatch(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, 1, reqs[0].line)
	assert.Equal(t, internal.AdaptationRequest{
		OriginalText:     "Uno.",
		TargetLanguage:   "Spanish",
		ProficiencyLevel: "Beginner",
		MotherTongue:     "English",
	}, reqs[0].req)

	assert.Equal(t, 3, reqs[1].line)
	assert.Equal(t, "French", reqs[1].req.TargetLanguage)
	assert.Equal(t, "B1", reqs[1].req.ProficiencyLevel)
	assert.Equal(t, "German", reqs[1].req.MotherTongue)
}

func TestReadBatchInvalidLine(t *testing.T) {
	_, err := readBatch(strings.NewReader("{\"text\":\"ok\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{formatText, formatJSON, formatHTML} {
		assert.NoError(t, checkFormat(f))
	}
	assert.Error(t, checkFormat("pdf"))
}

func TestRenderText(t *testing.T) {
	got := renderText(&internal.AdaptationResult{
		AdaptedText: "  El gato duerme.\n\nLa casa es grande.  ",
		Vocabulary: []internal.VocabularyItem{
			{Word: "gato", Translation: "cat", Difficulty: "A1", Context: "El gato duerme."},
			{Word: "casa", Translation: "house"},
		},
	})

	want := "El gato duerme.\n\nLa casa es grande.\n" +
		"\nVocabulary:\n" +
		"  gato - cat (A1)\n" +
		"      El gato duerme.\n" +
		"  casa - house\n"
	assert.Equal(t, want, got)
}

func TestNewAdaptationOutput(t *testing.T) {
	failed := newAdaptationOutput(&adaptation{WorkflowID: "wf-1"}, errors.New("boom"))
	assert.False(t, failed.Success)
	assert.Equal(t, "wf-1", failed.WorkflowID)
	assert.Equal(t, "boom", failed.Error)
	assert.Nil(t, failed.Metrics)

	ok := newAdaptationOutput(&adaptation{
		WorkflowID: "wf-2",
		Cached:     true,
		Result:     &internal.AdaptationResult{AdaptedText: "Hola.", Metrics: internal.Metrics{Success: true}},
	}, nil)
	assert.True(t, ok.Success)
	assert.True(t, ok.Cached)
	assert.Equal(t, "Hola.", ok.AdaptedText)
	require.NotNil(t, ok.Metrics)
	assert.True(t, ok.Metrics.Success)
}
