package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/rules"
)

func TestMain(m *testing.M) {
	// genai's transport dependencies start an opencensus worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type stubRules struct {
	maxCycles int
}

func (s stubRules) Lookup(language, cefrLevel string) (rules.LevelRules, error) {
	if strings.EqualFold(language, "spanish") && (cefrLevel == "A1" || cefrLevel == "B1") {
		return rules.LevelRules{AllowedGrammar: []string{"present tense"}}, nil
	}
	return rules.LevelRules{}, &rules.RuleNotFoundError{
		Language:           strings.ToLower(language),
		Level:              cefrLevel,
		AvailableLanguages: []string{"spanish"},
		AvailableLevels:    []string{"A1", "B1"},
	}
}

func (s stubRules) Universal(string) (rules.UniversalLevel, error) {
	return rules.UniversalLevel{FrequencyBand: "top 1000", MaxClauses: 1, Subordination: "None"}, nil
}

func (s stubRules) TargetWordCount(int) int { return 150 }

func (s stubRules) MaxRevisionCycles() int { return s.maxCycles }

// stubCompleter answers each agent from a script. The n passed to a script
// function is the zero-based call count for that agent.
type stubCompleter struct {
	mu            sync.Mutex
	adaptPrompts  []string
	reviewPrompts []string
	vocabPrompts  []string

	adapt  func(n int) (*completion.AdaptationResponse, error)
	review func(n int) (*completion.ReviewResponse, error)
	vocab  func() (*completion.VocabularyResponse, error)
}

func (s *stubCompleter) Adapt(_ context.Context, p string) (*completion.AdaptationResponse, error) {
	s.mu.Lock()
	n := len(s.adaptPrompts)
	s.adaptPrompts = append(s.adaptPrompts, p)
	s.mu.Unlock()
	if s.adapt != nil {
		return s.adapt(n)
	}
	return &completion.AdaptationResponse{
		AdaptedText:     fmt.Sprintf("El gato duerme. Versión %d.\n\nEl perro ladra.", n+1),
		AdaptationNotes: "simplified verbs",
	}, nil
}

func (s *stubCompleter) Review(_ context.Context, p string) (*completion.ReviewResponse, error) {
	s.mu.Lock()
	n := len(s.reviewPrompts)
	s.reviewPrompts = append(s.reviewPrompts, p)
	s.mu.Unlock()
	if s.review != nil {
		return s.review(n)
	}
	return &completion.ReviewResponse{Decision: "approve", Feedback: "well adapted"}, nil
}

func (s *stubCompleter) ExtractVocabulary(_ context.Context, p string) (*completion.VocabularyResponse, error) {
	s.mu.Lock()
	s.vocabPrompts = append(s.vocabPrompts, p)
	s.mu.Unlock()
	if s.vocab != nil {
		return s.vocab()
	}
	return &completion.VocabularyResponse{Vocabulary: []internal.VocabularyItem{
		{Word: "gato", Translation: "cat"},
		{Word: "perro", Translation: "dog"},
	}}, nil
}

func alwaysRevise(int) (*completion.ReviewResponse, error) {
	return &completion.ReviewResponse{Decision: "revise", Feedback: "Use simpler verbs"}, nil
}

func testRequest() internal.AdaptationRequest {
	return internal.AdaptationRequest{
		OriginalText:     "The cat sleeps on the sofa.\n\nThe dog barks at the mailman.",
		TargetLanguage:   "Spanish",
		ProficiencyLevel: "Beginner",
	}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestOrchestrator(t *testing.T, maxCycles int, c Completer, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(stubRules{maxCycles: maxCycles}, c, opts...)
}

func phaseSummary(wf *Workflow) []string {
	out := make([]string, 0, len(wf.Phases))
	for _, p := range wf.Phases {
		s := fmt.Sprintf("%s:%s", p.Phase, p.Status)
		if p.Phase == PhaseReview {
			s = fmt.Sprintf("%s#%d:%s", p.Phase, p.Cycle, p.Status)
		}
		out = append(out, s)
	}
	return out
}

func TestRun_Approve(t *testing.T) {
	stub := &stubCompleter{}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	require.True(t, out.Success, out.Error)
	require.NotNil(t, out.Result)
	assert.Empty(t, out.Error)
	assert.NotEmpty(t, out.WorkflowID)
	assert.Equal(t, "El gato duerme. Versión 1.\n\nEl perro ladra.", out.Result.AdaptedText)
	assert.Len(t, out.Result.Vocabulary, 2)

	assert.Equal(t, []string{"adaptation:completed", "review#0:completed", "vocabulary:completed"}, phaseSummary(out.Workflow))
	assert.Equal(t, internal.Metrics{
		TotalProcessingTimeMs: out.Result.Metrics.TotalProcessingTimeMs,
		PhasesCompleted:       3,
		RevisionCycles:        0,
		Success:               true,
	}, out.Result.Metrics)

	wf := out.Workflow
	assert.Equal(t, StatusCompleted, wf.Status)
	assert.Equal(t, out.WorkflowID, wf.ID)
	assert.Equal(t, "English", wf.Input.MotherTongue)
	assert.Same(t, out.Result, wf.Result)
	assert.False(t, wf.EndTime.Before(wf.StartTime))

	adaptation := wf.Phases[0]
	require.NotNil(t, adaptation.Validation)
	assert.Equal(t, 150, adaptation.Validation.TargetWordCount)
	assert.True(t, adaptation.Validation.ParagraphStructurePreserved)
	assert.False(t, adaptation.Validation.WordCountValid)
}

func TestRun_AlwaysReviseStopsAtLimit(t *testing.T) {
	stub := &stubCompleter{review: alwaysRevise}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	require.True(t, out.Success, out.Error)
	assert.Equal(t, []string{
		"adaptation:completed",
		"review#0:completed",
		"adaptation:completed",
		"review#1:completed",
		"adaptation:completed",
		"review#2:completed",
		"vocabulary:completed",
	}, phaseSummary(out.Workflow))

	assert.Equal(t, 2, out.Result.Metrics.RevisionCycles)
	assert.Equal(t, 7, out.Result.Metrics.PhasesCompleted)
	assert.Equal(t, "El gato duerme. Versión 3.\n\nEl perro ladra.", out.Result.AdaptedText)

	require.Len(t, stub.adaptPrompts, 3)
	assert.NotContains(t, stub.adaptPrompts[0], "Use simpler verbs")
	assert.Contains(t, stub.adaptPrompts[1], "Use simpler verbs")
	assert.Contains(t, stub.adaptPrompts[2], "Use simpler verbs")
	require.Len(t, stub.vocabPrompts, 1)
	assert.Contains(t, stub.vocabPrompts[0], "Versión 3")
}

func TestRun_RevisionCycles(t *testing.T) {
	tests := []struct {
		name         string
		maxCycles    int
		decisions    []string
		wantReviews  int
		wantRevision int
	}{
		{"approve first", 2, []string{"approve"}, 1, 0},
		{"revise then approve", 2, []string{"revise", "approve"}, 2, 1},
		{"reject then approve", 2, []string{"reject", "approve"}, 2, 1},
		{"zero limit", 0, []string{"revise"}, 1, 0},
		{"limit of one", 1, []string{"reject", "reject"}, 2, 1},
		{"mixed case decision", 2, []string{"Revise", "APPROVE"}, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{review: func(n int) (*completion.ReviewResponse, error) {
				return &completion.ReviewResponse{Decision: tt.decisions[n], Feedback: "fb"}, nil
			}}
			out := newTestOrchestrator(t, tt.maxCycles, stub).Run(context.Background(), testRequest())

			require.True(t, out.Success, out.Error)
			assert.Equal(t, tt.wantReviews, out.Workflow.Count(PhaseReview))
			assert.Equal(t, tt.wantRevision, out.Result.Metrics.RevisionCycles)
			assert.Equal(t, tt.wantRevision+1, out.Workflow.Count(PhaseAdaptation))
		})
	}
}

func TestRun_VocabularyFailure(t *testing.T) {
	stub := &stubCompleter{vocab: func() (*completion.VocabularyResponse, error) {
		return nil, &completion.ServiceUnavailableError{Agent: completion.AgentVocabulary, StatusCode: 503}
	}}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	assert.False(t, out.Success)
	assert.Nil(t, out.Result)
	assert.NotEmpty(t, out.Error)
	assert.NotEmpty(t, out.WorkflowID)

	var unavailable *completion.ServiceUnavailableError
	require.ErrorAs(t, out.Err, &unavailable)

	wf := out.Workflow
	assert.Equal(t, StatusFailed, wf.Status)
	assert.Equal(t, PhaseVocabulary, wf.CurrentPhase)
	assert.Equal(t, out.Error, wf.Error)
	assert.Nil(t, wf.Result)
	assert.Equal(t, []string{"adaptation:completed", "review#0:completed", "vocabulary:failed"}, phaseSummary(wf))
	assert.NotEmpty(t, wf.Phases[2].Error)
}

func TestRun_AdaptationFailure(t *testing.T) {
	stub := &stubCompleter{adapt: func(int) (*completion.AdaptationResponse, error) {
		return nil, &completion.MalformedResponseError{Agent: completion.AgentAdaptation, Err: errors.New("bad json")}
	}}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	assert.False(t, out.Success)
	var malformed *completion.MalformedResponseError
	require.ErrorAs(t, out.Err, &malformed)
	assert.Equal(t, []string{"adaptation:failed"}, phaseSummary(out.Workflow))
	assert.Empty(t, stub.reviewPrompts)
}

func TestRun_RevisionFailure(t *testing.T) {
	stub := &stubCompleter{
		review: alwaysRevise,
		adapt: func(n int) (*completion.AdaptationResponse, error) {
			if n > 0 {
				return nil, &completion.ServiceUnavailableError{Agent: completion.AgentAdaptation, Err: context.DeadlineExceeded}
			}
			return &completion.AdaptationResponse{AdaptedText: "Hola."}, nil
		},
	}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Equal(t, []string{"adaptation:completed", "review#0:completed", "adaptation:failed"}, phaseSummary(out.Workflow))
}

func TestRun_UnknownReviewDecision(t *testing.T) {
	stub := &stubCompleter{review: func(int) (*completion.ReviewResponse, error) {
		return &completion.ReviewResponse{Decision: "maybe"}, nil
	}}
	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), testRequest())

	assert.False(t, out.Success)
	var unknown *UnknownReviewDecisionError
	require.ErrorAs(t, out.Err, &unknown)
	assert.Equal(t, "maybe", unknown.Decision)
	assert.Equal(t, 0, unknown.Cycle)

	assert.Equal(t, []string{"adaptation:completed", "review#0:failed"}, phaseSummary(out.Workflow))
	review := out.Workflow.Phases[1]
	require.NotNil(t, review.Review)
	assert.Equal(t, "maybe", review.Review.Decision)
	assert.Empty(t, stub.vocabPrompts)
}

func TestRun_RuleErrors(t *testing.T) {
	tests := []struct {
		name     string
		language string
		level    string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unknown language",
			language: "Klingon",
			level:    "Beginner",
			check: func(t *testing.T, err error) {
				var notFound *rules.RuleNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "klingon", notFound.Language)
				assert.Equal(t, []string{"spanish"}, notFound.AvailableLanguages)
			},
		},
		{
			name:     "level missing for language",
			language: "Spanish",
			level:    "Advanced",
			check: func(t *testing.T, err error) {
				var notFound *rules.RuleNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "C1", notFound.Level)
			},
		},
		{
			name:     "unknown level label",
			language: "Spanish",
			level:    "Expert",
			check: func(t *testing.T, err error) {
				var unknown *rules.UnknownLevelError
				require.ErrorAs(t, err, &unknown)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{}
			req := testRequest()
			req.TargetLanguage = tt.language
			req.ProficiencyLevel = tt.level

			out := newTestOrchestrator(t, 2, stub).Run(context.Background(), req)

			assert.False(t, out.Success)
			tt.check(t, out.Err)
			assert.Equal(t, []string{"adaptation:failed"}, phaseSummary(out.Workflow))
			assert.Empty(t, stub.adaptPrompts)
		})
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	stub := &stubCompleter{}
	req := testRequest()
	req.OriginalText = "  \n "

	out := newTestOrchestrator(t, 2, stub).Run(context.Background(), req)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, internal.ErrEmptyText)
	assert.Empty(t, out.Workflow.Phases)
	assert.Equal(t, StatusFailed, out.Workflow.Status)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubCompleter{}
	out := newTestOrchestrator(t, 2, stub).Run(ctx, testRequest())

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, []string{"adaptation:failed"}, phaseSummary(out.Workflow))
	assert.Empty(t, stub.adaptPrompts)
}

func TestRun_Observer(t *testing.T) {
	var seen []*Workflow
	observer := WithObserver(func(wf *Workflow) { seen = append(seen, wf) })

	ok := newTestOrchestrator(t, 2, &stubCompleter{}, observer).Run(context.Background(), testRequest())
	failed := newTestOrchestrator(t, 2, &stubCompleter{review: func(int) (*completion.ReviewResponse, error) {
		return nil, errors.New("boom")
	}}, observer).Run(context.Background(), testRequest())

	require.Len(t, seen, 2)
	assert.Same(t, ok.Workflow, seen[0])
	assert.Equal(t, StatusCompleted, seen[0].Status)
	assert.Same(t, failed.Workflow, seen[1])
	assert.Equal(t, StatusFailed, seen[1].Status)
}

func TestRun_Clock(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return t0.Add(time.Duration(calls) * 100 * time.Millisecond)
	}

	out := newTestOrchestrator(t, 2, &stubCompleter{}, WithClock(clock)).Run(context.Background(), testRequest())

	require.True(t, out.Success)
	wf := out.Workflow
	assert.Equal(t, wf.EndTime.Sub(wf.StartTime).Milliseconds(), out.Result.Metrics.TotalProcessingTimeMs)
	assert.Positive(t, out.Result.Metrics.TotalProcessingTimeMs)
	for _, p := range wf.Phases {
		assert.Equal(t, int64(100), p.DurationMs, p.Phase)
	}
}

type fakeDetector struct{ lang string }

func (f fakeDetector) DetectName(string) (string, bool) { return f.lang, true }

func TestRun_LanguageCheck(t *testing.T) {
	stub := &stubCompleter{adapt: func(int) (*completion.AdaptationResponse, error) {
		return &completion.AdaptationResponse{AdaptedText: "Il gatto dorme sul divano.\n\nIl cane abbaia."}, nil
	}}
	out := newTestOrchestrator(t, 2, stub, WithLanguageCheck(fakeDetector{"Italian"})).Run(context.Background(), testRequest())

	require.True(t, out.Success, "language check is advisory")
	report := out.Workflow.Phases[0].Validation
	require.NotNil(t, report)
	assert.True(t, report.LanguageChecked)
	assert.False(t, report.LanguageMatches)
	assert.Equal(t, "Italian", report.DetectedLanguage)
}

func TestRun_Idempotent(t *testing.T) {
	run := func() *Outcome {
		stub := &stubCompleter{review: func(n int) (*completion.ReviewResponse, error) {
			if n == 0 {
				return &completion.ReviewResponse{Decision: "revise", Feedback: "shorter"}, nil
			}
			return &completion.ReviewResponse{Decision: "approve"}, nil
		}}
		return newTestOrchestrator(t, 2, stub, WithClock(fixedClock())).Run(context.Background(), testRequest())
	}

	first, second := run(), run()
	require.True(t, first.Success)
	assert.NotEqual(t, first.WorkflowID, second.WorkflowID)

	opts := cmp.Options{
		cmpopts.IgnoreFields(Outcome{}, "WorkflowID"),
		cmpopts.IgnoreFields(Workflow{}, "ID"),
	}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRun_Concurrent(t *testing.T) {
	o := newTestOrchestrator(t, 2, &stubCompleter{})

	const n = 16
	outcomes := make([]*Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = o.Run(context.Background(), testRequest())
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool, n)
	for _, out := range outcomes {
		require.True(t, out.Success, out.Error)
		assert.Len(t, out.Workflow.Phases, 3)
		ids[out.WorkflowID] = true
	}
	assert.Len(t, ids, n)
}
