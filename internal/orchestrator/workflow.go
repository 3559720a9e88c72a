package orchestrator

import (
	"fmt"
	"time"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/validator"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Phase string

const (
	PhaseAdaptation Phase = "adaptation"
	PhaseReview     Phase = "review"
	PhaseVocabulary Phase = "vocabulary"
)

// Workflow is the record of one adaptation run. It is owned by the Run call
// that created it and is not modified after Run returns.
type Workflow struct {
	ID           string                     `json:"id"`
	StartTime    time.Time                  `json:"startTime"`
	EndTime      time.Time                  `json:"endTime"`
	Input        internal.AdaptationRequest `json:"input"`
	Status       Status                     `json:"status"`
	CurrentPhase Phase                      `json:"currentPhase,omitempty"`
	Phases       []PhaseRecord              `json:"phases"`
	Result       *internal.AdaptationResult `json:"result,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// PhaseRecord is appended for every phase attempt, successful or not.
// Cycle is only meaningful for review records.
type PhaseRecord struct {
	Phase      Phase                          `json:"phase"`
	Cycle      int                            `json:"cycle"`
	Status     Status                         `json:"status"`
	DurationMs int64                          `json:"durationMs"`
	Adaptation *completion.AdaptationResponse `json:"adaptation,omitempty"`
	Validation *validator.Report              `json:"validation,omitempty"`
	Review     *completion.ReviewResponse     `json:"review,omitempty"`
	Vocabulary *completion.VocabularyResponse `json:"vocabulary,omitempty"`
	Error      string                         `json:"error,omitempty"`
}

// Count returns the number of records for phase.
func (w *Workflow) Count(phase Phase) int {
	n := 0
	for _, p := range w.Phases {
		if p.Phase == phase {
			n++
		}
	}
	return n
}

// RevisionCycles is the number of re-adaptations the reviewer asked for:
// every review after the first follows one.
func (w *Workflow) RevisionCycles() int {
	if n := w.Count(PhaseReview); n > 1 {
		return n - 1
	}
	return 0
}

// Outcome is what Run reports to its caller. A failed run is an Outcome
// with Success false, not an error.
type Outcome struct {
	Success    bool                       `json:"success"`
	Result     *internal.AdaptationResult `json:"result,omitempty"`
	Error      string                     `json:"error,omitempty"`
	WorkflowID string                     `json:"workflowId"`
	Workflow   *Workflow                  `json:"-"`
	Err        error                      `json:"-"`
}

// UnknownReviewDecisionError reports a review decision other than approve,
// revise or reject.
type UnknownReviewDecisionError struct {
	Decision string
	Cycle    int
}

func (e *UnknownReviewDecisionError) Error() string {
	return fmt.Sprintf("unknown review decision %q in cycle %d (expected approve, revise or reject)", e.Decision, e.Cycle)
}
