// Package orchestrator runs the text-adaptation workflow: adapt the text,
// have it reviewed (re-adapting on request, a bounded number of times),
// then extract vocabulary from the final version.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/prompt"
	"github.com/valpere/adaptran/internal/rules"
	"github.com/valpere/adaptran/internal/textstat"
	"github.com/valpere/adaptran/internal/validator"
)

// RuleSource provides the rules and policy an adaptation is built from.
// *rules.Store satisfies it.
type RuleSource interface {
	Lookup(language, cefrLevel string) (rules.LevelRules, error)
	Universal(cefrLevel string) (rules.UniversalLevel, error)
	TargetWordCount(originalWords int) int
	MaxRevisionCycles() int
}

// Completer runs the three agents. *completion.Client satisfies it.
type Completer interface {
	Adapt(ctx context.Context, userPrompt string) (*completion.AdaptationResponse, error)
	Review(ctx context.Context, userPrompt string) (*completion.ReviewResponse, error)
	ExtractVocabulary(ctx context.Context, userPrompt string) (*completion.VocabularyResponse, error)
}

const (
	decisionApprove = "approve"
	decisionRevise  = "revise"
	decisionReject  = "reject"
)

// Orchestrator holds no per-run state; Run may be called concurrently.
type Orchestrator struct {
	rules     RuleSource
	client    Completer
	validator *validator.Validator
	logger    *zap.Logger
	now       func() time.Time
	observers []func(*Workflow)
}

func New(rules RuleSource, client Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:     rules,
		client:    client,
		validator: validator.New(nil),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

// plan is everything resolved from the rule source before the first
// adaptation call.
type plan struct {
	req       internal.AdaptationRequest
	cefr      string
	rules     rules.LevelRules
	universal rules.UniversalLevel
	target    int
}

// run carries the state of one workflow through its phases.
type run struct {
	wf     *Workflow
	plan   plan
	logger *zap.Logger
}

// Run executes the workflow for req and reports its outcome.
func (o *Orchestrator) Run(ctx context.Context, req internal.AdaptationRequest) *Outcome {
	req = req.Normalized()
	wf := &Workflow{
		ID:        uuid.NewString(),
		StartTime: o.now(),
		Input:     req,
		Status:    StatusRunning,
		Phases:    make([]PhaseRecord, 0, 3),
	}
	r := &run{
		wf:     wf,
		plan:   plan{req: req},
		logger: o.logger.With(zap.String("workflow_id", wf.ID)),
	}

	r.logger.Info("workflow started",
		zap.String("language", req.TargetLanguage),
		zap.String("level", req.ProficiencyLevel),
		zap.Int("words", textstat.Words(req.OriginalText)))

	result, err := o.execute(ctx, r)
	if err != nil {
		return o.fail(r, err)
	}
	return o.complete(r, result)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*internal.AdaptationResult, error) {
	if err := r.plan.req.Validate(); err != nil {
		return nil, err
	}

	adaptation, err := o.adaptationPhase(ctx, r, "")
	if err != nil {
		return nil, err
	}

	final, err := o.reviewPhase(ctx, r, adaptation)
	if err != nil {
		return nil, err
	}

	vocabulary, err := o.vocabularyPhase(ctx, r, final)
	if err != nil {
		return nil, err
	}

	return &internal.AdaptationResult{
		AdaptedText: final.AdaptedText,
		Vocabulary:  vocabulary.Vocabulary,
	}, nil
}

// resolve fills in the plan from the rule source. It runs once, on the
// first adaptation attempt.
func (o *Orchestrator) resolve(r *run) error {
	if r.plan.cefr != "" {
		return nil
	}
	req := r.plan.req

	cefr, err := rules.MapLevel(req.ProficiencyLevel)
	if err != nil {
		return err
	}
	lr, err := o.rules.Lookup(req.TargetLanguage, cefr)
	if err != nil {
		return err
	}
	universal, err := o.rules.Universal(cefr)
	if err != nil {
		return err
	}

	r.plan.cefr = cefr
	r.plan.rules = lr
	r.plan.universal = universal
	r.plan.target = o.rules.TargetWordCount(textstat.Words(req.OriginalText))
	return nil
}

// adaptationPhase produces one adaptation. feedback is empty on the first
// attempt and carries the reviewer's feedback on a revision.
func (o *Orchestrator) adaptationPhase(ctx context.Context, r *run, feedback string) (*completion.AdaptationResponse, error) {
	r.wf.CurrentPhase = PhaseAdaptation
	start := o.now()
	record := PhaseRecord{Phase: PhaseAdaptation}

	fail := func(err error) error {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.DurationMs = o.now().Sub(start).Milliseconds()
		r.wf.Phases = append(r.wf.Phases, record)
		r.logger.Warn("adaptation failed", zap.Error(err))
		return err
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}
	if err := o.resolve(r); err != nil {
		return nil, fail(err)
	}

	req := r.plan.req
	userPrompt := prompt.Adaptation(prompt.AdaptationInput{
		OriginalText:     req.OriginalText,
		TargetLanguage:   req.TargetLanguage,
		ProficiencyLevel: req.ProficiencyLevel,
		CEFRLevel:        r.plan.cefr,
		MotherTongue:     req.MotherTongue,
		Rules:            r.plan.rules,
		Universal:        r.plan.universal,
		TargetWordCount:  r.plan.target,
		Feedback:         feedback,
	})

	resp, err := o.client.Adapt(ctx, userPrompt)
	if err != nil {
		return nil, fail(err)
	}

	report := o.validator.Validate(resp.AdaptedText, req.OriginalText, r.plan.target, req.TargetLanguage)
	record.Status = StatusCompleted
	record.Adaptation = resp
	record.Validation = &report
	record.DurationMs = o.now().Sub(start).Milliseconds()
	r.wf.Phases = append(r.wf.Phases, record)

	fields := []zap.Field{
		zap.Int("words", report.ActualWordCount),
		zap.Int("target_words", report.TargetWordCount),
		zap.Int("paragraphs", report.ActualParagraphs),
		zap.Bool("revision", feedback != ""),
	}
	if !report.WordCountValid || !report.ParagraphStructurePreserved || (report.LanguageChecked && !report.LanguageMatches) {
		r.logger.Warn("adaptation outside targets", append(fields,
			zap.Bool("word_count_valid", report.WordCountValid),
			zap.Bool("paragraphs_preserved", report.ParagraphStructurePreserved),
			zap.String("detected_language", report.DetectedLanguage))...)
	} else {
		r.logger.Info("adaptation completed", fields...)
	}
	return resp, nil
}

// reviewPhase reviews the adaptation and re-adapts it on request until it
// is approved or the revision limit is reached, and returns the final
// adaptation. With a limit of N there are at most N+1 reviews.
func (o *Orchestrator) reviewPhase(ctx context.Context, r *run, current *completion.AdaptationResponse) (*completion.AdaptationResponse, error) {
	maxCycles := o.rules.MaxRevisionCycles()

	for cycle := 0; ; cycle++ {
		review, err := o.review(ctx, r, cycle, current)
		if err != nil {
			return nil, err
		}

		if strings.EqualFold(review.Decision, decisionApprove) {
			return current, nil
		}
		if cycle >= maxCycles {
			r.logger.Info("revision limit reached, accepting current adaptation",
				zap.Int("cycle", cycle),
				zap.String("decision", review.Decision))
			return current, nil
		}

		current, err = o.adaptationPhase(ctx, r, review.Feedback)
		if err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) review(ctx context.Context, r *run, cycle int, current *completion.AdaptationResponse) (*completion.ReviewResponse, error) {
	r.wf.CurrentPhase = PhaseReview
	start := o.now()
	record := PhaseRecord{Phase: PhaseReview, Cycle: cycle}

	fail := func(err error) error {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.DurationMs = o.now().Sub(start).Milliseconds()
		r.wf.Phases = append(r.wf.Phases, record)
		r.logger.Warn("review failed", zap.Int("cycle", cycle), zap.Error(err))
		return err
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	req := r.plan.req
	resp, err := o.client.Review(ctx, prompt.Review(prompt.ReviewInput{
		OriginalText:     req.OriginalText,
		AdaptedText:      current.AdaptedText,
		AdaptationNotes:  current.AdaptationNotes,
		TargetLanguage:   req.TargetLanguage,
		ProficiencyLevel: req.ProficiencyLevel,
	}))
	if err != nil {
		return nil, fail(err)
	}

	record.Review = resp
	switch strings.ToLower(resp.Decision) {
	case decisionApprove, decisionRevise, decisionReject:
	default:
		return nil, fail(&UnknownReviewDecisionError{Decision: resp.Decision, Cycle: cycle})
	}

	record.Status = StatusCompleted
	record.DurationMs = o.now().Sub(start).Milliseconds()
	r.wf.Phases = append(r.wf.Phases, record)
	r.logger.Info("review completed",
		zap.Int("cycle", cycle),
		zap.String("decision", resp.Decision),
		zap.Float64("score", resp.PedagogicalScore))
	return resp, nil
}

func (o *Orchestrator) vocabularyPhase(ctx context.Context, r *run, final *completion.AdaptationResponse) (*completion.VocabularyResponse, error) {
	r.wf.CurrentPhase = PhaseVocabulary
	start := o.now()
	record := PhaseRecord{Phase: PhaseVocabulary}

	fail := func(err error) error {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.DurationMs = o.now().Sub(start).Milliseconds()
		r.wf.Phases = append(r.wf.Phases, record)
		r.logger.Warn("vocabulary extraction failed", zap.Error(err))
		return err
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	req := r.plan.req
	resp, err := o.client.ExtractVocabulary(ctx, prompt.Vocabulary(prompt.VocabularyInput{
		AdaptedText:      final.AdaptedText,
		TargetLanguage:   req.TargetLanguage,
		ProficiencyLevel: req.ProficiencyLevel,
		MotherTongue:     req.MotherTongue,
	}))
	if err != nil {
		return nil, fail(err)
	}

	record.Status = StatusCompleted
	record.Vocabulary = resp
	record.DurationMs = o.now().Sub(start).Milliseconds()
	r.wf.Phases = append(r.wf.Phases, record)
	r.logger.Info("vocabulary extracted", zap.Int("items", len(resp.Vocabulary)))
	return resp, nil
}

func (o *Orchestrator) complete(r *run, result *internal.AdaptationResult) *Outcome {
	wf := r.wf
	wf.EndTime = o.now()
	wf.Status = StatusCompleted
	result.Metrics = internal.Metrics{
		TotalProcessingTimeMs: wf.EndTime.Sub(wf.StartTime).Milliseconds(),
		PhasesCompleted:       len(wf.Phases),
		RevisionCycles:        wf.RevisionCycles(),
		Success:               true,
	}
	wf.Result = result

	r.logger.Info("workflow completed",
		zap.Int64("duration_ms", result.Metrics.TotalProcessingTimeMs),
		zap.Int("phases", result.Metrics.PhasesCompleted),
		zap.Int("revision_cycles", result.Metrics.RevisionCycles))
	o.notify(wf)

	return &Outcome{
		Success:    true,
		Result:     result,
		WorkflowID: wf.ID,
		Workflow:   wf,
	}
}

func (o *Orchestrator) fail(r *run, err error) *Outcome {
	wf := r.wf
	wf.EndTime = o.now()
	wf.Status = StatusFailed
	wf.Error = err.Error()

	r.logger.Error("workflow failed",
		zap.String("phase", string(wf.CurrentPhase)),
		zap.Error(err))
	o.notify(wf)

	return &Outcome{
		Success:    false,
		Error:      wf.Error,
		WorkflowID: wf.ID,
		Workflow:   wf,
		Err:        err,
	}
}

func (o *Orchestrator) notify(wf *Workflow) {
	for _, fn := range o.observers {
		fn(wf)
	}
}
