package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal/validator"
)

type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now for workflow timestamps and metrics.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver registers a hook that receives every finished workflow,
// completed or failed.
func WithObserver(fn func(*Workflow)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// WithLanguageCheck makes adaptation validation also report whether the
// adapted text is written in the target language.
func WithLanguageCheck(det validator.LanguageDetector) Option {
	return func(o *Orchestrator) {
		o.validator = validator.New(det)
	}
}
