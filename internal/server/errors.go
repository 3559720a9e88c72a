package server

import (
	"errors"
	"net/http"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/orchestrator"
	"github.com/valpere/adaptran/internal/rules"
)

// StatusFor maps a workflow error to the HTTP status reported for it.
// Request and rule problems are the caller's; completion problems belong
// to the upstream model service.
func StatusFor(err error) int {
	var (
		notFound     *rules.RuleNotFoundError
		unknownLevel *rules.UnknownLevelError
		unavailable  *completion.ServiceUnavailableError
		malformed    *completion.MalformedResponseError
		decision     *orchestrator.UnknownReviewDecisionError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, internal.ErrEmptyText),
		errors.Is(err, internal.ErrMissingLanguage),
		errors.Is(err, internal.ErrMissingLevel),
		errors.As(err, &notFound),
		errors.As(err, &unknownLevel):
		return http.StatusBadRequest
	case errors.As(err, &unavailable),
		errors.As(err, &malformed),
		errors.As(err, &decision):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
