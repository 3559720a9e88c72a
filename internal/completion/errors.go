package completion

import (
	"fmt"
	"net/http"
)

// ServiceUnavailableError reports a completion call that did not produce a
// response: the service was unreachable, timed out, or answered with a
// non-success status.
type ServiceUnavailableError struct {
	Agent      AgentType
	Provider   string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	switch {
	case e.StatusCode != 0:
		status := e.Status
		if status == "" {
			status = http.StatusText(e.StatusCode)
		}
		msg := fmt.Sprintf("%s agent: %s returned status %d %s", e.Agent, e.provider(), e.StatusCode, status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	case e.Err != nil:
		return fmt.Sprintf("%s agent: %s unavailable: %v", e.Agent, e.provider(), e.Err)
	default:
		return fmt.Sprintf("%s agent: %s unavailable", e.Agent, e.provider())
	}
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

func (e *ServiceUnavailableError) provider() string {
	if e.Provider == "" {
		return "completion service"
	}
	return e.Provider
}

// MalformedResponseError reports a response whose content is not JSON or
// does not have the shape the agent expects.
type MalformedResponseError struct {
	Agent      AgentType
	RawContent string
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid JSON response from %s agent: %v", e.Agent, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
