// Package completion talks to the text-generation service that powers the
// adaptation, review and vocabulary agents. Every response must be a JSON
// document; nothing here repairs malformed output or retries a failed call.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal/prompt"
)

type AgentType string

const (
	AgentAdaptation AgentType = "adaptation"
	AgentReview     AgentType = "review"
	AgentVocabulary AgentType = "vocabulary"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// Call is a single request to a backend.
type Call struct {
	Agent        AgentType
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Backend performs the raw provider call and returns the message content.
type Backend interface {
	Name() string
	Generate(ctx context.Context, call Call) (string, error)
}

// Options tunes every call a Client makes. Zero Timeout and MaxTokens take
// the defaults; a nil Temperature takes DefaultTemperature, while an
// explicit zero is kept.
type Options struct {
	Timeout     time.Duration
	Temperature *float64
	MaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

type Client struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

func NewClient(backend Backend, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend: backend,
		opts:    opts.withDefaults(),
		logger:  logger.Named("completion"),
	}
}

func (c *Client) Backend() string { return c.backend.Name() }

// Complete sends one prompt for the given agent and returns the response
// content, which is guaranteed to be a JSON object.
func (c *Client) Complete(ctx context.Context, agent AgentType, userPrompt string) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	call := Call{
		Agent:        agent,
		SystemPrompt: prompt.System(string(agent)),
		UserPrompt:   userPrompt,
		Temperature:  *c.opts.Temperature,
		MaxTokens:    c.opts.MaxTokens,
	}

	start := time.Now()
	c.logger.Debug("completion call",
		zap.String("agent", string(agent)),
		zap.String("backend", c.backend.Name()),
		zap.Int("prompt_bytes", len(userPrompt)))

	content, err := c.backend.Generate(callCtx, call)
	if err != nil {
		c.logger.Warn("completion call failed",
			zap.String("agent", string(agent)),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, c.classify(agent, err)
	}

	raw := strings.TrimSpace(content)
	if !json.Valid([]byte(raw)) {
		return nil, &MalformedResponseError{Agent: agent, RawContent: content, Err: errors.New("content is not valid JSON")}
	}
	if !strings.HasPrefix(raw, "{") {
		return nil, &MalformedResponseError{Agent: agent, RawContent: content, Err: errors.New("content is not a JSON object")}
	}

	c.logger.Debug("completion response",
		zap.String("agent", string(agent)),
		zap.Duration("latency", time.Since(start)),
		zap.Int("content_bytes", len(raw)))
	return json.RawMessage(raw), nil
}

func (c *Client) Adapt(ctx context.Context, userPrompt string) (*AdaptationResponse, error) {
	raw, err := c.Complete(ctx, AgentAdaptation, userPrompt)
	if err != nil {
		return nil, err
	}
	resp, err := decodeAdaptation(raw)
	if err != nil {
		return nil, &MalformedResponseError{Agent: AgentAdaptation, RawContent: string(raw), Err: err}
	}
	return resp, nil
}

func (c *Client) Review(ctx context.Context, userPrompt string) (*ReviewResponse, error) {
	raw, err := c.Complete(ctx, AgentReview, userPrompt)
	if err != nil {
		return nil, err
	}
	resp, err := decodeReview(raw)
	if err != nil {
		return nil, &MalformedResponseError{Agent: AgentReview, RawContent: string(raw), Err: err}
	}
	return resp, nil
}

func (c *Client) ExtractVocabulary(ctx context.Context, userPrompt string) (*VocabularyResponse, error) {
	raw, err := c.Complete(ctx, AgentVocabulary, userPrompt)
	if err != nil {
		return nil, err
	}
	resp, err := decodeVocabulary(raw)
	if err != nil {
		return nil, &MalformedResponseError{Agent: AgentVocabulary, RawContent: string(raw), Err: err}
	}
	return resp, nil
}

// classify turns a backend error into one of the package's typed errors,
// filling in the agent and provider where the backend left them blank.
func (c *Client) classify(agent AgentType, err error) error {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		if malformed.Agent == "" {
			malformed.Agent = agent
		}
		return malformed
	}

	var unavailable *ServiceUnavailableError
	if errors.As(err, &unavailable) {
		if unavailable.Agent == "" {
			unavailable.Agent = agent
		}
		if unavailable.Provider == "" {
			unavailable.Provider = c.backend.Name()
		}
		return unavailable
	}

	return &ServiceUnavailableError{Agent: agent, Provider: c.backend.Name(), Err: err}
}
