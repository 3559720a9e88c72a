// Package server exposes the adaptation workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/markdown"
	"github.com/valpere/adaptran/internal/orchestrator"
	"github.com/valpere/adaptran/internal/store"
)

// Runner runs one adaptation workflow. *orchestrator.Orchestrator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, req internal.AdaptationRequest) *orchestrator.Outcome
}

// History looks up persisted workflows. *store.Store satisfies it.
type History interface {
	GetWorkflow(ctx context.Context, id string) (*store.WorkflowRecord, error)
}

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	Version      string
}

type Server struct {
	runner  Runner
	history History
	logger  *zap.Logger
	opts    Options
}

// New builds a Server. history may be nil, in which case workflow lookups
// answer 404.
func New(runner Runner, history History, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Server{
		runner:  runner,
		history: history,
		logger:  logger.Named("server"),
		opts:    opts,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/adapt", s.handleAdapt)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return chain(mux, recovery(s.logger), requestID, accessLog(s.logger))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down,
// giving in-flight requests up to ten seconds to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener. Request contexts are not
// canceled with ctx, so in-flight workflows can finish during shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type adaptRequest struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	Level        string `json:"level"`
	MotherTongue string `json:"motherTongue"`
	// Format "html" adds an HTML rendering of the result.
	Format string `json:"format,omitempty"`
}

type adaptResponse struct {
	Success     bool                      `json:"success"`
	WorkflowID  string                    `json:"workflowId,omitempty"`
	AdaptedText string                    `json:"adaptedText,omitempty"`
	AdaptedHTML string                    `json:"adaptedHtml,omitempty"`
	Vocabulary  []internal.VocabularyItem `json:"vocabulary,omitempty"`
	Metrics     *internal.Metrics         `json:"metrics,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func (s *Server) handleAdapt(w http.ResponseWriter, r *http.Request) {
	var body adaptRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, adaptResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, adaptResponse{Error: "invalid request body: trailing data"})
		return
	}

	out := s.runner.Run(r.Context(), internal.AdaptationRequest{
		OriginalText:     body.Text,
		TargetLanguage:   body.Language,
		ProficiencyLevel: body.Level,
		MotherTongue:     body.MotherTongue,
	})

	if !out.Success {
		status := StatusFor(out.Err)
		if status == http.StatusInternalServerError {
			s.logger.Error("adaptation failed", zap.String("workflow_id", out.WorkflowID), zap.Error(out.Err))
		}
		writeJSON(w, status, adaptResponse{Error: out.Error, WorkflowID: out.WorkflowID})
		return
	}

	resp := adaptResponse{
		Success:     true,
		WorkflowID:  out.WorkflowID,
		AdaptedText: out.Result.AdaptedText,
		Vocabulary:  out.Result.Vocabulary,
		Metrics:     &out.Result.Metrics,
	}
	if strings.EqualFold(body.Format, "html") {
		resp.AdaptedHTML = markdown.RenderAdaptation(out.Result.AdaptedText, out.Result.Vocabulary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.history == nil {
		writeError(w, http.StatusNotFound, "workflow history is disabled")
		return
	}

	rec, err := s.history.GetWorkflow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("workflow %s not found", id))
		return
	}
	if err != nil {
		s.logger.Error("get workflow", zap.String("workflow_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.opts.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
