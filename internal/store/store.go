// Package store persists finished adaptation workflows and caches adapted
// texts in a local sqlite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/orchestrator"
	"github.com/valpere/adaptran/internal/rules"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		target_language TEXT NOT NULL,
		proficiency_level TEXT NOT NULL,
		mother_tongue TEXT NOT NULL,
		status TEXT NOT NULL,
		adapted_text TEXT,
		vocabulary_json TEXT,
		phases_json TEXT,
		phases_completed INTEGER DEFAULT 0,
		revision_cycles INTEGER DEFAULT 0,
		processing_ms INTEGER DEFAULT 0,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	-- adaptation_cache reuses finished adaptations of identical input
	CREATE TABLE IF NOT EXISTS adaptation_cache (
		id TEXT PRIMARY KEY,
		original_text TEXT NOT NULL,
		target_language TEXT NOT NULL,
		proficiency_level TEXT NOT NULL,
		mother_tongue TEXT NOT NULL,
		adapted_text TEXT NOT NULL,
		vocabulary_json TEXT NOT NULL,
		workflow_id TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(original_text, target_language, proficiency_level, mother_tongue)
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_started ON workflows(started_at);
	CREATE INDEX IF NOT EXISTS idx_cache_lookup ON adaptation_cache(target_language, proficiency_level, mother_tongue);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WorkflowRecord is a persisted workflow.
type WorkflowRecord struct {
	ID          string                     `json:"id"`
	Request     internal.AdaptationRequest `json:"request"`
	Status      string                     `json:"status"`
	AdaptedText string                     `json:"adaptedText,omitempty"`
	Vocabulary  []internal.VocabularyItem  `json:"vocabulary,omitempty"`
	Metrics     internal.Metrics           `json:"metrics"`
	Error       string                     `json:"error,omitempty"`
	Phases      []orchestrator.PhaseRecord `json:"phases,omitempty"`
	StartedAt   time.Time                  `json:"startedAt"`
	FinishedAt  time.Time                  `json:"finishedAt"`
}

// SaveWorkflow stores a finished workflow, replacing any earlier record
// with the same ID.
func (s *Store) SaveWorkflow(ctx context.Context, wf *orchestrator.Workflow) error {
	phases, err := json.Marshal(wf.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	var adapted string
	vocabulary := []byte("[]")
	var metrics internal.Metrics
	if wf.Result != nil {
		adapted = wf.Result.AdaptedText
		metrics = wf.Result.Metrics
		if vocabulary, err = json.Marshal(wf.Result.Vocabulary); err != nil {
			return fmt.Errorf("failed to encode vocabulary: %w", err)
		}
	}

	in := wf.Input
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO workflows (id, original_text, target_language, proficiency_level, mother_tongue, status,
			adapted_text, vocabulary_json, phases_json, phases_completed, revision_cycles, processing_ms, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, in.OriginalText, in.TargetLanguage, in.ProficiencyLevel, in.MotherTongue, string(wf.Status),
		adapted, string(vocabulary), string(phases), metrics.PhasesCompleted, metrics.RevisionCycles,
		metrics.TotalProcessingTimeMs, wf.Error, wf.StartTime.UTC(), wf.EndTime.UTC())
	return err
}

const workflowColumns = `id, original_text, target_language, proficiency_level, mother_tongue, status,
	adapted_text, vocabulary_json, phases_json, phases_completed, revision_cycles, processing_ms, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*WorkflowRecord, error) {
	var rec WorkflowRecord
	var adapted, vocabulary, phases, errMsg sql.NullString
	err := row.Scan(&rec.ID, &rec.Request.OriginalText, &rec.Request.TargetLanguage, &rec.Request.ProficiencyLevel,
		&rec.Request.MotherTongue, &rec.Status, &adapted, &vocabulary, &phases,
		&rec.Metrics.PhasesCompleted, &rec.Metrics.RevisionCycles, &rec.Metrics.TotalProcessingTimeMs,
		&errMsg, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}

	rec.AdaptedText = adapted.String
	rec.Error = errMsg.String
	rec.Metrics.Success = rec.Status == string(orchestrator.StatusCompleted)
	if vocabulary.Valid && vocabulary.String != "" {
		if err := json.Unmarshal([]byte(vocabulary.String), &rec.Vocabulary); err != nil {
			return nil, fmt.Errorf("workflow %s: failed to decode vocabulary: %w", rec.ID, err)
		}
	}
	if phases.Valid && phases.String != "" {
		if err := json.Unmarshal([]byte(phases.String), &rec.Phases); err != nil {
			return nil, fmt.Errorf("workflow %s: failed to decode phases: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	rec, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListWorkflows returns the most recent workflows first. A limit of zero or
// less returns all of them.
func (s *Store) ListWorkflows(ctx context.Context, limit int) ([]WorkflowRecord, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WorkflowRecord
	for rows.Next() {
		rec, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return nil
}

// ClearWorkflows removes every workflow record.
func (s *Store) ClearWorkflows(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// cacheKey normalises the request fields that identify a cached
// adaptation. Level labels and their CEFR codes share a key.
func cacheKey(req internal.AdaptationRequest) (text, language, level, motherTongue string) {
	req = req.Normalized()
	level = strings.ToUpper(req.ProficiencyLevel)
	if cefr, err := rules.MapLevel(req.ProficiencyLevel); err == nil {
		level = cefr
	}
	return normalizeText(req.OriginalText),
		strings.ToLower(req.TargetLanguage),
		level,
		strings.ToLower(req.MotherTongue)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
