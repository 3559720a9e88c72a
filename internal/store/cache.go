package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/adaptran/internal"
)

// CacheEntry is a row from the adaptation_cache table.
type CacheEntry struct {
	ID               string                    `json:"id"`
	OriginalText     string                    `json:"originalText"`
	TargetLanguage   string                    `json:"targetLanguage"`
	ProficiencyLevel string                    `json:"proficiencyLevel"`
	MotherTongue     string                    `json:"motherTongue"`
	AdaptedText      string                    `json:"adaptedText"`
	Vocabulary       []internal.VocabularyItem `json:"vocabulary"`
	WorkflowID       string                    `json:"workflowId,omitempty"`
	UsageCount       int                       `json:"usageCount"`
	Invalidated      bool                      `json:"invalidated"`
	LastUsed         time.Time                 `json:"lastUsed"`
}

// Stats summarises workflow history and cache usage.
type Stats struct {
	Workflows          int
	CompletedWorkflows int
	FailedWorkflows    int
	CacheEntries       int
	ActiveCacheEntries int
	CacheHits          int
}

// SaveToCache records the result of a completed workflow for req.
func (s *Store) SaveToCache(ctx context.Context, req internal.AdaptationRequest, result *internal.AdaptationResult, workflowID string) error {
	if result == nil {
		return errors.New("cannot cache an empty result")
	}
	vocabulary, err := json.Marshal(result.Vocabulary)
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}

	text, language, level, motherTongue := cacheKey(req)
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO adaptation_cache (id, original_text, target_language, proficiency_level, mother_tongue,
			adapted_text, vocabulary_json, workflow_id, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		newID("cache"), text, language, level, motherTongue, result.AdaptedText, string(vocabulary), workflowID, now, now)
	return err
}

// GetCachedAdaptation returns the cached adaptation for req, if one exists
// and has not been invalidated, and counts the hit.
func (s *Store) GetCachedAdaptation(ctx context.Context, req internal.AdaptationRequest) (*CacheEntry, bool, error) {
	text, language, level, motherTongue := cacheKey(req)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+cacheColumns+` FROM adaptation_cache
		 WHERE original_text = ? AND target_language = ? AND proficiency_level = ? AND mother_tongue = ?`,
		text, language, level, motherTongue)
	entry, err := scanCacheEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Invalidated {
		return nil, false, nil
	}

	if err := s.touch(ctx, entry); err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// FuzzyGetCachedAdaptation returns the active cache entry for the same
// language, level and mother tongue whose original text is most similar to
// req's, provided the similarity (0-1) reaches threshold. A threshold of
// zero or less disables the lookup. Texts longer than maxFuzzyRunes are
// never fuzzy-matched.
func (s *Store) FuzzyGetCachedAdaptation(ctx context.Context, req internal.AdaptationRequest, threshold float64) (*CacheEntry, bool, error) {
	if threshold <= 0 {
		return nil, false, nil
	}

	text, language, level, motherTongue := cacheKey(req)
	if len([]rune(text)) > maxFuzzyRunes {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cacheColumns+` FROM adaptation_cache
		 WHERE target_language = ? AND proficiency_level = ? AND mother_tongue = ? AND NOT invalidated`,
		language, level, motherTongue)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var best *CacheEntry
	bestScore := 0.0
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, false, err
		}
		if !withinLengthBound(text, entry.OriginalText, threshold) {
			continue
		}
		if score := stringSimilarity(text, entry.OriginalText); score >= threshold && score > bestScore {
			best, bestScore = entry, score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	rows.Close()

	if best == nil {
		return nil, false, nil
	}
	if err := s.touch(ctx, best); err != nil {
		return nil, false, err
	}
	return best, true, nil
}

func (s *Store) touch(ctx context.Context, entry *CacheEntry) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE adaptation_cache SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`, now, entry.ID)
	if err != nil {
		return err
	}
	entry.UsageCount++
	entry.LastUsed = now
	return nil
}

const cacheColumns = `id, original_text, target_language, proficiency_level, mother_tongue,
	adapted_text, vocabulary_json, workflow_id, usage_count, invalidated, last_used`

func scanCacheEntry(row scanner) (*CacheEntry, error) {
	var e CacheEntry
	var vocabulary string
	var workflowID sql.NullString
	err := row.Scan(&e.ID, &e.OriginalText, &e.TargetLanguage, &e.ProficiencyLevel, &e.MotherTongue,
		&e.AdaptedText, &vocabulary, &workflowID, &e.UsageCount, &e.Invalidated, &e.LastUsed)
	if err != nil {
		return nil, err
	}
	e.WorkflowID = workflowID.String
	if err := json.Unmarshal([]byte(vocabulary), &e.Vocabulary); err != nil {
		return nil, fmt.Errorf("cache entry %s: failed to decode vocabulary: %w", e.ID, err)
	}
	return &e, nil
}

// ListCache returns all cache entries ordered by most recently used.
func (s *Store) ListCache(ctx context.Context) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cacheColumns+` FROM adaptation_cache ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *e)
	}
	return results, rows.Err()
}

// InvalidateCache marks a cache entry as stale without deleting it.
func (s *Store) InvalidateCache(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE adaptation_cache SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cache entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// ClearCache removes all cache entries.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM adaptation_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM workflows`).Scan(
		&stats.Workflows,
		&stats.CompletedWorkflows,
		&stats.FailedWorkflows,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count - 1), 0)
		FROM adaptation_cache`).Scan(
		&stats.CacheEntries,
		&stats.ActiveCacheEntries,
		&stats.CacheHits,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
