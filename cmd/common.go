/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/detector"
	"github.com/valpere/adaptran/internal/orchestrator"
	"github.com/valpere/adaptran/internal/rules"
	"github.com/valpere/adaptran/internal/store"
)

var errStoreDisabled = errors.New("history store is disabled (store.disabled is set)")

// app holds what the adapting commands share. db is nil when the store is
// disabled.
type app struct {
	rules  *rules.Store
	client *completion.Client
	orch   *orchestrator.Orchestrator
	db     *store.Store
}

func newApp() (*app, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	rs, err := loadRules()
	if err != nil {
		return nil, err
	}

	backend, err := completion.NewBackend(cfg.LLM)
	if err != nil {
		return nil, err
	}
	client := completion.NewClient(backend, cfg.LLM.Options(), logger)

	a := &app{rules: rs, client: client}
	if !cfg.Store.Disabled {
		if a.db, err = openStore(); err != nil {
			return nil, err
		}
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Rules.LanguageCheck {
		det, err := newDetector(rs.Languages())
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, orchestrator.WithLanguageCheck(det))
	}
	if a.db != nil {
		db := a.db
		opts = append(opts, orchestrator.WithObserver(func(wf *orchestrator.Workflow) {
			if err := db.SaveWorkflow(context.Background(), wf); err != nil {
				logger.Warn("failed to save workflow", zap.String("workflow_id", wf.ID), zap.Error(err))
			}
		}))
	}
	a.orch = orchestrator.New(rs, client, opts...)

	logger.Debug("completion backend ready", zap.String("backend", client.Backend()))
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// adaptation is one finished adaptation, fresh or served from the cache.
type adaptation struct {
	WorkflowID string
	Result     *internal.AdaptationResult
	Cached     bool
}

// adapt serves req from the cache when allowed, otherwise runs the workflow
// and caches a successful result. A failed workflow is returned as an error
// wrapping its cause.
func (a *app) adapt(ctx context.Context, req internal.AdaptationRequest, useCache bool) (*adaptation, error) {
	useCache = useCache && a.db != nil
	if useCache {
		if hit := a.cached(ctx, req); hit != nil {
			return hit, nil
		}
	}

	out := a.orch.Run(ctx, req)
	if !out.Success {
		return &adaptation{WorkflowID: out.WorkflowID}, fmt.Errorf("adaptation failed (workflow %s): %w", out.WorkflowID, out.Err)
	}

	if useCache {
		if err := a.db.SaveToCache(ctx, req, out.Result, out.WorkflowID); err != nil {
			logger.Warn("failed to cache adaptation", zap.String("workflow_id", out.WorkflowID), zap.Error(err))
		}
	}
	return &adaptation{WorkflowID: out.WorkflowID, Result: out.Result}, nil
}

// cached looks for an exact hit, then a fuzzy one when a threshold is
// configured. Lookup errors only disable the cache for this request.
func (a *app) cached(ctx context.Context, req internal.AdaptationRequest) *adaptation {
	entry, found, err := a.db.GetCachedAdaptation(ctx, req)
	if err == nil && !found {
		entry, found, err = a.db.FuzzyGetCachedAdaptation(ctx, req, cfg.Store.FuzzyThreshold)
	}
	if err != nil {
		logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	logger.Info("using cached adaptation", zap.String("cache_id", entry.ID), zap.String("workflow_id", entry.WorkflowID))
	return &adaptation{
		WorkflowID: entry.WorkflowID,
		Cached:     true,
		Result: &internal.AdaptationResult{
			AdaptedText: entry.AdaptedText,
			Vocabulary:  entry.Vocabulary,
			Metrics:     internal.Metrics{Success: true},
		},
	}
}

func loadRules() (*rules.Store, error) {
	rs, err := rules.Load(cfg.Rules.RulesPath, cfg.Rules.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rs, nil
}

func openStore() (*store.Store, error) {
	if cfg.Store.Disabled {
		return nil, errStoreDisabled
	}
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newDetector restricts detection to the rule languages lingua knows.
func newDetector(languages []string) (*detector.Detector, error) {
	var names []string
	for _, name := range languages {
		if _, ok := detector.LanguageByName(name); !ok {
			logger.Warn("language check unavailable", zap.String("language", name))
			continue
		}
		names = append(names, name)
	}
	det, err := detector.New(names...)
	if err != nil {
		return nil, fmt.Errorf("failed to build language detector: %w", err)
	}
	return det, nil
}
